// Package record defines the raw record shape shared by all source
// format adapters: an ordered set of named scalar values, plus optional
// inline geometry hints carried through to the mapper untouched.
package record

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindFloat
	KindBool
	KindDate
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is a closed scalar sum: text, integer, float, boolean, date or
// null. Source adapters only ever produce these six kinds, so the type
// is deliberately not an open interface.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Text returns a text value. The empty string is a valid text value;
// callers wanting "empty means absent" should use Null instead.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a date value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// Kind reports the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// String renders the value for display. Null renders as the empty
// string; dates render as YYYY-MM-DD.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format("2006-01-02")
	default:
		return ""
	}
}

// Float64 coerces the value to a float64. Integer and float values
// convert directly; text values are parsed. Everything else fails.
func (v Value) Float64() (float64, error) {
	switch v.kind {
	case KindInt:
		return float64(v.i), nil
	case KindFloat:
		return v.f, nil
	case KindText:
		return strconv.ParseFloat(strings.TrimSpace(v.s), 64)
	default:
		return 0, &strconv.NumError{Func: "ParseFloat", Num: v.String(), Err: strconv.ErrSyntax}
	}
}

// Arg returns the value as a database argument: nil, string, int64,
// float64, bool or time.Time.
func (v Value) Arg() any {
	switch v.kind {
	case KindText:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	default:
		return nil
	}
}
