package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// Special mapping targets consumed by the geometry builder instead of
// being stored as attributes.
const (
	TargetLat = "lat"
	TargetLon = "lon"
)

// FieldRule maps one source field to one target attribute.
type FieldRule struct {
	Source string
	Target string
}

// FieldMapping is an ordered source-to-target field mapping. It need
// not be total: unmapped source fields are dropped and unmapped target
// attributes are left absent.
type FieldMapping []FieldRule

// identRe limits target attribute identifiers to plain SQL column
// names; mapped names are interpolated into insert statements.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether a target attribute identifier is usable
// as a column name.
func ValidIdent(s string) bool { return identRe.MatchString(s) }

// ParseFieldMapping decodes a JSON object of source-to-target pairs,
// preserving the document's key order.
func ParseFieldMapping(data []byte) (FieldMapping, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parse mapping: expected a JSON object")
	}

	var m FieldMapping
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse mapping: %w", err)
		}
		key := keyTok.(string)

		var target string
		if err := dec.Decode(&target); err != nil {
			return nil, fmt.Errorf("parse mapping: target for %q: %w", key, err)
		}
		m = append(m, FieldRule{Source: key, Target: target})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("parse mapping: empty mapping")
	}
	return m, nil
}
