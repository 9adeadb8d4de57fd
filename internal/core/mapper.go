package core

import (
	"fmt"
	"strings"

	"github.com/igs-portal/geoimport/internal/record"
)

// Normalize maps one raw record into the target schema. pos is the
// record's 1-based position in the source sequence; tag is the source
// format's synthetic-number prefix. The transform is pure: identical
// inputs produce identical outputs.
//
// Geometry resolution, in precedence order: mapped lat/lon components
// build a point; an inline coordinates sequence of at least two pairs
// builds a line (order preserved, no deduplication); a raw geometry
// hint from the adapter is carried through unchanged; otherwise the
// record is attribute-only, which is permitted.
func Normalize(raw record.RawRecord, mapping FieldMapping, obj ObjectType, pos int, tag string) (*NormalizedRecord, error) {
	out := &NormalizedRecord{Attrs: make(map[string]record.Value, len(mapping))}
	var lat, lon *float64

	for _, rule := range mapping {
		v, ok := raw.Get(rule.Source)
		if !ok || v.IsNull() {
			continue
		}

		switch rule.Target {
		case TargetLat, TargetLon:
			// A coordinate that fails to parse would corrupt geometry;
			// unlike attribute cells it fails the record.
			f, err := v.Float64()
			if err != nil {
				return nil, &RecordError{Pos: pos, Err: fmt.Errorf("invalid %s value %q", rule.Target, v.String())}
			}
			if rule.Target == TargetLat {
				lat = &f
			} else {
				lon = &f
			}

		default:
			if !ValidIdent(rule.Target) {
				return nil, &RecordError{Pos: pos, Err: fmt.Errorf("invalid target attribute %q", rule.Target)}
			}
			if _, seen := out.Attrs[rule.Target]; !seen {
				out.Names = append(out.Names, rule.Target)
			}
			out.Attrs[rule.Target] = v
		}
	}

	switch {
	case lat != nil && lon != nil:
		out.Geometry = NewPoint(*lon, *lat)
	case len(raw.Coordinates) >= 2:
		out.Geometry = NewLine(raw.Coordinates)
	case raw.Geometry != nil:
		out.Geometry = NewRaw(raw.Geometry)
	}

	// Every imported row gets a stable human-visible label even when
	// the mapping carries no number column.
	if _, ok := out.Attrs["number"]; !ok {
		out.Names = append(out.Names, "number")
		out.Attrs["number"] = record.Text(fmt.Sprintf("%s-%d", tag, pos))
	}

	var missing []string
	for _, req := range obj.Required {
		if _, ok := out.Attrs[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, &RecordError{Pos: pos, Err: fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))}
	}

	return out, nil
}
