package record

import "encoding/json"

// RawRecord is one record as produced by a source adapter: named scalar
// values in source order, plus optional geometry hints. A RawRecord is
// immutable once produced; adapters build a fresh one per record.
type RawRecord struct {
	// Names holds the source field identifiers in source order.
	Names []string

	// Values maps source field identifiers to their scalar values.
	Values map[string]Value

	// Coordinates is an optional ordered sequence of (lon, lat) pairs
	// carried inline by the source, used to build line geometry.
	Coordinates [][2]float64

	// Geometry is an optional raw GeoJSON geometry object carried
	// through opaque; the mapper passes it downstream unchanged.
	Geometry json.RawMessage
}

// New returns a RawRecord over the given names and values.
func New(names []string, values map[string]Value) RawRecord {
	return RawRecord{Names: names, Values: values}
}

// Get returns the value for a source field and whether it is present.
func (r RawRecord) Get(name string) (Value, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Len returns the number of fields in the record.
func (r RawRecord) Len() int { return len(r.Names) }
