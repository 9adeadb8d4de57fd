package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/igs-portal/geoimport/internal/record"
	"github.com/igs-portal/geoimport/internal/source"
)

// DefaultSRID is the spatial reference for all geometry this importer
// produces; sources declare WGS 84 coordinates.
const DefaultSRID = 4326

// Geometry is the canonical geometry of a normalized record: a point,
// an ordered line, or a raw GeoJSON object passed through from the
// source.
type Geometry struct {
	Kind  GeometryClass
	Point [2]float64   // lon, lat
	Line  [][2]float64 // ordered (lon, lat) pairs, length >= 2
	Raw   json.RawMessage
	SRID  int
}

// GeometryClass tags the variant held by a Geometry.
type GeometryClass int

const (
	GeometryClassPoint GeometryClass = iota
	GeometryClassLine
	GeometryClassRaw
)

// NewPoint builds a point geometry under the default SRID.
func NewPoint(lon, lat float64) *Geometry {
	return &Geometry{Kind: GeometryClassPoint, Point: [2]float64{lon, lat}, SRID: DefaultSRID}
}

// NewLine builds a line geometry from ordered (lon, lat) pairs. The
// caller guarantees at least two vertices.
func NewLine(coords [][2]float64) *Geometry {
	return &Geometry{Kind: GeometryClassLine, Line: coords, SRID: DefaultSRID}
}

// NewRaw wraps a GeoJSON geometry object carried through opaque.
func NewRaw(raw json.RawMessage) *Geometry {
	return &Geometry{Kind: GeometryClassRaw, Raw: raw, SRID: DefaultSRID}
}

// EWKT renders point and line geometry as an extended well-known text
// literal, e.g. "SRID=4326;POINT(37.5 55.7)". Raw geometry has no EWKT
// form; it is shipped to the store as GeoJSON instead.
func (g *Geometry) EWKT() string {
	var b strings.Builder
	b.WriteString("SRID=")
	b.WriteString(strconv.Itoa(g.SRID))
	b.WriteByte(';')

	switch g.Kind {
	case GeometryClassPoint:
		b.WriteString("POINT(")
		writeCoord(&b, g.Point)
		b.WriteByte(')')
	case GeometryClassLine:
		b.WriteString("LINESTRING(")
		for i, c := range g.Line {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCoord(&b, c)
		}
		b.WriteByte(')')
	}
	return b.String()
}

func writeCoord(b *strings.Builder, c [2]float64) {
	b.WriteString(strconv.FormatFloat(c[0], 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(c[1], 'f', -1, 64))
}

// NormalizedRecord is one record mapped into the target schema: named
// attributes in mapping order plus optional geometry.
type NormalizedRecord struct {
	// Names holds target attribute identifiers in output order.
	Names []string

	// Attrs maps target attribute identifiers to scalar values.
	Attrs map[string]record.Value

	// Geometry is nil for attribute-only records.
	Geometry *Geometry
}

// ImportOutcome is the status of an ImportResult.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ImportResult aggregates one batch. It is appended to while the batch
// runs and immutable once returned.
type ImportResult struct {
	BatchID    string
	FileName   string
	Format     source.Format
	ObjectType string

	Total    int
	Imported int
	Failed   int

	// Errors holds per-record failure messages in record order, each
	// tagged with its 1-based position.
	Errors []string

	// Warnings carries non-fatal notes from the adapter, e.g. the
	// attributes-only note for binary containers.
	Warnings []string

	// BatchError is set when the batch as a whole failed: a structural
	// problem with the file or a storage fault. When it is set after
	// records were attempted, the partial counts are not durable.
	BatchError string

	Duration time.Duration
}

// Status reports the batch status recorded in the import log.
func (r *ImportResult) Status() string {
	if r.BatchError != "" {
		return StatusFailed
	}
	return StatusCompleted
}

func (r *ImportResult) recordFailure(err *RecordError) {
	r.Failed++
	r.Errors = append(r.Errors, err.Error())
}
