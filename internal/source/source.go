// Package source turns files in the supported interchange formats into
// lazy sequences of raw records. Each adapter yields one RawRecord per
// source row; a record that cannot be decoded is reported through
// Record's error and iteration continues, so one bad row never ends the
// sequence.
package source

import (
	"fmt"
	"os"
	"strings"

	"github.com/igs-portal/geoimport/internal/record"
)

// Format identifies a supported source format.
type Format string

const (
	// FormatCSV is delimited text with a header row.
	FormatCSV Format = "csv"
	// FormatTab is a MapInfo TAB layer with a dBASE attribute companion.
	FormatTab Format = "tab"
	// FormatGeoJSON is a GeoJSON FeatureCollection.
	FormatGeoJSON Format = "geojson"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatTab:
		return FormatTab, nil
	case FormatGeoJSON:
		return FormatGeoJSON, nil
	}
	return "", fmt.Errorf("unknown source format %q (supported: csv, tab, geojson)", s)
}

// Tag returns the short prefix used for synthetic object numbers
// generated from this format.
func (f Format) Tag() string {
	switch f {
	case FormatTab:
		return "IMP"
	case FormatGeoJSON:
		return "GEO"
	default:
		return "CSV"
	}
}

// Source is a finite single-pass sequence of raw records.
type Source interface {
	// Next advances to the next record and reports whether one is
	// available. After Next returns false the sequence is exhausted.
	Next() bool

	// Record returns the current record. A non-nil error means this
	// record could not be decoded; the sequence continues past it.
	Record() (record.RawRecord, error)

	// Columns returns the source field identifiers, when the format
	// declares them upfront.
	Columns() []string

	// Close releases the underlying file handles.
	Close() error
}

// Options tune how a source is opened.
type Options struct {
	// Encoding is the character encoding assumed for binary attribute
	// companions ("cp1251", "cp1252", ...) when the layer metadata does
	// not declare a charset. Empty falls back to Windows-1251.
	Encoding string

	// MaxFileSize rejects inputs larger than this many bytes. Zero
	// disables the check.
	MaxFileSize int64
}

// Open opens path as the declared format and returns the record source
// plus any non-fatal warnings. Errors from Open are structural: nothing
// was imported and no records will be.
func Open(path string, format Format, opts Options) (Source, []string, error) {
	if err := checkSize(path, opts.MaxFileSize); err != nil {
		return nil, nil, err
	}

	switch format {
	case FormatCSV:
		return openCSV(path)
	case FormatTab:
		return openTab(path, opts)
	case FormatGeoJSON:
		return openGeoJSON(path)
	default:
		return nil, nil, fmt.Errorf("unknown source format %q", format)
	}
}

func checkSize(path string, limit int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	if limit > 0 && info.Size() > limit {
		return fmt.Errorf("file %s exceeds %d byte limit", info.Name(), limit)
	}
	return nil
}
