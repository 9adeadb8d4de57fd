package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/igs-portal/geoimport/internal/dbase"
	"github.com/igs-portal/geoimport/internal/record"
)

// ErrCompanionNotFound reports a primary layer file whose attribute
// companion is missing in every case variant.
var ErrCompanionNotFound = errors.New("companion attribute file not found")

// geometryWarning is surfaced for every binary-container import:
// embedded MAP geometry is out of contract, only attributes come in.
const geometryWarning = "embedded MAP geometry is not decoded; only attributes are imported. " +
	"Supply coordinates via the field mapping or export the layer to GeoJSON for geometry."

// tabFieldRe matches one field definition line inside the Fields block
// of a TAB file: name then type.
var tabFieldRe = regexp.MustCompile(`^(\w+)\s+(\w+)`)

type tabMetadata struct {
	Charset string
	Columns []string
}

type tabSource struct {
	f      *os.File
	r      *dbase.Reader
	names  []string
	cur    record.RawRecord
	curErr error
	done   bool
}

// openTab opens a MapInfo layer by its primary .TAB file: parses the
// TAB metadata for the charset, resolves the dBASE attribute companion
// (.DAT falling back to .dat) and decodes rows from it.
func openTab(path string, opts Options) (Source, []string, error) {
	var warnings []string

	meta, err := parseTabFile(path)
	if err != nil {
		// TAB metadata is advisory; a garbled TAB still leaves a
		// readable attribute companion.
		warnings = append(warnings, fmt.Sprintf("TAB metadata not parsed: %v", err))
	}

	companion, err := companionPath(path)
	if err != nil {
		return nil, nil, err
	}
	if err := checkSize(companion, opts.MaxFileSize); err != nil {
		return nil, nil, err
	}

	enc := meta.Charset
	if enc == "" {
		enc = opts.Encoding
	}

	f, err := os.Open(companion)
	if err != nil {
		return nil, nil, fmt.Errorf("open companion: %w", err)
	}

	r, err := dbase.NewReader(f, encodingFor(enc))
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	names := make([]string, len(r.Fields()))
	for i, fd := range r.Fields() {
		names[i] = fd.Name
	}

	warnings = append(warnings, geometryWarning)
	return &tabSource{f: f, r: r, names: names}, warnings, nil
}

// companionPath resolves the attribute companion of a primary layer
// file: same base path with extension .DAT, then lowercase .dat.
func companionPath(primary string) (string, error) {
	base := strings.TrimSuffix(primary, filepath.Ext(primary))
	for _, ext := range []string{".DAT", ".dat"} {
		p := base + ext
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrCompanionNotFound, filepath.Base(primary))
}

// parseTabFile extracts the charset and field list from the TAB text
// metadata. The file is a small INI-like text; only the lines this
// importer needs are read.
func parseTabFile(path string) (tabMetadata, error) {
	meta := tabMetadata{}

	data, err := os.ReadFile(path)
	if err != nil {
		return meta, err
	}

	inFields := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, "charset"):
			if parts := strings.Split(line, `"`); len(parts) >= 2 {
				meta.Charset = parts[1]
			}
		case strings.HasPrefix(lower, "fields"):
			inFields = true
		case inFields:
			if line == "" || strings.HasPrefix(line, ";") {
				inFields = false
				continue
			}
			if m := tabFieldRe.FindStringSubmatch(line); m != nil {
				meta.Columns = append(meta.Columns, m[1])
			}
		}
	}
	return meta, nil
}

// encodingFor maps a TAB charset name or code-page alias to a decoder.
// Unknown names fall back to Windows-1251, the code page these legacy
// layers carry.
func encodingFor(name string) encoding.Encoding {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windowslatin1", "cp1252", "windows-1252":
		return charmap.Windows1252
	case "windowslatin2", "cp1250", "windows-1250":
		return charmap.Windows1250
	case "utf-8", "utf8":
		return encoding.Nop
	default:
		return charmap.Windows1251
	}
}

func (s *tabSource) Next() bool {
	if s.done {
		return false
	}

	vals, err := s.r.Next()
	if errors.Is(err, io.EOF) {
		s.done = true
		return false
	}
	if err != nil {
		// A short read means the container lied about its row count;
		// report the record and end the sequence.
		s.cur, s.curErr = record.RawRecord{}, err
		s.done = true
		return true
	}

	values := make(map[string]record.Value, len(s.names))
	for i, name := range s.names {
		values[name] = vals[i]
	}
	s.cur, s.curErr = record.New(s.names, values), nil
	return true
}

func (s *tabSource) Record() (record.RawRecord, error) { return s.cur, s.curErr }

func (s *tabSource) Columns() []string { return s.names }

func (s *tabSource) Close() error { return s.f.Close() }
