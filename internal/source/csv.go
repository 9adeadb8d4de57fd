package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/igs-portal/geoimport/internal/record"
)

// sniffWindow is how many bytes of the first line are inspected to
// detect the delimiter.
const sniffWindow = 8192

type csvSource struct {
	f      *os.File
	r      *csv.Reader
	header []string
	cur    record.RawRecord
	curErr error
	pos    int
	done   bool
}

// openCSV opens a delimited text file. The delimiter is sniffed from
// the first line (';' wins over ',', matching the exports this system
// receives), and the first row is taken as the header.
func openCSV(path string) (Source, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}

	br := bufio.NewReader(f)
	delim := sniffDelimiter(br)

	r := csv.NewReader(br)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headerRow, err := r.Read()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read delimited header: %w", err)
	}

	header := make([]string, len(headerRow))
	for i, h := range headerRow {
		header[i] = cleanCell(h)
	}

	return &csvSource{f: f, r: r, header: header}, nil, nil
}

// sniffDelimiter picks ';' when the first line contains one, else ','.
func sniffDelimiter(br *bufio.Reader) rune {
	peeked, _ := br.Peek(sniffWindow)
	if i := bytes.IndexByte(peeked, '\n'); i >= 0 {
		peeked = peeked[:i]
	}
	if bytes.IndexByte(peeked, ';') >= 0 {
		return ';'
	}
	return ','
}

func (s *csvSource) Next() bool {
	if s.done {
		return false
	}

	for {
		row, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			return false
		}
		s.pos++
		if err != nil {
			s.cur, s.curErr = record.RawRecord{}, fmt.Errorf("parse row: %w", err)
			return true
		}
		if isBlankRow(row) {
			continue
		}

		values := make(map[string]record.Value, len(s.header))
		for i, name := range s.header {
			if name == "" {
				continue
			}
			if i < len(row) {
				values[name] = inferScalar(cleanCell(row[i]))
			} else {
				values[name] = record.Null()
			}
		}
		s.cur, s.curErr = record.New(s.header, values), nil
		return true
	}
}

func (s *csvSource) Record() (record.RawRecord, error) { return s.cur, s.curErr }

func (s *csvSource) Columns() []string { return s.header }

func (s *csvSource) Close() error { return s.f.Close() }

// cleanCell strips the artifacts spreadsheet exports leave behind:
// surrounding whitespace and quotes, Excel formula prefixes and invalid
// UTF-8 bytes.
func cleanCell(s string) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// inferScalar types a cell: blank cells become null, numeric text
// becomes a number, everything else stays text.
func inferScalar(s string) record.Value {
	if s == "" {
		return record.Null()
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return record.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return record.Float(f)
	}
	return record.Text(s)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
