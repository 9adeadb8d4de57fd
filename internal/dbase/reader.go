// Package dbase decodes the fixed-record binary attribute containers
// that accompany legacy desktop-GIS layers (dBASE III layout). The
// format is undocumented enough that no external library is used: the
// header and field descriptor table are parsed byte-exactly, and row
// decoding degrades bad field content to null instead of failing.
package dbase

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/igs-portal/geoimport/internal/record"
)

// headerSize is the fixed size of the container header; field
// descriptors start immediately after it.
const headerSize = 32

// deletedMarker flags a soft-deleted row.
const deletedMarker = '*'

// Header is the decoded container header.
type Header struct {
	Version     byte
	LastUpdate  time.Time
	RecordCount uint32
	HeaderLen   uint16
	RecordLen   uint16
}

// Reader decodes one container sequentially: NewReader consumes the
// header and descriptor table, Next returns one live row at a time.
// Soft-deleted rows are skipped with their bytes consumed, so alignment
// holds regardless of deletion markers.
type Reader struct {
	r        io.Reader
	hdr      Header
	fields   []FieldDescriptor
	dec      *encoding.Decoder
	rowBuf   []byte
	scanned  uint32
	consumed int64
}

// NewReader parses the header and field descriptor table from r.
// Character fields are decoded with enc; nil means Windows-1251, the
// code page these containers carry in practice.
func NewReader(r io.Reader, enc encoding.Encoding) (*Reader, error) {
	if enc == nil {
		enc = charmap.Windows1251
	}

	rd := &Reader{r: r, dec: enc.NewDecoder()}
	if err := rd.readHeader(); err != nil {
		return nil, err
	}
	if err := rd.readDescriptors(); err != nil {
		return nil, err
	}

	// Row data starts at the declared header length; skip whatever
	// padding remains after the descriptor terminator.
	pad := int64(rd.hdr.HeaderLen) - rd.consumed
	if pad < 0 {
		return nil, fmt.Errorf("dbase: header length %d shorter than descriptor table (%d bytes)",
			rd.hdr.HeaderLen, rd.consumed)
	}
	if err := rd.discard(pad); err != nil {
		return nil, fmt.Errorf("dbase: header padding: %w", err)
	}

	rd.rowBuf = make([]byte, int(rd.hdr.RecordLen)-1)
	return rd, nil
}

func (r *Reader) readHeader() error {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return fmt.Errorf("dbase: read header: %w", err)
	}
	r.consumed += headerSize

	r.hdr = Header{
		Version:     buf[0],
		RecordCount: binary.LittleEndian.Uint32(buf[4:8]),
		HeaderLen:   binary.LittleEndian.Uint16(buf[8:10]),
		RecordLen:   binary.LittleEndian.Uint16(buf[10:12]),
	}

	// Update date bytes are year-since-1900, month, day. Garbage dates
	// are tolerated; the zero time stands in.
	if m, d := int(buf[2]), int(buf[3]); m >= 1 && m <= 12 && d >= 1 && d <= 31 {
		r.hdr.LastUpdate = time.Date(1900+int(buf[1]), time.Month(m), d, 0, 0, 0, 0, time.UTC)
	}

	if r.hdr.HeaderLen < headerSize+1 {
		return fmt.Errorf("dbase: invalid header length %d", r.hdr.HeaderLen)
	}
	if r.hdr.RecordLen == 0 {
		return fmt.Errorf("dbase: invalid record length 0")
	}
	return nil
}

func (r *Reader) readDescriptors() error {
	var unit [descriptorSize]byte
	rowLen := 1 // deletion marker byte

	for {
		if _, err := io.ReadFull(r.r, unit[:1]); err != nil {
			return fmt.Errorf("dbase: read field descriptors: %w", err)
		}
		r.consumed++

		if unit[0] == descriptorTerminator {
			break
		}
		if r.consumed+descriptorSize-1 > int64(r.hdr.HeaderLen) {
			return fmt.Errorf("dbase: field descriptors overrun header length %d", r.hdr.HeaderLen)
		}

		if _, err := io.ReadFull(r.r, unit[1:]); err != nil {
			return fmt.Errorf("dbase: read field descriptors: %w", err)
		}
		r.consumed += descriptorSize - 1

		var d FieldDescriptor
		if err := d.UnmarshalBinary(unit[:]); err != nil {
			return err
		}
		r.fields = append(r.fields, d)
		rowLen += d.Length
	}

	if len(r.fields) == 0 {
		return fmt.Errorf("dbase: no field descriptors")
	}
	if rowLen != int(r.hdr.RecordLen) {
		return fmt.Errorf("dbase: field lengths sum to %d, record length is %d", rowLen, r.hdr.RecordLen)
	}
	return nil
}

// Header returns the decoded container header.
func (r *Reader) Header() Header { return r.hdr }

// Fields returns the field descriptor table in file order. The caller
// must not modify the returned slice.
func (r *Reader) Fields() []FieldDescriptor { return r.fields }

// BytesConsumed returns the total bytes read from the input so far,
// including skipped soft-deleted rows.
func (r *Reader) BytesConsumed() int64 { return r.consumed }

// Next returns the next live row as values aligned with Fields().
// Soft-deleted rows are consumed and skipped. io.EOF signals the end of
// the declared record count.
func (r *Reader) Next() ([]record.Value, error) {
	var marker [1]byte

	for r.scanned < r.hdr.RecordCount {
		if _, err := io.ReadFull(r.r, marker[:]); err != nil {
			return nil, fmt.Errorf("dbase: read row %d: %w", r.scanned+1, err)
		}
		r.consumed++

		if _, err := io.ReadFull(r.r, r.rowBuf); err != nil {
			return nil, fmt.Errorf("dbase: read row %d: %w", r.scanned+1, err)
		}
		r.consumed += int64(len(r.rowBuf))
		r.scanned++

		if marker[0] == deletedMarker {
			continue
		}

		row := make([]record.Value, len(r.fields))
		off := 0
		for i, f := range r.fields {
			row[i] = r.decodeField(f, r.rowBuf[off:off+f.Length])
			off += f.Length
		}
		return row, nil
	}

	return nil, io.EOF
}

// decodeField converts one raw field slice into a scalar. Unparsable
// content degrades to null rather than failing the row; the legacy data
// this format carries is full of half-valid fields.
func (r *Reader) decodeField(f FieldDescriptor, raw []byte) record.Value {
	switch f.Type {
	case TypeNumeric:
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return record.Null()
		}
		if f.Decimals == 0 {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return record.Int(i)
			}
			return record.Null()
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return record.Float(v)
		}
		return record.Null()

	case TypeDate:
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return record.Null()
		}
		t, err := time.Parse("20060102", s)
		if err != nil {
			return record.Null()
		}
		return record.Date(t)

	case TypeLogical:
		s := strings.ToUpper(strings.TrimSpace(string(raw)))
		return record.Bool(s == "T" || s == "Y" || s == "1")

	default:
		// Character fields and unknown tags decode as text.
		decoded, err := r.dec.Bytes(raw)
		if err != nil {
			decoded = raw
		}
		s := strings.TrimRight(string(decoded), " \x00")
		if s == "" {
			return record.Null()
		}
		return record.Text(s)
	}
}

func (r *Reader) discard(n int64) error {
	if n == 0 {
		return nil
	}
	m, err := io.CopyN(io.Discard, r.r, n)
	r.consumed += m
	return err
}
