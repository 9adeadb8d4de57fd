package dbase

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/igs-portal/geoimport/internal/record"
)

// buildContainer assembles a minimal container from descriptors and raw
// row payloads (marker byte + padded field bytes per row).
func buildContainer(t *testing.T, fields []FieldDescriptor, rows ...[]byte) []byte {
	t.Helper()

	recordLen := 1
	for _, f := range fields {
		recordLen += f.Length
	}
	headerLen := headerSize + descriptorSize*len(fields) + 1

	var buf bytes.Buffer
	hdr := make([]byte, headerSize)
	hdr[0] = 0x03
	hdr[1], hdr[2], hdr[3] = 124, 3, 15 // 2024-03-15
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(rows)))
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(hdr[10:12], uint16(recordLen))
	buf.Write(hdr)

	for _, f := range fields {
		unit, err := f.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary(%q): %v", f.Name, err)
		}
		buf.Write(unit)
	}
	buf.WriteByte(descriptorTerminator)

	for i, row := range rows {
		if len(row) != recordLen {
			t.Fatalf("row %d is %d bytes, want %d", i, len(row), recordLen)
		}
		buf.Write(row)
	}
	return buf.Bytes()
}

func row(marker byte, cells ...string) []byte {
	out := []byte{marker}
	for _, c := range cells {
		out = append(out, c...)
	}
	return out
}

var testFields = []FieldDescriptor{
	{Name: "NUMBER", Type: TypeCharacter, Length: 8},
	{Name: "DEPTH", Type: TypeNumeric, Length: 6, Decimals: 1},
	{Name: "FIBERS", Type: TypeNumeric, Length: 4},
	{Name: "INSTALLED", Type: TypeDate, Length: 8},
	{Name: "ACTIVE", Type: TypeLogical, Length: 1},
}

func TestDescriptorRoundTrip(t *testing.T) {
	for _, want := range testFields {
		data, err := want.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary(%q): %v", want.Name, err)
		}
		if len(data) != descriptorSize {
			t.Fatalf("MarshalBinary(%q) = %d bytes, want %d", want.Name, len(data), descriptorSize)
		}

		var got FieldDescriptor
		if err := got.UnmarshalBinary(data); err != nil {
			t.Fatalf("UnmarshalBinary(%q): %v", want.Name, err)
		}
		if got != want {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestReaderDecodesTypedRows(t *testing.T) {
	data := buildContainer(t, testFields,
		row(' ', "W-101   ", "   2.5", "  24", "20240315", "T"),
		row(' ', "W-102   ", "      ", "    ", "        ", "N"),
	)

	r, err := NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	if got := r.Header().RecordCount; got != 2 {
		t.Fatalf("RecordCount = %d, want 2", got)
	}
	if len(r.Fields()) != len(testFields) {
		t.Fatalf("Fields() = %d descriptors, want %d", len(r.Fields()), len(testFields))
	}

	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := first[0].String(); got != "W-101" {
		t.Errorf("NUMBER = %q, want W-101", got)
	}
	if got, _ := first[1].Float64(); got != 2.5 {
		t.Errorf("DEPTH = %v, want 2.5", got)
	}
	if first[2].Kind() != record.KindInt || first[2].String() != "24" {
		t.Errorf("FIBERS = %v (%v), want int 24", first[2], first[2].Kind())
	}
	if got := first[3].String(); got != "2024-03-15" {
		t.Errorf("INSTALLED = %q, want 2024-03-15", got)
	}
	if first[4].Arg() != true {
		t.Errorf("ACTIVE = %v, want true", first[4])
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for _, i := range []int{1, 2, 3} {
		if !second[i].IsNull() {
			t.Errorf("empty %s should decode as null, got %v", testFields[i].Name, second[i])
		}
	}
	if second[4].Arg() != false {
		t.Errorf("ACTIVE = %v, want false", second[4])
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next after last row = %v, want io.EOF", err)
	}
}

func TestReaderSkipsDeletedRowsAndKeepsAlignment(t *testing.T) {
	data := buildContainer(t, testFields,
		row(' ', "W-1     ", "   1.0", "   1", "20200101", "T"),
		row('*', "GONE    ", "   9.9", "  99", "19990909", "T"),
		row(' ', "W-2     ", "   2.0", "   2", "20200102", "F"),
		row('*', "GONE2   ", "   9.9", "  99", "19990909", "T"),
	)

	r, err := NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	var numbers []string
	for {
		vals, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		numbers = append(numbers, vals[0].String())
	}

	if len(numbers) != 2 || numbers[0] != "W-1" || numbers[1] != "W-2" {
		t.Errorf("live rows = %v, want [W-1 W-2]", numbers)
	}

	// Alignment: header + N rows fully consumed, deleted rows included.
	hdr := r.Header()
	want := int64(hdr.HeaderLen) + int64(hdr.RecordCount)*int64(hdr.RecordLen)
	if got := r.BytesConsumed(); got != want {
		t.Errorf("BytesConsumed = %d, want %d", got, want)
	}
}

func TestReaderNumericGarbageIsNull(t *testing.T) {
	fields := []FieldDescriptor{
		{Name: "N1", Type: TypeNumeric, Length: 6, Decimals: 1},
		{Name: "N2", Type: TypeNumeric, Length: 4},
		{Name: "D1", Type: TypeDate, Length: 8},
	}
	data := buildContainer(t, fields,
		row(' ', "abc   ", "12x4", "2024film"),
	)

	r, err := NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	vals, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for i, v := range vals {
		if !v.IsNull() {
			t.Errorf("%s = %v, want null", fields[i].Name, v)
		}
	}
}

func TestReaderDecodesCyrillicCharacters(t *testing.T) {
	fields := []FieldDescriptor{
		{Name: "MATERIAL", Type: TypeCharacter, Length: 8},
	}
	// "Колодец" in Windows-1251, padded to field length.
	cell := []byte{0xCA, 0xEE, 0xEB, 0xEE, 0xE4, 0xE5, 0xF6, ' '}
	data := buildContainer(t, fields, append([]byte{' '}, cell...))

	r, err := NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	vals, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := vals[0].String(); got != "Колодец" {
		t.Errorf("MATERIAL = %q, want Колодец", got)
	}
}

func TestReaderStructuralErrors(t *testing.T) {
	valid := buildContainer(t, testFields,
		row(' ', "W-1     ", "   1.0", "   1", "20200101", "T"),
	)

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated header", valid[:16]},
		{"truncated descriptors", valid[:headerSize+10]},
		{"empty input", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewReader(bytes.NewReader(tt.data), nil); err == nil {
				t.Error("NewReader should fail")
			}
		})
	}
}

func TestReaderRecordLengthMismatch(t *testing.T) {
	data := buildContainer(t, testFields,
		row(' ', "W-1     ", "   1.0", "   1", "20200101", "T"),
	)
	// Corrupt the declared record length.
	binary.LittleEndian.PutUint16(data[10:12], 7)

	if _, err := NewReader(bytes.NewReader(data), nil); err == nil {
		t.Error("NewReader should reject record length mismatch")
	}
}
