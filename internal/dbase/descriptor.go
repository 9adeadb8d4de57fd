package dbase

import (
	"bytes"
	"fmt"
)

// descriptorSize is the fixed on-disk size of one field descriptor.
const descriptorSize = 32

// descriptorTerminator marks the end of the field descriptor table.
const descriptorTerminator = 0x0D

// Field type tags.
const (
	TypeNumeric   = 'N'
	TypeCharacter = 'C'
	TypeDate      = 'D'
	TypeLogical   = 'L'
)

// FieldDescriptor describes one column of a dBASE container: its name,
// one-character type tag, byte length within a row, and decimal-place
// count for numeric fields.
type FieldDescriptor struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
}

// MarshalBinary encodes the descriptor into its 32-byte on-disk unit:
// 11-byte NUL-padded name, type tag, 4 reserved bytes, length, decimal
// count, 14 reserved bytes.
func (d FieldDescriptor) MarshalBinary() ([]byte, error) {
	if len(d.Name) > 10 {
		return nil, fmt.Errorf("dbase: field name %q exceeds 10 bytes", d.Name)
	}
	if d.Length < 0 || d.Length > 255 {
		return nil, fmt.Errorf("dbase: field %q length %d out of range", d.Name, d.Length)
	}
	if d.Decimals < 0 || d.Decimals > 255 {
		return nil, fmt.Errorf("dbase: field %q decimal count %d out of range", d.Name, d.Decimals)
	}

	buf := make([]byte, descriptorSize)
	copy(buf[0:11], d.Name)
	buf[11] = d.Type
	buf[16] = byte(d.Length)
	buf[17] = byte(d.Decimals)
	return buf, nil
}

// UnmarshalBinary decodes a 32-byte descriptor unit. The name is cut at
// its first NUL and trimmed of trailing padding.
func (d *FieldDescriptor) UnmarshalBinary(data []byte) error {
	if len(data) != descriptorSize {
		return fmt.Errorf("dbase: field descriptor is %d bytes, want %d", len(data), descriptorSize)
	}

	name := data[0:11]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	d.Name = string(bytes.TrimRight(name, " "))
	d.Type = data[11]
	d.Length = int(data[16])
	d.Decimals = int(data[17])
	return nil
}
