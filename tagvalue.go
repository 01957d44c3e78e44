package mediameta

import (
	"encoding/binary"
	"fmt"
)

// Type represents the basic TIFF tag data types.
//
//go:generate stringer -type=Type
type Type uint16

const (
	TypeUnsignedByte  Type = 1
	TypeASCII         Type = 2
	TypeUnsignedShort Type = 3
	TypeUnsignedLong  Type = 4
	TypeUnsignedRat   Type = 5
	TypeSignedByte    Type = 6
	TypeUndef         Type = 7
	TypeSignedShort   Type = 8
	TypeSignedLong    Type = 9
	TypeSignedRat     Type = 10
	TypeSignedFloat   Type = 11
	TypeSignedDouble  Type = 12
)

// Size in bytes of each type.
var typeSize = map[Type]uint32{
	TypeUnsignedByte:  1,
	TypeASCII:         1,
	TypeUnsignedShort: 2,
	TypeUnsignedLong:  4,
	TypeUnsignedRat:   8,
	TypeSignedByte:    1,
	TypeUndef:         1,
	TypeSignedShort:   2,
	TypeSignedLong:    4,
	TypeSignedRat:     8,
	TypeSignedFloat:   4,
	TypeSignedDouble:  8,
}

// Size returns the encoded size in bytes of one value of type t, or 0 for an
// unknown type code.
func (t Type) Size() uint32 {
	return typeSize[t]
}

// Field is a single directory entry: a tag ID, a type, and the raw value
// bytes in the directory's byte order. Raw bytes keep foreign tags intact on
// the write path; typed access goes through the accessors below.
type Field struct {
	ID    uint16
	Type  Type
	Count uint32
	Data  []byte

	// offset of the value bytes within the decode arena, when the field was
	// produced by the decoder and its value did not fit inline. Zero for
	// inline values and for caller-built fields. The maker-note registry
	// needs it to resolve vendor-relative offsets.
	offset uint32
}

// Size returns the encoded byte length of the field's value.
func (f Field) Size() uint32 {
	return f.Type.Size() * f.Count
}

// Short returns the i'th value of an unsigned short field.
func (f Field) Short(i uint32, order binary.ByteOrder) uint16 {
	return order.Uint16(f.Data[2*i:])
}

// Long returns the i'th value of an unsigned long field.
func (f Field) Long(i uint32, order binary.ByteOrder) uint32 {
	return order.Uint32(f.Data[4*i:])
}

// Rational returns the i'th numerator/denominator pair of a RATIONAL field.
func (f Field) Rational(i uint32, order binary.ByteOrder) (uint32, uint32) {
	return order.Uint32(f.Data[8*i:]), order.Uint32(f.Data[8*i+4:])
}

// SRational returns the i'th numerator/denominator pair of an SRATIONAL field.
func (f Field) SRational(i uint32, order binary.ByteOrder) (int32, int32) {
	return int32(order.Uint32(f.Data[8*i:])), int32(order.Uint32(f.Data[8*i+4:]))
}

// ASCII returns the text content of an ASCII field up to the first NUL.
func (f Field) ASCII() string {
	for i, b := range f.Data {
		if b == 0 {
			return string(f.Data[:i])
		}
	}
	return string(f.Data)
}

// NewASCIIField builds a NUL-terminated ASCII field.
func NewASCIIField(id uint16, s string) Field {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return Field{ID: id, Type: TypeASCII, Count: uint32(len(data)), Data: data}
}

// NewShortField builds an unsigned short field.
func NewShortField(id uint16, order binary.ByteOrder, vals ...uint16) Field {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		order.PutUint16(data[2*i:], v)
	}
	return Field{ID: id, Type: TypeUnsignedShort, Count: uint32(len(vals)), Data: data}
}

// NewLongField builds an unsigned long field.
func NewLongField(id uint16, order binary.ByteOrder, vals ...uint32) Field {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		order.PutUint32(data[4*i:], v)
	}
	return Field{ID: id, Type: TypeUnsignedLong, Count: uint32(len(vals)), Data: data}
}

// NewRationalField builds an unsigned rational field from numerator/denominator pairs.
func NewRationalField(id uint16, order binary.ByteOrder, pairs ...[2]uint32) Field {
	data := make([]byte, 8*len(pairs))
	for i, p := range pairs {
		order.PutUint32(data[8*i:], p[0])
		order.PutUint32(data[8*i+4:], p[1])
	}
	return Field{ID: id, Type: TypeUnsignedRat, Count: uint32(len(pairs)), Data: data}
}

// NewSRationalField builds a signed rational field from numerator/denominator pairs.
func NewSRationalField(id uint16, order binary.ByteOrder, pairs ...[2]int32) Field {
	data := make([]byte, 8*len(pairs))
	for i, p := range pairs {
		order.PutUint32(data[8*i:], uint32(p[0]))
		order.PutUint32(data[8*i+4:], uint32(p[1]))
	}
	return Field{ID: id, Type: TypeSignedRat, Count: uint32(len(pairs)), Data: data}
}

// NewUndefinedField builds an UNDEFINED field holding opaque bytes.
func NewUndefinedField(id uint16, data []byte) Field {
	return Field{ID: id, Type: TypeUndef, Count: uint32(len(data)), Data: data}
}

// IFD is a decoded directory: its entries plus the recognized sub-directories
// hanging off it. Next chains to the following directory (IFD1 after IFD0).
type IFD struct {
	Fields []Field

	Exif    *IFD
	GPS     *IFD
	Interop *IFD
	Next    *IFD
}

// Field returns the entry with the given tag ID, or nil.
func (d *IFD) Field(id uint16) *Field {
	for i := range d.Fields {
		if d.Fields[i].ID == id {
			return &d.Fields[i]
		}
	}
	return nil
}

// SetField replaces the entry with the same tag ID or appends a new one.
// Entry order is normalized at encode time, so append order does not matter.
func (d *IFD) SetField(f Field) {
	for i := range d.Fields {
		if d.Fields[i].ID == f.ID {
			d.Fields[i] = f
			return
		}
	}
	d.Fields = append(d.Fields, f)
}

// DeleteField removes the entry with the given tag ID, if present.
func (d *IFD) DeleteField(id uint16) {
	for i := range d.Fields {
		if d.Fields[i].ID == id {
			d.Fields = append(d.Fields[:i], d.Fields[i+1:]...)
			return
		}
	}
}

func (f Field) String() string {
	return fmt.Sprintf("tag 0x%04x type %d count %d (%d bytes)", f.ID, f.Type, f.Count, f.Size())
}
