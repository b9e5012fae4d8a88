// Package wire owns the tag/wire-type layer of the codec.
//
// Ownership boundary:
// - tag packing and wire types
// - scalar, bytes and nested field primitives over buffer.Buffer
// - unknown-field skipping
package wire

import (
	"errors"
	"fmt"
)

// WireType is the 3-bit tag suffix describing how to parse a payload.
type WireType uint8

const (
	Varint  WireType = 0 // bool, enum, int32, uint32
	Fixed64 WireType = 1
	Bytes   WireType = 2 // string, bytes, embedded messages
	Fixed32 WireType = 5
)

func (wt WireType) String() string {
	switch wt {
	case Varint:
		return "varint"
	case Fixed64:
		return "fixed64"
	case Bytes:
		return "bytes"
	case Fixed32:
		return "fixed32"
	default:
		return fmt.Sprintf("wiretype(%d)", uint8(wt))
	}
}

// Tag is the combined field-number/wire-type prefix of a field.
type Tag uint32

func MakeTag(field uint32, wt WireType) Tag {
	return Tag(field<<3 | uint32(wt))
}

func (t Tag) Field() uint32 {
	return uint32(t) >> 3
}

func (t Tag) WireType() WireType {
	return WireType(t & 0x7)
}

var ErrUnsupportedWireType = errors.New("wire: unsupported wire type")

// UnsupportedWireTypeError reports a wire type whose length cannot be
// determined, so the field cannot be skipped.
type UnsupportedWireTypeError struct {
	WireType WireType
	Field    uint32
}

func (e *UnsupportedWireTypeError) Error() string {
	return fmt.Sprintf("wire: unsupported wire type %d for field %d", uint8(e.WireType), e.Field)
}

func (e *UnsupportedWireTypeError) Is(target error) bool {
	return target == ErrUnsupportedWireType
}
