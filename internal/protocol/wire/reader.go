package wire

import (
	"github.com/danmuck/pixelctl/internal/protocol/buffer"
	"github.com/danmuck/pixelctl/internal/protocol/varint"
)

// Reader decodes fields from a buffer window.
type Reader struct {
	Buf *buffer.Buffer
}

func NewReader(buf *buffer.Buffer) *Reader {
	return &Reader{Buf: buf}
}

// More reports whether bytes remain inside the current limit.
func (r *Reader) More() bool {
	return !r.Buf.AtEnd()
}

// Tag reads the next field tag. A tag with field number 0 marks the end of
// the message; callers stop on it.
func (r *Reader) Tag() (Tag, error) {
	v, err := varint.Read32(r.Buf)
	return Tag(v), err
}

func (r *Reader) Uint32() (uint32, error) {
	return varint.Read32(r.Buf)
}

// Int32 reads a varint and keeps its low 32 bits as a signed value.
func (r *Reader) Int32() (int32, error) {
	v, err := varint.Read32(r.Buf)
	return int32(v), err
}

func (r *Reader) Sint32() (int32, error) {
	v, err := varint.Read32(r.Buf)
	return varint.UnZigZag32(v), err
}

func (r *Reader) Uint64() (uint64, error) {
	return varint.Read64(r.Buf)
}

func (r *Reader) Bool() (bool, error) {
	v, err := varint.Read64(r.Buf)
	return v != 0, err
}

// Bytes reads a length-delimited payload into a fresh slice so decoded
// messages never alias the datagram buffer.
func (r *Reader) Bytes() ([]byte, error) {
	raw, err := r.raw()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (r *Reader) String() (string, error) {
	raw, err := r.raw()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *Reader) raw() ([]byte, error) {
	n, err := varint.Read32(r.Buf)
	if err != nil {
		return nil, err
	}
	return r.Buf.Next(int(n))
}

// Nested reads a length prefix, narrows the limit to that many bytes, runs
// fn and restores the parent limit. fn cannot read past the declared length.
func (r *Reader) Nested(fn func(*Reader) error) error {
	n, err := varint.Read32(r.Buf)
	if err != nil {
		return err
	}
	saved, err := r.Buf.PushLimit(int(n))
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	r.Buf.PopLimit(saved)
	return nil
}

// Skip discards the payload of a field with the given tag.
func (r *Reader) Skip(tag Tag) error {
	switch tag.WireType() {
	case Varint:
		for {
			b, err := r.Buf.ReadByte()
			if err != nil {
				return err
			}
			if b&0x80 == 0 {
				return nil
			}
		}
	case Bytes:
		n, err := varint.Read32(r.Buf)
		if err != nil {
			return err
		}
		return r.Buf.Skip(int(n))
	case Fixed32:
		return r.Buf.Skip(4)
	case Fixed64:
		return r.Buf.Skip(8)
	default:
		return &UnsupportedWireTypeError{WireType: tag.WireType(), Field: tag.Field()}
	}
}
