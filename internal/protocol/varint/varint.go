// Package varint implements base-128 varints and zig-zag mapping.
//
// Values are written least-significant group first with the continuation
// bit (0x80) set on every byte but the last.
package varint

import (
	"errors"
	"io"
)

// MaxLen64 is the longest encoding of a 64-bit value.
const MaxLen64 = 10

var ErrMalformed = errors.New("varint: more than 10 bytes")

// Write32 encodes v onto w.
func Write32(w io.ByteWriter, v uint32) error {
	for v >= 0x80 {
		if err := w.WriteByte(byte(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return w.WriteByte(byte(v))
}

// Read32 decodes a varint into a 32-bit accumulator. Bits above bit 31
// carried by longer encodings are consumed and dropped.
func Read32(r io.ByteReader) (uint32, error) {
	var v uint32
	for i := 0; i < MaxLen64; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift := uint(7 * i); shift < 32 {
			v |= uint32(b&0x7f) << shift
		}
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrMalformed
}

// Size64 returns the encoded length of v, 1 through 10.
func Size64(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Put64 encodes v into dst, which must hold Size64(v) bytes, and returns the
// number of bytes written.
func Put64(dst []byte, v uint64) int {
	i := 0
	for v >= 0x80 {
		dst[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	dst[i] = byte(v)
	return i + 1
}

// Read64 decodes up to 10 bytes into a 64-bit value.
func Read64(r io.ByteReader) (uint64, error) {
	var v uint64
	for i := 0; i < MaxLen64; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << uint(7*i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrMalformed
}

func ZigZag32(n int32) uint32 {
	return uint32(n<<1) ^ uint32(n>>31)
}

func UnZigZag32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

func ZigZag64(n int64) uint64 {
	return uint64(n<<1) ^ uint64(n>>63)
}

func UnZigZag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
