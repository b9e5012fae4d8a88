package buffer

import (
	"errors"
	"fmt"
)

const initialCapacity = 64

var ErrRange = errors.New("buffer: read past limit")

// RangeError reports an access beyond the valid window of a Buffer.
type RangeError struct {
	Offset int
	Count  int
	Limit  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("buffer: read past limit: offset=%d count=%d limit=%d", e.Offset, e.Count, e.Limit)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRange
}

// Buffer is an encode/decode window over a growable byte store.
// Offset is the read/write cursor; Limit bounds the valid bytes.
type Buffer struct {
	bytes  []byte
	Offset int
	Limit  int
}

// New returns an empty buffer ready for writing.
func New() *Buffer {
	return &Buffer{bytes: make([]byte, initialCapacity)}
}

// Wrap returns a decode-only view of b with Limit = len(b).
func Wrap(b []byte) *Buffer {
	return &Buffer{bytes: b, Limit: len(b)}
}

// Reset rewinds the buffer to Offset = Limit = 0.
func (b *Buffer) Reset() {
	b.Offset = 0
	b.Limit = 0
}

// Len reports the number of valid bytes.
func (b *Buffer) Len() int {
	return b.Limit
}

// AtEnd reports whether the cursor reached the limit.
func (b *Buffer) AtEnd() bool {
	return b.Offset >= b.Limit
}

// Finalize returns the bytes in [0, Limit). The returned slice aliases the
// backing store and is only valid until the buffer is written again.
func (b *Buffer) Finalize() []byte {
	if len(b.bytes) == b.Limit {
		return b.bytes
	}
	return b.bytes[:b.Limit]
}

// Extend reserves n bytes at the cursor, advances past them and returns the
// window for the caller to fill.
func (b *Buffer) Extend(n int) []byte {
	at := b.grow(n)
	return b.bytes[at : at+n]
}

func (b *Buffer) grow(n int) int {
	at := b.Offset
	end := at + n
	if end > len(b.bytes) {
		size := 2 * end
		if size < initialCapacity {
			size = initialCapacity
		}
		next := make([]byte, size)
		copy(next, b.bytes)
		b.bytes = next
	}
	b.Offset = end
	if end > b.Limit {
		b.Limit = end
	}
	return at
}

func (b *Buffer) advance(n int) (int, error) {
	at := b.Offset
	if n < 0 || at+n > b.Limit {
		return 0, &RangeError{Offset: at, Count: n, Limit: b.Limit}
	}
	b.Offset += n
	return at, nil
}

// WriteByte implements io.ByteWriter. It never fails.
func (b *Buffer) WriteByte(c byte) error {
	at := b.grow(1)
	b.bytes[at] = c
	return nil
}

// Write appends p at the cursor. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	at := b.grow(len(p))
	copy(b.bytes[at:], p)
	return len(p), nil
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	at, err := b.advance(1)
	if err != nil {
		return 0, err
	}
	return b.bytes[at], nil
}

// Next returns the next n bytes without copying.
func (b *Buffer) Next(n int) ([]byte, error) {
	at, err := b.advance(n)
	if err != nil {
		return nil, err
	}
	return b.bytes[at : at+n : at+n], nil
}

// Skip advances the cursor by n bytes.
func (b *Buffer) Skip(n int) error {
	_, err := b.advance(n)
	return err
}

// PushLimit narrows the window to the next n bytes and returns the limit to
// restore with PopLimit once the nested region is consumed.
func (b *Buffer) PushLimit(n int) (int, error) {
	if n < 0 || b.Offset+n > b.Limit {
		return 0, &RangeError{Offset: b.Offset, Count: n, Limit: b.Limit}
	}
	saved := b.Limit
	b.Limit = b.Offset + n
	return saved, nil
}

// PopLimit restores a limit saved by PushLimit. The cursor moves to the end
// of the nested window so trailing bytes inside it are dropped.
func (b *Buffer) PopLimit(saved int) {
	if b.Offset < b.Limit {
		b.Offset = b.Limit
	}
	b.Limit = saved
}
