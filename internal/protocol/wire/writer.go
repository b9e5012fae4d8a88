package wire

import (
	"github.com/danmuck/pixelctl/internal/protocol/buffer"
	"github.com/danmuck/pixelctl/internal/protocol/varint"
)

// Writer appends fields to a buffer. Nested messages are staged in scratch
// buffers taken from Pool.
type Writer struct {
	Buf  *buffer.Buffer
	Pool *buffer.Pool
}

func NewWriter(buf *buffer.Buffer, pool *buffer.Pool) *Writer {
	return &Writer{Buf: buf, Pool: pool}
}

func (w *Writer) Tag(field uint32, wt WireType) {
	_ = varint.Write32(w.Buf, uint32(MakeTag(field, wt)))
}

func (w *Writer) Uint32(field uint32, v uint32) {
	w.Tag(field, Varint)
	_ = varint.Write32(w.Buf, v)
}

// Int32 writes v sign-extended to 64 bits, so negatives take ten bytes.
func (w *Writer) Int32(field uint32, v int32) {
	w.Tag(field, Varint)
	w.varint64(uint64(int64(v)))
}

// Sint32 writes v zig-zag encoded.
func (w *Writer) Sint32(field uint32, v int32) {
	w.Tag(field, Varint)
	_ = varint.Write32(w.Buf, varint.ZigZag32(v))
}

func (w *Writer) Uint64(field uint32, v uint64) {
	w.Tag(field, Varint)
	w.varint64(v)
}

func (w *Writer) Bool(field uint32, v bool) {
	w.Tag(field, Varint)
	b := byte(0)
	if v {
		b = 1
	}
	_ = w.Buf.WriteByte(b)
}

func (w *Writer) Bytes(field uint32, v []byte) {
	w.Tag(field, Bytes)
	_ = varint.Write32(w.Buf, uint32(len(v)))
	_, _ = w.Buf.Write(v)
}

func (w *Writer) String(field uint32, v string) {
	w.Tag(field, Bytes)
	_ = varint.Write32(w.Buf, uint32(len(v)))
	copy(w.Buf.Extend(len(v)), v)
}

// Message encodes a nested message through fn into a scratch buffer and
// writes it length-delimited.
func (w *Writer) Message(field uint32, fn func(*Writer)) {
	w.Tag(field, Bytes)
	nested := w.Pool.Acquire()
	defer w.Pool.Release(nested)
	fn(&Writer{Buf: nested, Pool: w.Pool})
	_ = varint.Write32(w.Buf, uint32(nested.Limit))
	_, _ = w.Buf.Write(nested.Finalize())
}

func (w *Writer) varint64(v uint64) {
	varint.Put64(w.Buf.Extend(varint.Size64(v)), v)
}
