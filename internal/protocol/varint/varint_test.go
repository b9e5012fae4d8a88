package varint

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRead32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 200, 300, 16383, 16384, 1 << 21, 1<<28 - 1, 1 << 28, math.MaxUint32}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, Write32(&buf, v))
		got, err := Read32(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestWrite32KnownBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write32(&buf, 200))
	require.Equal(t, []byte{0xc8, 0x01}, buf.Bytes())
}

func TestRead32DropsHighBits(t *testing.T) {
	// 2^32 + 5 encoded as a 64-bit varint.
	dst := make([]byte, MaxLen64)
	n := Put64(dst, 1<<32+5)
	r := bytes.NewReader(dst[:n])
	got, err := Read32(r)
	require.NoError(t, err)
	require.Equal(t, uint32(5), got)
	require.Zero(t, r.Len(), "all continuation bytes are consumed")
}

func TestRead32SignExtendedNegative(t *testing.T) {
	v := int64(-1)
	dst := make([]byte, MaxLen64)
	n := Put64(dst, uint64(v))
	require.Equal(t, 10, n)
	got, err := Read32(bytes.NewReader(dst[:n]))
	require.NoError(t, err)
	require.Equal(t, int32(-1), int32(got))
}

func TestOverlongRejected(t *testing.T) {
	src := bytes.Repeat([]byte{0x80}, 11)
	_, err := Read32(bytes.NewReader(src))
	require.ErrorIs(t, err, ErrMalformed)
	_, err = Read64(bytes.NewReader(src))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSize64(t *testing.T) {
	cases := map[uint64]int{
		0:              1,
		127:            1,
		128:            2,
		1<<14 - 1:      2,
		1 << 14:        3,
		1<<35 - 1:      5,
		1 << 35:        6,
		1 << 63:        10,
		math.MaxUint64: 10,
	}
	for v, want := range cases {
		require.Equal(t, want, Size64(v), "v=%d", v)
		dst := make([]byte, want)
		require.Equal(t, want, Put64(dst, v))
		got, err := Read64(bytes.NewReader(dst))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestZigZag(t *testing.T) {
	require.Equal(t, uint32(0), ZigZag32(0))
	require.Equal(t, uint32(1), ZigZag32(-1))
	require.Equal(t, uint32(2), ZigZag32(1))
	require.Equal(t, uint32(math.MaxUint32), ZigZag32(math.MinInt32))

	for _, n := range []int32{0, 1, -1, 63, -64, 1000, -1000, math.MaxInt32, math.MinInt32} {
		require.Equal(t, n, UnZigZag32(ZigZag32(n)))
	}
	for _, n := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64, -1 << 40} {
		require.Equal(t, n, UnZigZag64(ZigZag64(n)))
	}
}

func FuzzVarint32(f *testing.F) {
	f.Add(uint32(0))
	f.Add(uint32(math.MaxUint32))
	f.Fuzz(func(t *testing.T, v uint32) {
		var buf bytes.Buffer
		if err := Write32(&buf, v); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := Read32(bytes.NewReader(buf.Bytes()))
		if err != nil || got != v {
			t.Fatalf("round trip v=%d got=%d err=%v", v, got, err)
		}
		if n := UnZigZag32(ZigZag32(int32(v))); n != int32(v) {
			t.Fatalf("zigzag v=%d got=%d", int32(v), n)
		}
	})
}
