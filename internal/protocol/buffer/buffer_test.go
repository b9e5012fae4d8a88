package buffer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireIsResetAndClean(t *testing.T) {
	p := NewPool()
	b := p.Acquire()
	_, _ = b.Write([]byte{1, 2, 3, 4})
	p.Release(b)

	again := p.Acquire()
	require.Equal(t, 0, again.Offset)
	require.Equal(t, 0, again.Limit)
	require.Empty(t, again.Finalize())
	for _, c := range again.bytes[:4] {
		require.Zero(t, c)
	}
}

func TestNilPoolAllocates(t *testing.T) {
	var p *Pool
	b := p.Acquire()
	require.NotNil(t, b)
	p.Release(b)
}

func TestGrowthIsGeometricAndKeepsLimit(t *testing.T) {
	b := New()
	payload := make([]byte, 100)
	_, _ = b.Write(payload)
	require.GreaterOrEqual(t, len(b.bytes), 200)
	require.Equal(t, 100, b.Limit)

	b.Offset = 10
	_ = b.WriteByte(0xff)
	require.Equal(t, 100, b.Limit, "rewriting inside the window must not shrink limit")
	require.Equal(t, byte(0xff), b.Finalize()[10])
}

func TestFinalizeAvoidsCopyWhenExact(t *testing.T) {
	src := []byte{1, 2, 3}
	b := Wrap(src)
	out := b.Finalize()
	require.Equal(t, src, out)
	require.Same(t, &src[0], &out[0])
}

func TestReadPastLimit(t *testing.T) {
	b := Wrap([]byte{0x01})
	c, err := b.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(1), c)

	_, err = b.ReadByte()
	require.ErrorIs(t, err, ErrRange)

	var rangeErr *RangeError
	require.True(t, errors.As(err, &rangeErr))
	require.Equal(t, 1, rangeErr.Offset)
	require.Equal(t, 1, rangeErr.Limit)

	require.ErrorIs(t, b.Skip(1), ErrRange)
	_, err = b.Next(2)
	require.ErrorIs(t, err, ErrRange)
}

func TestPushPopLimit(t *testing.T) {
	b := Wrap([]byte{1, 2, 3, 4, 5})
	_, _ = b.ReadByte()

	saved, err := b.PushLimit(2)
	require.NoError(t, err)
	require.Equal(t, 5, saved)
	require.Equal(t, 3, b.Limit)

	_, _ = b.ReadByte()
	_, err = b.Next(2)
	require.ErrorIs(t, err, ErrRange, "nested window must not expose parent bytes")

	b.PopLimit(saved)
	require.Equal(t, 3, b.Offset)
	require.Equal(t, 5, b.Limit)

	_, err = b.PushLimit(3)
	require.ErrorIs(t, err, ErrRange)
}
