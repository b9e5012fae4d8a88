package frame

import (
	"bytes"
	"testing"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/stretchr/testify/require"
)

func rgbFrame(pixels int) *protocol.RGBFrame {
	data := make([]byte, pixels*BytesPerPixel)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return &protocol.RGBFrame{Data: data, EasingInterval: protocol.Uint32(40)}
}

func TestSplitJoinPreservesPixels(t *testing.T) {
	f := rgbFrame(640)
	part1, part2, err := Split(f, 320)
	require.NoError(t, err)
	require.Len(t, part1.Data, 320*BytesPerPixel)
	require.Len(t, part2.Data, 320*BytesPerPixel)
	require.Equal(t, uint32(40), *part1.EasingInterval)
	require.Equal(t, uint32(40), *part2.EasingInterval)

	joined := Join(part1, part2)
	require.True(t, bytes.Equal(f.Data, joined.Data))
}

func TestSplitBeyondEndLeavesPart2Empty(t *testing.T) {
	part1, part2, err := Split(rgbFrame(4), 10)
	require.NoError(t, err)
	require.Len(t, part1.Data, 12)
	require.Empty(t, part2.Data)
}

func TestSplitRejectsPartialPixels(t *testing.T) {
	_, _, err := Split(&protocol.RGBFrame{Data: []byte{1, 2}}, 1)
	require.ErrorIs(t, err, ErrPixelAlignment)
}

func TestPackedFrameSurvivesCodec(t *testing.T) {
	f := rgbFrame(640)
	p, err := Packed(f, DefaultLayout().SplitPixel())
	require.NoError(t, err)

	b, err := protocol.Marshal(p)
	require.NoError(t, err)
	out, err := protocol.DecodePacket(b)
	require.NoError(t, err)
	require.NotNil(t, out.RGBFramePart1)
	require.NotNil(t, out.RGBFramePart2)

	got, ok := Reassemble(out)
	require.True(t, ok)
	require.Equal(t, f.Data, got.Data)
}

func TestPacketsSmallFrameIsSingle(t *testing.T) {
	packets, err := Packets(rgbFrame(64), DefaultLayout(), DefaultLimits())
	require.NoError(t, err)
	require.Len(t, packets, 1)
	require.NotNil(t, packets[0].RGBFrame)
}

func TestPacketsFullStripSplitsAtPanelBoundary(t *testing.T) {
	layout := DefaultLayout()
	f := rgbFrame(layout.Pixels())
	packets, err := Packets(f, layout, DefaultLimits())
	require.NoError(t, err)
	require.Len(t, packets, 2)
	require.NotNil(t, packets[0].RGBFramePart1)
	require.Nil(t, packets[0].RGBFramePart2)
	require.NotNil(t, packets[1].RGBFramePart2)
	require.Len(t, packets[0].RGBFramePart1.Data, layout.SplitPixel()*BytesPerPixel)

	var a Assembler
	_, ok := a.Add(packets[1])
	require.False(t, ok)
	got, ok := a.Add(packets[0])
	require.True(t, ok)
	require.Equal(t, f.Data, got.Data)
}

func TestPacketsTooLarge(t *testing.T) {
	_, err := Packets(rgbFrame(2000), DefaultLayout(), DefaultLimits())
	require.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = Packets(&protocol.RGBFrame{Data: []byte{1}}, DefaultLayout(), DefaultLimits())
	require.ErrorIs(t, err, ErrPixelAlignment)
}

func TestPanelPixelsReadsOwnPart(t *testing.T) {
	layout := DefaultLayout()
	f := rgbFrame(layout.Pixels())
	p, err := Packed(f, layout.SplitPixel())
	require.NoError(t, err)

	stride := layout.PixelsPerPanel * BytesPerPixel
	for panel := 1; panel <= layout.Panels; panel++ {
		got, ok := layout.PanelPixels(p, panel)
		require.True(t, ok, "panel %d", panel)
		want := f.Data[(panel-1)*stride : panel*stride]
		require.Equal(t, want, got, "panel %d", panel)
	}

	only1 := &protocol.Packet{RGBFramePart1: p.RGBFramePart1}
	_, ok := layout.PanelPixels(only1, 7)
	require.False(t, ok)
	_, ok = layout.PanelPixels(p, 11)
	require.False(t, ok)
}

func TestLayoutValidate(t *testing.T) {
	require.NoError(t, DefaultLayout().Validate())
	require.ErrorIs(t, Layout{Panels: 2, PixelsPerPanel: 4, SplitPanel: 2}.Validate(), ErrInvalidLayout)
	require.ErrorIs(t, Layout{}.Validate(), ErrInvalidLayout)
}
