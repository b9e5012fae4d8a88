package device

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/protocol/frame"
	"github.com/danmuck/pixelctl/internal/testutil/testlog"
	"github.com/danmuck/pixelctl/internal/transport"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type harness struct {
	panel      *Panel
	controller *transport.Conn[*protocol.FirmwarePacket]
	replies    chan *protocol.FirmwarePacket
}

func startHarness(t *testing.T, panelIndex uint32, interval time.Duration) *harness {
	t.Helper()
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Transport.ListenAddr = "127.0.0.1:0"
	cfg.PanelIndex = panelIndex
	cfg.InfoInterval = interval
	panel, err := Start(cfg)
	require.NoError(t, err)

	tc := transport.DefaultConfig()
	tc.Role = "controller-test"
	tc.ListenAddr = "127.0.0.1:0"
	controller, err := transport.ListenFirmware(tc)
	require.NoError(t, err)

	h := &harness{panel: panel, controller: controller, replies: make(chan *protocol.FirmwarePacket, 16)}
	controller.AddListener(func(in transport.Inbound[*protocol.FirmwarePacket]) { h.replies <- in.Message })
	t.Cleanup(func() {
		_ = controller.Close()
		_ = panel.Close()
	})
	return h
}

func (h *harness) send(t *testing.T, p *protocol.Packet) {
	t.Helper()
	require.NoError(t, h.controller.SendPacket(context.Background(), h.panel.Addr().String(), p))
}

func (h *harness) next(t *testing.T) *protocol.FirmwarePacket {
	t.Helper()
	select {
	case p := <-h.replies:
		return p
	case <-time.After(waitFor):
		t.Fatalf("no reply from panel")
		return nil
	}
}

func TestFirstPacketGetsFirmwareInfo(t *testing.T) {
	h := startHarness(t, 3, 0)
	h.send(t, &protocol.Packet{FirmwareConfig: &protocol.FirmwareConfig{
		Luminance:   protocol.Uint32(120),
		EasingMode:  protocol.EasingInOutQuad.Ptr(),
		ConfigPhash: protocol.Uint32(99),
	}})

	reply := h.next(t)
	require.NotNil(t, reply.FirmwareInfo)
	require.Equal(t, "blinkenleds-3", *reply.FirmwareInfo.Hostname)
	require.Equal(t, uint32(3), *reply.FirmwareInfo.PanelIndex)
	require.Equal(t, uint32(99), *reply.FirmwareInfo.ConfigPhash)

	state := h.panel.State()
	require.Equal(t, uint32(120), state.Luminance)
	require.Equal(t, protocol.EasingInOutQuad, state.EasingMode)

	// only the first packet from a peer is answered
	h.send(t, &protocol.Packet{InputEvent: &protocol.InputEvent{Type: protocol.InputButton1.Ptr()}})
	require.Eventually(t, func() bool { return h.panel.State().LastInput != nil }, waitFor, 5*time.Millisecond)
	select {
	case extra := <-h.replies:
		t.Fatalf("unexpected reply %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUndecodableDatagramGetsRemoteLog(t *testing.T) {
	h := startHarness(t, 1, 0)
	require.NoError(t, h.controller.Send(context.Background(), h.panel.Addr().String(), []byte{0x0a, 0x7f}))

	reply := h.next(t)
	require.NotNil(t, reply.RemoteLog)
	require.True(t, strings.HasPrefix(*reply.RemoteLog.Message, "decoding failed: "), *reply.RemoteLog.Message)
}

func TestDecodeFailureReplyLeavesHookAtOnce(t *testing.T) {
	h := startHarness(t, 1, 0)
	from := h.controller.LocalAddr()

	start := time.Now()
	for i := 0; i < 3; i++ {
		h.panel.decodeFailed(from, nil, errors.New("truncated"))
	}
	require.Less(t, time.Since(start), 500*time.Millisecond)

	for i := 0; i < 3; i++ {
		reply := h.next(t)
		require.NotNil(t, reply.RemoteLog)
		require.Equal(t, "decoding failed: truncated", *reply.RemoteLog.Message)
	}

	closed := make(chan error, 1)
	go func() { closed <- h.panel.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatalf("Close did not return")
	}
}

func TestSplitFrameShowsOwnPart(t *testing.T) {
	h := startHarness(t, 7, 0)
	layout := frame.DefaultLayout()
	data := make([]byte, layout.Pixels()*frame.BytesPerPixel)
	for i := range data {
		data[i] = byte(i)
	}
	packets, err := frame.Packets(&protocol.RGBFrame{Data: data, EasingInterval: protocol.Uint32(25)}, layout, frame.DefaultLimits())
	require.NoError(t, err)
	require.Len(t, packets, 2)
	for _, p := range packets {
		h.send(t, p)
	}
	h.next(t)

	require.Eventually(t, func() bool { return h.panel.State().Frames == 1 }, waitFor, 5*time.Millisecond)
	state := h.panel.State()
	first := 6 * layout.PixelsPerPanel * frame.BytesPerPixel
	require.Equal(t, Color{R: data[first], G: data[first+1], B: data[first+2]}, state.Pixels[0])
	require.Equal(t, uint32(25), state.EasingInterval)
}

func TestIndexedFramesUsePalette(t *testing.T) {
	h := startHarness(t, 2, 0)
	layout := frame.DefaultLayout()
	data := make([]byte, layout.Pixels())
	data[layout.PixelsPerPanel] = 1   // first pixel of panel 2
	data[layout.PixelsPerPanel+1] = 9 // past the palette
	h.send(t, &protocol.Packet{WFrame: &protocol.WFrame{
		Data:    data,
		Palette: []byte{0, 0, 0, 0, 10, 20, 30, 40},
	}})
	h.next(t)

	require.Eventually(t, func() bool { return h.panel.State().Frames == 1 }, waitFor, 5*time.Millisecond)
	state := h.panel.State()
	require.Equal(t, Color{R: 10, G: 20, B: 30, W: 40}, state.Pixels[0])
	require.Equal(t, Color{}, state.Pixels[1])
}

func TestRunSendsPeriodicInfo(t *testing.T) {
	h := startHarness(t, 1, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.panel.Run(ctx) }()

	h.send(t, &protocol.Packet{})
	h.next(t)
	require.NotNil(t, h.next(t).FirmwareInfo)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatalf("Run did not stop")
	}
}

func TestStartRejectsBadPanelIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.ListenAddr = "127.0.0.1:0"
	cfg.PanelIndex = 11
	_, err := Start(cfg)
	require.Error(t, err)
}
