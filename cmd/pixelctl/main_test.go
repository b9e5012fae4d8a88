package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/pixelctl/internal/device"
	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testlog.Start(t)
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	testlog.Logf(t, "pixelctl %s -> %q err=%v", strings.Join(args, " "), out.String(), err)
	return out.String(), err
}

func TestInspectPrintsFields(t *testing.T) {
	out, err := run(t, "inspect", "32 04 08 01 18 01")
	require.NoError(t, err)
	require.Contains(t, out, "input_event=InputEvent{type=BUTTON_2 value=1}")

	_, err = run(t, "inspect", "zz")
	require.Error(t, err)
}

func TestConfigInitThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.toml")
	_, err := run(t, "config", "init", "--kind", "device", "-o", path)
	require.NoError(t, err)

	out, err := run(t, "config", "validate", path)
	require.NoError(t, err)
	require.Contains(t, out, "ok")

	_, err = run(t, "config", "init", "--kind", "device", "-o", path)
	require.Error(t, err)
}

func TestSendConfigReachesPanel(t *testing.T) {
	testlog.Start(t)
	cfg := device.DefaultConfig()
	cfg.Transport.ListenAddr = "127.0.0.1:0"
	cfg.InfoInterval = 0
	panel, err := device.Start(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = panel.Close() })

	out, err := run(t, "send", "config", "-t", panel.Addr().String(), "--luminance", "12", "--easing", "EASE_IN_EXPO", "--wait", "300ms")
	require.NoError(t, err)
	require.Contains(t, out, `"hostname":"blinkenleds-1"`)

	state := panel.State()
	require.Equal(t, uint32(12), state.Luminance)
	require.Equal(t, protocol.EasingInExpo, state.EasingMode)
}

func TestSendRequiresTargets(t *testing.T) {
	_, err := run(t, "send", "input", "--type", "BUTTON_1")
	require.ErrorContains(t, err, "no targets")
}

func TestSendRGBFill(t *testing.T) {
	testlog.Start(t)
	cfg := device.DefaultConfig()
	cfg.Transport.ListenAddr = "127.0.0.1:0"
	cfg.InfoInterval = 0
	cfg.PanelIndex = 6
	panel, err := device.Start(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = panel.Close() })

	_, err = run(t, "send", "rgb", "-t", panel.Addr().String(), "--fill", "#ff8000")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return panel.State().Frames == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, device.Color{R: 0xff, G: 0x80}, panel.State().Pixels[0])
}
