// Package config loads pixelctl TOML files. Keys left out of a file keep the
// defaults of the component they configure.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/pixelctl/internal/controller"
	"github.com/danmuck/pixelctl/internal/device"
	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/protocol/frame"
	"github.com/danmuck/pixelctl/internal/transport"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the resolved configuration of every pixelctl role.
type Config struct {
	Controller controller.Config
	Device     device.Config
}

func Default() Config {
	return Config{
		Controller: controller.DefaultConfig(),
		Device:     device.DefaultConfig(),
	}
}

type fileConfig struct {
	Layout     layoutSection     `toml:"layout"`
	Limits     limitsSection     `toml:"limits"`
	Firmware   firmwareSection   `toml:"firmware"`
	Controller controllerSection `toml:"controller"`
	Device     deviceSection     `toml:"device"`
}

type layoutSection struct {
	Panels         int `toml:"panels"`
	PixelsPerPanel int `toml:"pixels_per_panel"`
	SplitPanel     int `toml:"split_panel"`
}

type limitsSection struct {
	MaxDatagramBytes int `toml:"max_datagram_bytes"`
}

type firmwareSection struct {
	Luminance         uint32 `toml:"luminance"`
	EasingMode        string `toml:"easing_mode"`
	ShowTestFrame     bool   `toml:"show_test_frame"`
	EnableCalibration bool   `toml:"enable_calibration"`
}

type transportSection struct {
	ListenAddr      string `toml:"listen_addr"`
	Port            int    `toml:"port"`
	MailboxSize     int    `toml:"mailbox_size"`
	ReadBufferBytes int    `toml:"read_buffer_bytes"`
	Ordered         bool   `toml:"ordered"`
}

type backoffSection struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

type controllerSection struct {
	transportSection
	Name           string         `toml:"name"`
	HTTPAddr       string         `toml:"http_addr"`
	CorsOrigins    []string       `toml:"cors_origins"`
	Targets        []string       `toml:"targets"`
	AuthToken      string         `toml:"auth_token"`
	ResendInterval string         `toml:"resend_interval"`
	StaleAfter     string         `toml:"stale_after"`
	LogLimit       int            `toml:"log_limit"`
	Backoff        backoffSection `toml:"backoff"`
}

type deviceSection struct {
	transportSection
	Hostname     string `toml:"hostname"`
	BuildTime    string `toml:"build_time"`
	PanelIndex   uint32 `toml:"panel_index"`
	InfoInterval string `toml:"info_interval"`
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := resolve(raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load over TOML text.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	return resolve(raw, meta)
}

func resolve(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}

	layout := frame.DefaultLayout()
	if meta.IsDefined("layout", "panels") {
		layout.Panels = raw.Layout.Panels
	}
	if meta.IsDefined("layout", "pixels_per_panel") {
		layout.PixelsPerPanel = raw.Layout.PixelsPerPanel
	}
	if meta.IsDefined("layout", "split_panel") {
		layout.SplitPanel = raw.Layout.SplitPanel
	}
	cfg.Controller.Layout = layout
	cfg.Device.Layout = layout

	if meta.IsDefined("limits", "max_datagram_bytes") {
		cfg.Controller.Limits.MaxDatagramBytes = raw.Limits.MaxDatagramBytes
	}

	if err := resolveFirmware(cfg.Controller.Firmware, raw.Firmware, meta); err != nil {
		return Config{}, err
	}
	if err := resolveController(&cfg.Controller, raw.Controller, meta); err != nil {
		return Config{}, err
	}
	if err := resolveDevice(&cfg.Device, raw.Device, meta); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveFirmware(fw *protocol.FirmwareConfig, raw firmwareSection, meta toml.MetaData) error {
	if meta.IsDefined("firmware", "luminance") {
		fw.Luminance = protocol.Uint32(raw.Luminance)
	}
	if meta.IsDefined("firmware", "easing_mode") {
		mode, err := protocol.ParseEasingMode(strings.TrimSpace(raw.EasingMode))
		if err != nil {
			return fmt.Errorf("parse firmware.easing_mode: %w", err)
		}
		fw.EasingMode = mode.Ptr()
	}
	if meta.IsDefined("firmware", "show_test_frame") {
		fw.ShowTestFrame = protocol.Bool(raw.ShowTestFrame)
	}
	if meta.IsDefined("firmware", "enable_calibration") {
		fw.EnableCalibration = protocol.Bool(raw.EnableCalibration)
	}
	return nil
}

func resolveController(cfg *controller.Config, raw controllerSection, meta toml.MetaData) error {
	const s = "controller"
	resolveTransport(&cfg.Transport, raw.transportSection, meta, s)
	if meta.IsDefined(s, "name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined(s, "http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined(s, "cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined(s, "targets") {
		cfg.Targets = normalizeList(raw.Targets)
	}
	if meta.IsDefined(s, "auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined(s, "log_limit") {
		cfg.LogLimit = raw.LogLimit
	}
	var err error
	if cfg.ResendInterval, err = duration(meta, raw.ResendInterval, cfg.ResendInterval, s, "resend_interval"); err != nil {
		return err
	}
	if cfg.StaleAfter, err = duration(meta, raw.StaleAfter, cfg.StaleAfter, s, "stale_after"); err != nil {
		return err
	}

	b := raw.Backoff
	if cfg.Backoff.InitialDelay, err = duration(meta, b.InitialDelay, cfg.Backoff.InitialDelay, s, "backoff", "initial_delay"); err != nil {
		return err
	}
	if cfg.Backoff.MaxDelay, err = duration(meta, b.MaxDelay, cfg.Backoff.MaxDelay, s, "backoff", "max_delay"); err != nil {
		return err
	}
	if meta.IsDefined(s, "backoff", "multiplier") {
		cfg.Backoff.Multiplier = b.Multiplier
	}
	if meta.IsDefined(s, "backoff", "jitter") {
		cfg.Backoff.Jitter = b.Jitter
	}
	return nil
}

func resolveDevice(cfg *device.Config, raw deviceSection, meta toml.MetaData) error {
	const s = "device"
	resolveTransport(&cfg.Transport, raw.transportSection, meta, s)
	if meta.IsDefined(s, "hostname") {
		cfg.Hostname = strings.TrimSpace(raw.Hostname)
	}
	if meta.IsDefined(s, "build_time") {
		cfg.BuildTime = strings.TrimSpace(raw.BuildTime)
	}
	if meta.IsDefined(s, "panel_index") {
		cfg.PanelIndex = raw.PanelIndex
	}
	var err error
	cfg.InfoInterval, err = duration(meta, raw.InfoInterval, cfg.InfoInterval, s, "info_interval")
	return err
}

func resolveTransport(cfg *transport.Config, raw transportSection, meta toml.MetaData, section string) {
	if meta.IsDefined(section, "listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined(section, "port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined(section, "mailbox_size") {
		cfg.MailboxSize = raw.MailboxSize
	}
	if meta.IsDefined(section, "read_buffer_bytes") {
		cfg.ReadBufferBytes = raw.ReadBufferBytes
	}
	if meta.IsDefined(section, "ordered") {
		cfg.Ordered = raw.Ordered
	}
}

func duration(meta toml.MetaData, raw string, current time.Duration, key ...string) (time.Duration, error) {
	if !meta.IsDefined(key...) {
		return current, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", strings.Join(key, "."), err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate reports the first setting no role could run with.
func Validate(cfg Config) error {
	c := cfg.Controller
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: controller.name is required", ErrInvalid)
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%w: controller.http_addr is required", ErrInvalid)
	}
	if c.Limits.MaxDatagramBytes <= 0 || c.Limits.MaxDatagramBytes > 65507 {
		return fmt.Errorf("%w: limits.max_datagram_bytes %d outside (0,65507]", ErrInvalid, c.Limits.MaxDatagramBytes)
	}
	if c.ResendInterval < 0 || c.StaleAfter < 0 {
		return fmt.Errorf("%w: controller durations must not be negative", ErrInvalid)
	}
	if c.Backoff.Multiplier < 1 {
		return fmt.Errorf("%w: controller.backoff.multiplier must be >= 1", ErrInvalid)
	}
	if c.Backoff.MaxDelay > 0 && c.Backoff.MaxDelay < c.Backoff.InitialDelay {
		return fmt.Errorf("%w: controller.backoff.max_delay below initial_delay", ErrInvalid)
	}
	if lum := c.Firmware.Luminance; lum != nil && *lum > 255 {
		return fmt.Errorf("%w: firmware.luminance %d above 255", ErrInvalid, *lum)
	}

	d := cfg.Device
	if d.PanelIndex < 1 || int(d.PanelIndex) > d.Layout.Panels {
		return fmt.Errorf("%w: device.panel_index %d outside [1,%d]", ErrInvalid, d.PanelIndex, d.Layout.Panels)
	}
	if d.InfoInterval < 0 {
		return fmt.Errorf("%w: device.info_interval must not be negative", ErrInvalid)
	}
	for _, port := range []int{c.Transport.Port, d.Transport.Port} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%w: port %d outside (0,65535]", ErrInvalid, port)
		}
	}
	return nil
}
