// Package device simulates one LED panel on the wire.
//
// A Panel answers controllers exactly like firmware does: it applies
// FirmwareConfig, shows the slice of each frame addressed to its panel
// index, reports FirmwareInfo to every controller that has talked to it and
// sends a RemoteLog when a datagram fails to decode.
package device

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/protocol/frame"
	"github.com/danmuck/pixelctl/internal/transport"
	"github.com/rs/zerolog/log"
)

// Config describes one simulated panel.
type Config struct {
	Transport    transport.Config `toml:"transport"`
	Hostname     string           `toml:"hostname"`
	BuildTime    string           `toml:"build_time"`
	PanelIndex   uint32           `toml:"panel_index"`
	InfoInterval time.Duration    `toml:"info_interval"`
	Layout       frame.Layout     `toml:"layout"`
}

func DefaultConfig() Config {
	tc := transport.DefaultConfig()
	tc.Role = "device"
	tc.ListenAddr = fmt.Sprintf(":%d", transport.DefaultPort)
	tc.Ordered = true
	return Config{
		Transport:    tc,
		PanelIndex:   1,
		BuildTime:    "pixelctl-sim",
		InfoInterval: 5 * time.Second,
		Layout:       frame.DefaultLayout(),
	}
}

func (c Config) hostname() string {
	if c.Hostname != "" {
		return c.Hostname
	}
	return fmt.Sprintf("blinkenleds-%d", c.PanelIndex)
}

// Color is one RGBW pixel.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	W uint8 `json:"w"`
}

// State is what the panel currently shows and how it is configured.
type State struct {
	Luminance         uint32               `json:"luminance"`
	EasingMode        protocol.EasingMode  `json:"easing_mode"`
	ShowTestFrame     bool                 `json:"show_test_frame"`
	EnableCalibration bool                 `json:"enable_calibration"`
	ConfigPhash       uint32               `json:"config_phash"`
	EasingInterval    uint32               `json:"easing_interval"`
	Pixels            []Color              `json:"pixels"`
	Frames            uint64               `json:"frames"`
	Packets           uint64               `json:"packets"`
	LastInput         *protocol.InputEvent `json:"last_input,omitempty"`
	LastAudio         *protocol.AudioFrame `json:"last_audio,omitempty"`
}

// Panel is a simulated device bound to a UDP socket.
type Panel struct {
	cfg  Config
	conn *transport.Conn[*protocol.Packet]

	mu          sync.RWMutex
	state       State
	peers       map[string]*net.UDPAddr
	framesSince uint64
	lastInfo    time.Time

	replies sync.WaitGroup
}

// Start binds the panel socket and begins handling packets.
func Start(cfg Config) (*Panel, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.PanelIndex < 1 || int(cfg.PanelIndex) > cfg.Layout.Panels {
		return nil, fmt.Errorf("device: panel_index %d outside layout of %d panels", cfg.PanelIndex, cfg.Layout.Panels)
	}
	if cfg.Transport.Role == "" {
		cfg.Transport.Role = "device"
	}
	conn, err := transport.ListenPackets(cfg.Transport)
	if err != nil {
		return nil, err
	}
	p := &Panel{
		cfg:      cfg,
		conn:     conn,
		state:    State{Pixels: make([]Color, cfg.Layout.PixelsPerPanel)},
		peers:    make(map[string]*net.UDPAddr),
		lastInfo: time.Now(),
	}
	conn.AddListener(p.handle)
	conn.OnDecodeError(p.decodeFailed)
	log.Info().
		Str("hostname", cfg.hostname()).
		Uint32("panel_index", cfg.PanelIndex).
		Str("addr", conn.LocalAddr().String()).
		Msg("panel up")
	return p, nil
}

func (p *Panel) Addr() *net.UDPAddr {
	return p.conn.LocalAddr()
}

func (p *Panel) Hostname() string {
	return p.cfg.hostname()
}

// State returns a copy of the panel state.
func (p *Panel) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := p.state
	out.Pixels = append([]Color(nil), p.state.Pixels...)
	return out
}

// Run reports FirmwareInfo to known peers every InfoInterval until ctx is
// done, then closes the panel.
func (p *Panel) Run(ctx context.Context) error {
	defer p.Close()
	if p.cfg.InfoInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(p.cfg.InfoInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.broadcastInfo(ctx)
		}
	}
}

func (p *Panel) Close() error {
	err := p.conn.Close()
	p.replies.Wait()
	return err
}

func (p *Panel) handle(in transport.Inbound[*protocol.Packet]) {
	first := p.rememberPeer(in.From)
	p.apply(in.Message)
	if first {
		p.reply(in.From, &protocol.FirmwarePacket{FirmwareInfo: p.info()})
	}
}

// decodeFailed runs on the receive loop, so the RemoteLog goes out on its
// own goroutine.
func (p *Panel) decodeFailed(from *net.UDPAddr, _ []byte, err error) {
	p.rememberPeer(from)
	msg := "decoding failed: " + err.Error()
	p.replies.Add(1)
	go func() {
		defer p.replies.Done()
		p.reply(from, &protocol.FirmwarePacket{RemoteLog: &protocol.RemoteLog{Message: &msg}})
	}()
}

func (p *Panel) rememberPeer(addr *net.UDPAddr) bool {
	key := addr.String()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Packets++
	if _, ok := p.peers[key]; ok {
		return false
	}
	p.peers[key] = addr
	return true
}

func (p *Panel) reply(addr *net.UDPAddr, msg *protocol.FirmwarePacket) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.conn.Reply(ctx, addr, msg); err != nil {
		log.Warn().Str("hostname", p.cfg.hostname()).Str("peer", addr.String()).Err(err).Msg("panel reply failed")
	}
}

func (p *Panel) broadcastInfo(ctx context.Context) {
	p.mu.RLock()
	peers := make([]*net.UDPAddr, 0, len(p.peers))
	for _, addr := range p.peers {
		peers = append(peers, addr)
	}
	p.mu.RUnlock()

	info := &protocol.FirmwarePacket{FirmwareInfo: p.info()}
	for _, addr := range peers {
		if err := p.conn.Reply(ctx, addr, info); err != nil {
			log.Debug().Str("peer", addr.String()).Err(err).Msg("panel info send failed")
		}
	}
}

// info builds a FirmwareInfo and resets the frame rate window.
func (p *Panel) info() *protocol.FirmwareInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	fps := uint32(0)
	if elapsed := now.Sub(p.lastInfo); elapsed >= time.Second {
		fps = uint32(float64(p.framesSince) / elapsed.Seconds())
	}
	p.framesSince = 0
	p.lastInfo = now
	return &protocol.FirmwareInfo{
		Hostname:    protocol.String(p.cfg.hostname()),
		BuildTime:   protocol.String(p.cfg.BuildTime),
		PanelIndex:  protocol.Uint32(p.cfg.PanelIndex),
		FPS:         protocol.Uint32(fps),
		ConfigPhash: protocol.Uint32(p.state.ConfigPhash),
	}
}
