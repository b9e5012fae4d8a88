// Package controller drives a fleet of panels over UDP and exposes the fleet
// over HTTP.
package controller

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/pixelctl/internal/auth"
	"github.com/danmuck/pixelctl/internal/fleet"
	"github.com/danmuck/pixelctl/internal/observability"
	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/protocol/frame"
	"github.com/danmuck/pixelctl/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

var ErrNoTargets = errors.New("controller: no target devices")

// Config is the controller runtime configuration.
type Config struct {
	Name           string                   `toml:"name"`
	HTTPAddr       string                   `toml:"http_addr"`
	CorsOrigins    []string                 `toml:"cors_origins"`
	Targets        []string                 `toml:"targets"`
	AuthToken      string                   `toml:"auth_token"`
	Transport      transport.Config         `toml:"transport"`
	Layout         frame.Layout             `toml:"layout"`
	Limits         frame.Limits             `toml:"limits"`
	ResendInterval time.Duration            `toml:"resend_interval"`
	StaleAfter     time.Duration            `toml:"stale_after"`
	LogLimit       int                      `toml:"log_limit"`
	Backoff        BackoffConfig            `toml:"backoff"`
	Firmware       *protocol.FirmwareConfig `toml:"-"`
}

func DefaultConfig() Config {
	tc := transport.DefaultConfig()
	tc.Role = "controller"
	return Config{
		Name:           "pixelctl",
		HTTPAddr:       ":8080",
		Transport:      tc,
		Layout:         frame.DefaultLayout(),
		Limits:         frame.DefaultLimits(),
		ResendInterval: 5 * time.Second,
		StaleAfter:     30 * time.Second,
		LogLimit:       fleet.DefaultLogLimit,
		Backoff:        DefaultBackoff(),
		Firmware: &protocol.FirmwareConfig{
			Luminance:         protocol.Uint32(255),
			EasingMode:        protocol.EasingLinear.Ptr(),
			ShowTestFrame:     protocol.Bool(false),
			EnableCalibration: protocol.Bool(false),
		},
	}
}

// Controller owns the firmware socket, the fleet registry and the HTTP
// router.
type Controller struct {
	cfg      Config
	conn     *transport.Conn[*protocol.FirmwarePacket]
	registry *fleet.Registry
	resend   *resendQueue
	router   *gin.Engine
	upgrader websocket.Upgrader
	appeared time.Time

	routesOnce sync.Once

	mu       sync.RWMutex
	firmware *protocol.FirmwareConfig
}

// New opens the controller socket and builds the router. Routes are
// registered by RegisterRoutes.
func New(cfg Config) (*Controller, error) {
	if cfg.Firmware == nil {
		cfg.Firmware = DefaultConfig().Firmware
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	conn, err := transport.ListenFirmware(cfg.Transport)
	if err != nil {
		return nil, err
	}

	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	if cfg.AuthToken != "" {
		r.Use(auth.Require(auth.StaticToken{Token: cfg.AuthToken}, http.MethodPost, http.MethodDelete))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	c := &Controller{
		cfg:      cfg,
		conn:     conn,
		registry: fleet.NewRegistry(cfg.LogLimit),
		resend:   newResendQueue(cfg.Backoff, rand.New(rand.NewSource(time.Now().UnixNano()))),
		router:   r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		appeared: time.Now(),
		firmware: fleet.Stamp(cfg.Firmware),
	}
	conn.AddListener(c.observe)
	return c, nil
}

func (c *Controller) HTTPRouter() *gin.Engine {
	return c.router
}

func (c *Controller) Registry() *fleet.Registry {
	return c.registry
}

func (c *Controller) Conn() *transport.Conn[*protocol.FirmwarePacket] {
	return c.conn
}

func (c *Controller) observe(in transport.Inbound[*protocol.FirmwarePacket]) {
	if err := c.registry.Observe(in.From, in.Message, in.At); err != nil {
		log.Warn().Err(err).Msg("fleet observe failed")
	}
}

// Firmware returns the current stamped FirmwareConfig.
func (c *Controller) Firmware() *protocol.FirmwareConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := *c.firmware
	return &clone
}

// Phash is the config hash devices should be reporting.
func (c *Controller) Phash() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.firmware.ConfigPhash
}

// targets resolves explicit hosts, then configured hosts, then every device
// the registry has heard from.
func (c *Controller) targets(explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	if len(c.cfg.Targets) > 0 {
		return c.cfg.Targets, nil
	}
	devices := c.registry.Devices()
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		if d.Addr != "" {
			out = append(out, d.Addr)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}

// Broadcast sends each packet to every target. Failures on one target do not
// stop delivery to the rest; they are joined in the returned error.
func (c *Controller) Broadcast(ctx context.Context, targets []string, packets ...*protocol.Packet) (int, error) {
	hosts, err := c.targets(targets)
	if err != nil {
		return 0, err
	}
	var errs []error
	sent := 0
	for _, host := range hosts {
		for _, p := range packets {
			if err := c.conn.SendPacket(ctx, host, p); err != nil {
				errs = append(errs, err)
				continue
			}
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

// ApplyConfig stamps cfg with its hash, makes it current and pushes it.
func (c *Controller) ApplyConfig(ctx context.Context, cfg *protocol.FirmwareConfig, targets []string) (uint32, error) {
	stamped := fleet.Stamp(cfg)
	c.mu.Lock()
	c.firmware = stamped
	c.mu.Unlock()

	phash := *stamped.ConfigPhash
	c.registry.Announce(fleet.Event{Kind: fleet.EventConfigApplied, Phash: phash})
	log.Info().Uint32("config_phash", phash).Msg("firmware config applied")
	_, err := c.Broadcast(ctx, targets, &protocol.Packet{FirmwareConfig: stamped})
	return phash, err
}

// SendRGB splits f to fit the datagram limit and sends it.
func (c *Controller) SendRGB(ctx context.Context, f *protocol.RGBFrame, targets []string) (int, error) {
	packets, err := frame.Packets(f, c.cfg.Layout, c.cfg.Limits)
	if err != nil {
		return 0, err
	}
	return c.Broadcast(ctx, targets, packets...)
}

// ResendDrifted pushes the current config to devices reporting another hash
// whose backoff has elapsed. It returns the number of resends.
func (c *Controller) ResendDrifted(ctx context.Context, now time.Time) int {
	phash := c.Phash()
	drifted := c.registry.Drifted(phash)
	keep := make(map[string]struct{}, len(drifted))
	firmware := &protocol.Packet{FirmwareConfig: c.Firmware()}

	resent := 0
	for _, d := range drifted {
		keep[d.Key] = struct{}{}
		if _, due := c.resend.Due(d.Key, d.Addr, phash, now); !due {
			continue
		}
		errText := ""
		if err := c.conn.SendPacket(ctx, d.Addr, firmware); err != nil {
			errText = err.Error()
		} else {
			resent++
			observability.RecordConfigResend(d.Key)
		}
		item, _ := c.resend.MarkAttempt(d.Key, now, errText)
		log.Debug().
			Str("device", d.Key).
			Uint32("reported", d.ConfigPhash).
			Uint32("want", phash).
			Int("attempts", item.Attempts).
			Msg("config resend")
	}
	c.resend.Retain(keep)

	stale := c.registry.Stale(now, c.cfg.StaleAfter)
	observability.SetFleetDevices(len(c.registry.Devices()), len(stale), len(drifted))
	return resent
}

func (c *Controller) driftLoop(ctx context.Context) error {
	if c.cfg.ResendInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(c.cfg.ResendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			c.ResendDrifted(ctx, now)
		}
	}
}

// Run serves HTTP and the drift loop until ctx is done, then closes the
// socket.
func (c *Controller) Run(ctx context.Context) error {
	c.RegisterRoutes()
	srv := &http.Server{Addr: c.cfg.HTTPAddr, Handler: c.router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", c.cfg.HTTPAddr).Str("udp", c.conn.LocalAddr().String()).Msg("controller serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("controller: http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return c.driftLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err := g.Wait()
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Controller) Close() error {
	return c.conn.Close()
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

func splitTargets(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, host := range strings.Split(item, ",") {
			if host = strings.TrimSpace(host); host != "" {
				out = append(out, host)
			}
		}
	}
	return out
}
