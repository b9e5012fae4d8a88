// Package transport moves encoded messages over UDP.
//
// A Conn owns one socket. It sends datagrams to device hosts and runs a
// single receive loop that decodes each datagram and fans it out to
// listeners. By default every listener has its own bounded mailbox and
// goroutine: a slow or panicking listener loses its own messages and never
// stalls the loop or its siblings. An Ordered Conn instead calls listeners
// one after another in registration order from a single dispatcher.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/pixelctl/internal/observability"
	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/protocol/buffer"
	"github.com/rs/zerolog/log"
)

// DefaultPort is the UDP port devices listen on.
const DefaultPort = 2342

var ErrClosed = errors.New("transport: connection closed")

// Config controls one Conn.
type Config struct {
	// Role labels logs and metrics, e.g. "controller" or "device".
	Role string `toml:"role"`
	// ListenAddr is the local bind address. ":0" picks a free port.
	ListenAddr string `toml:"listen_addr"`
	// Port is used for Send targets that carry no port.
	Port int `toml:"port"`
	// MailboxSize bounds each listener's queue.
	MailboxSize int `toml:"mailbox_size"`
	// ReadBufferBytes sizes the receive buffer; larger datagrams truncate.
	ReadBufferBytes int `toml:"read_buffer_bytes"`
	// Ordered delivers each message to every listener in registration order
	// on one dispatcher goroutine. MailboxSize then bounds the shared queue
	// and a slow listener delays the ones registered after it.
	Ordered bool `toml:"ordered"`
}

func DefaultConfig() Config {
	return Config{
		Role:            "udp",
		ListenAddr:      ":0",
		Port:            DefaultPort,
		MailboxSize:     64,
		ReadBufferBytes: 64 * 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Role == "" {
		c.Role = d.Role
	}
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = d.MailboxSize
	}
	if c.ReadBufferBytes <= 0 {
		c.ReadBufferBytes = d.ReadBufferBytes
	}
	return c
}

// SendError reports a datagram the socket refused. Sends are never retried.
type SendError struct {
	Host string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("transport: send to %s: %v", e.Host, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Inbound is one decoded datagram. Every listener receives the same Message
// value; unless the Conn is Ordered, listeners run concurrently and must not
// modify it.
type Inbound[T any] struct {
	Message T
	From    *net.UDPAddr
	At      time.Time
}

// Decoder turns one datagram into a message.
type Decoder[T any] func([]byte) (T, error)

// Stats are per-Conn counters; the same events also feed Prometheus.
type Stats struct {
	Received       uint64 `json:"received"`
	Sent           uint64 `json:"sent"`
	SendErrors     uint64 `json:"send_errors"`
	DecodeFailures uint64 `json:"decode_failures"`
	ListenerDrops  uint64 `json:"listener_drops"`
	ListenerPanics uint64 `json:"listener_panics"`
}

type counters struct {
	received, sent, sendErrors, decodeFailures, drops, panics atomic.Uint64
}

// Conn is a UDP endpoint that decodes inbound datagrams as T.
type Conn[T any] struct {
	cfg    Config
	conn   *net.UDPConn
	decode Decoder[T]
	codec  *protocol.Codec

	sendMu sync.Mutex

	mu          sync.RWMutex
	listeners   []*listener[T]
	closed      bool
	onDecodeErr func(from *net.UDPAddr, payload []byte, err error)
	queue       chan Inbound[T]
	workers     sync.WaitGroup

	stats     counters
	closeOnce sync.Once
	closeErr  error
	loopDone  chan struct{}
}

// Listen binds cfg.ListenAddr and starts the receive loop.
func Listen[T any](cfg Config, decode Decoder[T]) (*Conn[T], error) {
	cfg = cfg.withDefaults()
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", cfg.ListenAddr, err)
	}
	udp, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", cfg.ListenAddr, err)
	}
	observability.RegisterMetrics()

	c := &Conn[T]{
		cfg:      cfg,
		conn:     udp,
		decode:   decode,
		codec:    protocol.NewCodec(buffer.NewPool()),
		loopDone: make(chan struct{}),
	}
	if cfg.Ordered {
		c.queue = make(chan Inbound[T], cfg.MailboxSize)
		c.workers.Add(1)
		go func() {
			defer c.workers.Done()
			c.runOrdered()
		}()
	}
	go c.readLoop()

	log.Info().
		Str("role", cfg.Role).
		Str("addr", udp.LocalAddr().String()).
		Msg("transport listening")
	return c, nil
}

// ListenPackets returns a Conn that receives controller Packets. Devices use
// it.
func ListenPackets(cfg Config) (*Conn[*protocol.Packet], error) {
	return Listen(cfg, protocol.DecodePacket)
}

// ListenFirmware returns a Conn that receives FirmwarePackets. Controllers
// use it; devices reply to the address the controller sent from.
func ListenFirmware(cfg Config) (*Conn[*protocol.FirmwarePacket], error) {
	return Listen(cfg, protocol.DecodeFirmwarePacket)
}

func (c *Conn[T]) LocalAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

func (c *Conn[T]) Config() Config {
	return c.cfg
}

// Resolve turns a host or host:port into a UDP address, filling in the
// configured port when host carries none.
func (c *Conn[T]) Resolve(host string) (*net.UDPAddr, error) {
	target := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		target = net.JoinHostPort(host, strconv.Itoa(c.cfg.Port))
	}
	return net.ResolveUDPAddr("udp", target)
}

// Send writes payload as one datagram to host. It is safe for concurrent
// use. A ctx deadline becomes the write deadline.
func (c *Conn[T]) Send(ctx context.Context, host string, payload []byte) error {
	addr, err := c.Resolve(host)
	if err != nil {
		c.stats.sendErrors.Add(1)
		observability.RecordSendError(c.cfg.Role)
		return &SendError{Host: host, Err: err}
	}
	return c.send(ctx, host, addr, payload)
}

// SendTo writes payload to an already resolved address, typically the
// source of an Inbound.
func (c *Conn[T]) SendTo(ctx context.Context, addr *net.UDPAddr, payload []byte) error {
	return c.send(ctx, addr.String(), addr, payload)
}

func (c *Conn[T]) send(ctx context.Context, host string, addr *net.UDPAddr, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Host: host, Err: err}
	}
	c.sendMu.Lock()
	deadline, _ := ctx.Deadline()
	err := c.conn.SetWriteDeadline(deadline)
	if err == nil {
		_, err = c.conn.WriteToUDP(payload, addr)
	}
	c.sendMu.Unlock()

	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			err = ErrClosed
		}
		c.stats.sendErrors.Add(1)
		observability.RecordSendError(c.cfg.Role)
		log.Debug().Str("role", c.cfg.Role).Str("host", host).Err(err).Msg("transport send failed")
		return &SendError{Host: host, Err: err}
	}
	c.stats.sent.Add(1)
	observability.RecordDatagram(c.cfg.Role, "out", len(payload))
	return nil
}

// SendMessage encodes msg into a pooled buffer, sends it and releases the
// buffer.
func (c *Conn[T]) SendMessage(ctx context.Context, host string, msg protocol.Message) error {
	return c.codec.Encode(msg, func(b []byte) error {
		return c.Send(ctx, host, b)
	})
}

func (c *Conn[T]) SendPacket(ctx context.Context, host string, p *protocol.Packet) error {
	return c.SendMessage(ctx, host, p)
}

// Reply encodes msg and sends it to addr.
func (c *Conn[T]) Reply(ctx context.Context, addr *net.UDPAddr, msg protocol.Message) error {
	return c.codec.Encode(msg, func(b []byte) error {
		return c.SendTo(ctx, addr, b)
	})
}

// OnDecodeError installs a hook run on the receive loop for every datagram
// that fails to decode. It must not block.
func (c *Conn[T]) OnDecodeError(fn func(from *net.UDPAddr, payload []byte, err error)) {
	c.mu.Lock()
	c.onDecodeErr = fn
	c.mu.Unlock()
}

// AddListener registers fn and returns a func that removes it. Without
// Ordered, messages already queued for fn are still delivered after removal.
func (c *Conn[T]) AddListener(fn func(Inbound[T])) (remove func()) {
	l := &listener[T]{fn: fn}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	c.listeners = append(c.listeners, l)
	if !c.cfg.Ordered {
		l.mailbox = make(chan Inbound[T], c.cfg.MailboxSize)
		c.workers.Add(1)
		go func() {
			defer c.workers.Done()
			l.run(c)
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.removeListener(l) })
	}
}

func (c *Conn[T]) removeListener(l *listener[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for i, cur := range c.listeners {
		if cur == l {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			if l.mailbox != nil {
				close(l.mailbox)
			}
			return
		}
	}
}

// Close stops the receive loop and waits for listeners to drain. It is
// idempotent and must not be called from inside a listener.
func (c *Conn[T]) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		<-c.loopDone

		c.mu.Lock()
		c.closed = true
		for _, l := range c.listeners {
			if l.mailbox != nil {
				close(l.mailbox)
			}
		}
		if c.queue != nil {
			close(c.queue)
		}
		c.mu.Unlock()

		c.workers.Wait()
		c.mu.Lock()
		c.listeners = nil
		c.mu.Unlock()
		log.Info().Str("role", c.cfg.Role).Msg("transport closed")
	})
	return c.closeErr
}

func (c *Conn[T]) Stats() Stats {
	return Stats{
		Received:       c.stats.received.Load(),
		Sent:           c.stats.sent.Load(),
		SendErrors:     c.stats.sendErrors.Load(),
		DecodeFailures: c.stats.decodeFailures.Load(),
		ListenerDrops:  c.stats.drops.Load(),
		ListenerPanics: c.stats.panics.Load(),
	}
}
