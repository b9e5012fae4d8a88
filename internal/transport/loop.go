package transport

import (
	"errors"
	"net"
	"time"

	"github.com/danmuck/pixelctl/internal/observability"
	"github.com/rs/zerolog/log"
)

const (
	readRetryMin = 5 * time.Millisecond
	readRetryMax = time.Second
)

// readRetryDelay is the pause after the nth consecutive read error, doubling
// from readRetryMin up to readRetryMax.
func readRetryDelay(n int) time.Duration {
	d := readRetryMin
	for i := 1; i < n && d < readRetryMax; i++ {
		d *= 2
	}
	if d > readRetryMax {
		d = readRetryMax
	}
	return d
}

// readLoop runs until the socket closes. Decode failures drop the datagram
// and never end the loop. Repeated read errors back off so a broken socket
// cannot spin.
func (c *Conn[T]) readLoop() {
	defer close(c.loopDone)
	buf := make([]byte, c.cfg.ReadBufferBytes)
	failures := 0
	for {
		n, from, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			delay := readRetryDelay(failures)
			if failures == 1 || delay == readRetryMax {
				log.Warn().
					Str("role", c.cfg.Role).
					Int("consecutive", failures).
					Dur("retry_in", delay).
					Err(err).
					Msg("transport read failed")
			}
			time.Sleep(delay)
			continue
		}
		failures = 0
		c.stats.received.Add(1)
		observability.RecordDatagram(c.cfg.Role, "in", n)

		payload := buf[:n]
		msg, err := c.decode(payload)
		if err != nil {
			c.stats.decodeFailures.Add(1)
			observability.RecordDecodeFailure(c.cfg.Role)
			log.Debug().
				Str("role", c.cfg.Role).
				Str("from", from.String()).
				Int("bytes", n).
				Err(err).
				Msg("dropping undecodable datagram")
			c.decodeFailed(from, payload, err)
			continue
		}
		c.dispatch(Inbound[T]{Message: msg, From: from, At: time.Now()})
	}
}

func (c *Conn[T]) decodeFailed(from *net.UDPAddr, payload []byte, err error) {
	c.mu.RLock()
	fn := c.onDecodeErr
	c.mu.RUnlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("role", c.cfg.Role).Interface("panic", r).Msg("decode error hook panicked")
		}
	}()
	fn(from, payload, err)
}

// dispatch enqueues in registration order without blocking.
func (c *Conn[T]) dispatch(in Inbound[T]) {
	if c.queue != nil {
		select {
		case c.queue <- in:
		default:
			c.dropped("dispatch queue full")
		}
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.listeners {
		select {
		case l.mailbox <- in:
		default:
			c.dropped("listener mailbox full")
		}
	}
}

func (c *Conn[T]) dropped(reason string) {
	c.stats.drops.Add(1)
	observability.RecordListenerDrop(c.cfg.Role)
	log.Debug().Str("role", c.cfg.Role).Msg(reason)
}

// runOrdered calls every listener for each queued message, one at a time in
// registration order, until the queue is closed.
func (c *Conn[T]) runOrdered() {
	var current []*listener[T]
	for in := range c.queue {
		c.mu.RLock()
		current = append(current[:0], c.listeners...)
		c.mu.RUnlock()
		for _, l := range current {
			l.invoke(c, in)
		}
	}
}

type listener[T any] struct {
	fn      func(Inbound[T])
	mailbox chan Inbound[T]
}

func (l *listener[T]) run(c *Conn[T]) {
	for in := range l.mailbox {
		l.invoke(c, in)
	}
}

func (l *listener[T]) invoke(c *Conn[T], in Inbound[T]) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.panics.Add(1)
			observability.RecordListenerPanic(c.cfg.Role)
			log.Error().Str("role", c.cfg.Role).Interface("panic", r).Msg("listener panicked")
		}
	}()
	l.fn(in)
}
