package controller

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// BackoffConfig spaces out config resends to a device that keeps reporting a
// stale config hash.
type BackoffConfig struct {
	InitialDelay time.Duration `toml:"initial_delay"`
	Multiplier   float64       `toml:"multiplier"`
	MaxDelay     time.Duration `toml:"max_delay"`
	Jitter       bool          `toml:"jitter"`
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     time.Minute,
		Jitter:       true,
	}
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// PendingConfig tracks one device that has not yet echoed the current
// config hash.
type PendingConfig struct {
	Host          string    `json:"host"`
	Addr          string    `json:"addr"`
	Phash         uint32    `json:"config_phash"`
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
}

// resendQueue holds pending config pushes keyed by device.
type resendQueue struct {
	mu      sync.Mutex
	backoff BackoffConfig
	rng     *rand.Rand
	items   map[string]PendingConfig
}

func newResendQueue(backoff BackoffConfig, rng *rand.Rand) *resendQueue {
	return &resendQueue{backoff: backoff, rng: rng, items: make(map[string]PendingConfig)}
}

// Due returns the pending entry for host if a resend is due at now. A new or
// re-targeted entry (different phash) is due immediately.
func (q *resendQueue) Due(host, addr string, phash uint32, now time.Time) (PendingConfig, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[host]
	if !ok || item.Phash != phash {
		item = PendingConfig{Host: host, Phash: phash, NextAttemptAt: now}
	}
	item.Addr = addr
	q.items[host] = item
	return item, !now.Before(item.NextAttemptAt)
}

// MarkAttempt records a resend and schedules the next one.
func (q *resendQueue) MarkAttempt(host string, at time.Time, lastErr string) (PendingConfig, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[host]
	if !ok {
		return PendingConfig{}, false
	}
	item.Attempts++
	item.LastAttemptAt = at
	item.LastError = lastErr
	item.NextAttemptAt = at.Add(NextBackoffDelay(q.backoff, item.Attempts, q.rng))
	q.items[host] = item
	return item, true
}

// Retain drops every entry whose host is not in keep.
func (q *resendQueue) Retain(keep map[string]struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for host := range q.items {
		if _, ok := keep[host]; !ok {
			delete(q.items, host)
		}
	}
}

func (q *resendQueue) List() []PendingConfig {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingConfig, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Host < out[j].Host
	})
	return out
}
