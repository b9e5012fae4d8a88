package controller

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/pixelctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	require.Equal(t, 250*time.Millisecond, NextBackoffDelay(cfg, 1, nil))
	require.Equal(t, 500*time.Millisecond, NextBackoffDelay(cfg, 2, nil))
	require.Equal(t, time.Second, NextBackoffDelay(cfg, 3, nil))
	require.Equal(t, 5*time.Second, NextBackoffDelay(cfg, 6, nil))
	require.Zero(t, NextBackoffDelay(BackoffConfig{}, 4, nil))
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	for attempt := 2; attempt < 8; attempt++ {
		base := NextBackoffDelay(BackoffConfig{
			InitialDelay: cfg.InitialDelay,
			Multiplier:   cfg.Multiplier,
			MaxDelay:     cfg.MaxDelay,
		}, attempt, nil)
		got := NextBackoffDelay(cfg, attempt, rng)
		require.GreaterOrEqual(t, got, base/2, "attempt %d", attempt)
		require.LessOrEqual(t, got, base*3/2, "attempt %d", attempt)
	}
}

func TestResendQueueLifecycle(t *testing.T) {
	testlog.Start(t)
	q := newResendQueue(BackoffConfig{InitialDelay: time.Second, Multiplier: 2}, nil)
	now := time.Unix(1700000000, 0)

	item, due := q.Due("blinkenleds-1", "10.0.0.1:2342", 0xabc, now)
	require.True(t, due)
	require.Zero(t, item.Attempts)

	item, ok := q.MarkAttempt("blinkenleds-1", now, "")
	require.True(t, ok)
	require.Equal(t, 1, item.Attempts)
	require.Equal(t, now.Add(time.Second), item.NextAttemptAt)

	_, due = q.Due("blinkenleds-1", "10.0.0.1:2342", 0xabc, now.Add(500*time.Millisecond))
	require.False(t, due)
	_, due = q.Due("blinkenleds-1", "10.0.0.1:2342", 0xabc, now.Add(time.Second))
	require.True(t, due)

	item, _ = q.MarkAttempt("blinkenleds-1", now.Add(time.Second), "write: refused")
	require.Equal(t, 2, item.Attempts)
	require.Equal(t, "write: refused", item.LastError)
	require.Equal(t, now.Add(3*time.Second), item.NextAttemptAt)

	// a new config hash restarts the schedule
	item, due = q.Due("blinkenleds-1", "10.0.0.1:2342", 0xdef, now.Add(1500*time.Millisecond))
	require.True(t, due)
	require.Zero(t, item.Attempts)

	_, ok = q.MarkAttempt("unknown", now, "")
	require.False(t, ok)

	q.Due("blinkenleds-2", "10.0.0.2:2342", 0xdef, now)
	require.Len(t, q.List(), 2)
	q.Retain(map[string]struct{}{"blinkenleds-2": {}})
	list := q.List()
	require.Len(t, list, 1)
	require.Equal(t, "blinkenleds-2", list[0].Host)
}
