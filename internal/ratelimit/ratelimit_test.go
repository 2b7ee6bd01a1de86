package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute, burst int) (*KeyedRateLimiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewWithTTL(rate.Limit(float64(perMinute)/60), burst, 0)
	rl.now = c.now
	return rl, c
}

func TestAllow_BurstThenDenied(t *testing.T) {
	rl, _ := newTestLimiter(60, 3)
	defer rl.Stop()

	for i := range 3 {
		ok, _ := rl.Allow("u1")
		assert.True(t, ok, "request %d within burst", i)
	}

	ok, retry := rl.Allow("u1")
	assert.False(t, ok)
	assert.InDelta(t, time.Second, retry, float64(10*time.Millisecond))
}

func TestAllow_RefillsOverTime(t *testing.T) {
	rl, c := newTestLimiter(60, 1)
	defer rl.Stop()

	ok, _ := rl.Allow("u1")
	require.True(t, ok)
	ok, _ = rl.Allow("u1")
	require.False(t, ok)

	c.advance(time.Second)
	ok, _ = rl.Allow("u1")
	assert.True(t, ok)
}

func TestAllow_DeniedRequestsDoNotConsume(t *testing.T) {
	rl, c := newTestLimiter(60, 1)
	defer rl.Stop()

	rl.Allow("u1")
	for range 5 {
		rl.Allow("u1")
	}

	c.advance(time.Second)
	ok, _ := rl.Allow("u1")
	assert.True(t, ok, "rejected attempts must not push the next token further out")
}

func TestAllow_IndependentKeys(t *testing.T) {
	rl, _ := newTestLimiter(1, 1)
	defer rl.Stop()

	ok, _ := rl.Allow("key1")
	require.True(t, ok)
	ok, _ = rl.Allow("key1")
	assert.False(t, ok)

	ok, _ = rl.Allow("key2")
	assert.True(t, ok)
	assert.Equal(t, 2, rl.Len())
}

func TestAllow_ZeroBurstNeverAllows(t *testing.T) {
	rl, _ := newTestLimiter(60, 0)
	defer rl.Stop()

	ok, retry := rl.Allow("u1")
	assert.False(t, ok)
	assert.Zero(t, retry)
}

func TestSweep_EvictsIdleKeys(t *testing.T) {
	rl, c := newTestLimiter(60, 1)
	rl.idleTTL = time.Minute
	defer rl.Stop()

	rl.Allow("old")
	c.advance(45 * time.Second)
	rl.Allow("fresh")
	c.advance(30 * time.Second)

	assert.Equal(t, 1, rl.sweep(c.now()))
	assert.Equal(t, 1, rl.Len())

	ok, _ := rl.Allow("old")
	assert.True(t, ok, "evicted key starts with a full bucket")
}

func TestWait_ContextCancelled(t *testing.T) {
	rl := NewWithTTL(rate.Every(10*time.Second), 1, 0)
	defer rl.Stop()

	ok, _ := rl.Allow("u1")
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "u1"))
}

func TestStop_Idempotent(t *testing.T) {
	rl := New(30, 10)
	rl.Stop()
	rl.Stop()
}
