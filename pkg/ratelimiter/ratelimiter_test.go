package ratelimiter_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/checkoutkit/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(t *testing.T, capacity int, refill time.Duration) (*ratelimiter.Limiter, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	l, err := ratelimiter.New(ratelimiter.Config{Capacity: capacity, RefillInterval: refill}, ratelimiter.WithClock(c.Now))
	require.NoError(t, err)
	return l, c
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	for _, cfg := range []ratelimiter.Config{
		{Capacity: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillInterval: 0},
	} {
		_, err := ratelimiter.New(cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}
}

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()

	t.Run("burst then deny", func(t *testing.T) {
		t.Parallel()
		l, _ := newLimiter(t, 3, time.Minute)

		for want := 2; want >= 0; want-- {
			res := l.Allow("k")
			require.True(t, res.Allowed)
			assert.Equal(t, want, res.Remaining)
		}
		res := l.Allow("k")
		assert.False(t, res.Allowed)
		assert.Equal(t, time.Minute, res.RetryAfter)
	})

	t.Run("refills per interval", func(t *testing.T) {
		t.Parallel()
		l, c := newLimiter(t, 2, time.Minute)
		l.Allow("k")
		l.Allow("k")
		require.False(t, l.Allow("k").Allowed)

		c.Advance(40 * time.Second)
		res := l.Allow("k")
		assert.False(t, res.Allowed)
		assert.Equal(t, 20*time.Second, res.RetryAfter)

		c.Advance(20 * time.Second)
		assert.True(t, l.Allow("k").Allowed)
		assert.False(t, l.Allow("k").Allowed)
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		t.Parallel()
		l, c := newLimiter(t, 2, time.Second)
		l.Allow("k")
		c.Advance(time.Hour)
		assert.Equal(t, 1, l.Allow("k").Remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()
		l, _ := newLimiter(t, 1, time.Minute)
		assert.True(t, l.Allow("a").Allowed)
		assert.False(t, l.Allow("a").Allowed)
		assert.True(t, l.Allow("b").Allowed)
	})

	t.Run("reset", func(t *testing.T) {
		t.Parallel()
		l, _ := newLimiter(t, 1, time.Minute)
		l.Allow("a")
		l.Reset("a")
		assert.True(t, l.Allow("a").Allowed)
	})
}

func TestLimiter_Prune(t *testing.T) {
	t.Parallel()

	l, c := newLimiter(t, 1, time.Minute)
	l.Allow("old")
	c.Advance(30 * time.Minute)
	l.Allow("new")

	c.Advance(31 * time.Minute)
	assert.Equal(t, 1, l.Prune(time.Hour))
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	l, err := ratelimiter.New(ratelimiter.Config{Capacity: 50, RefillInterval: time.Hour})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}
