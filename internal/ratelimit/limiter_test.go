package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

// limiters returns each implementation wired to the same fake clock.
func limiters(t *testing.T, c *clock) map[string]Limiter {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]Limiter{
		"memory": NewMemoryLimiter().WithClock(c.Now),
		"redis":  NewRedisLimiter(rdb).WithClock(c.Now),
	}
}

func TestCheckRate_FixedWindow(t *testing.T) {
	for _, name := range []string{"memory", "redis"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newClock()
			l := limiters(t, c)[name]
			window := time.Minute

			for i := 0; i < 3; i++ {
				ok, err := l.CheckRate(ctx, "k", 3, window)
				require.NoError(t, err)
				assert.True(t, ok, "attempt %d", i+1)
			}

			ok, err := l.CheckRate(ctx, "k", 3, window)
			require.NoError(t, err)
			assert.False(t, ok, "4th attempt must be rejected")

			left, err := l.RemainingTime(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, window, left)

			c.Advance(window)
			ok, _ = l.CheckRate(ctx, "k", 3, window)
			assert.False(t, ok, "window still open at reset time")

			c.Advance(time.Millisecond)
			ok, err = l.CheckRate(ctx, "k", 3, window)
			require.NoError(t, err)
			assert.True(t, ok, "5th attempt allowed after the window")
		})
	}
}

func TestCheckRate_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, l := range limiters(t, newClock()) {
		t.Run(name, func(t *testing.T) {
			ok, _ := l.CheckRate(ctx, "a", 1, time.Minute)
			assert.True(t, ok)
			ok, _ = l.CheckRate(ctx, "a", 1, time.Minute)
			assert.False(t, ok)
			ok, _ = l.CheckRate(ctx, "b", 1, time.Minute)
			assert.True(t, ok)
		})
	}
}

func TestRemainingTime_UnknownKey(t *testing.T) {
	ctx := context.Background()
	for name, l := range limiters(t, newClock()) {
		t.Run(name, func(t *testing.T) {
			d, err := l.RemainingTime(ctx, "nobody")
			require.NoError(t, err)
			assert.Zero(t, d)
		})
	}
}

func TestCheckRate_ConcurrentCallersRespectMax(t *testing.T) {
	ctx := context.Background()
	for name, l := range limiters(t, newClock()) {
		t.Run(name, func(t *testing.T) {
			var allowed int64
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if ok, err := l.CheckRate(ctx, "race", 10, time.Minute); err == nil && ok {
						atomic.AddInt64(&allowed, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int64(10), allowed)
		})
	}
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	l := NewMemoryLimiter().WithClock(c.Now)

	_, _ = l.CheckRate(ctx, "short", 5, time.Second)
	_, _ = l.CheckRate(ctx, "long", 5, time.Hour)
	c.Advance(2 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewMemoryLimiter()
	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "register:1.2.3.4", RegisterKey("1.2.3.4"))
	assert.Equal(t, "login:1.2.3.4", LoginIPKey("1.2.3.4"))
	assert.Equal(t, "login:email:a@b.com", LoginEmailKey("a@b.com"))
}
