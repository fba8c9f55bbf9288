package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/parley-ai/parley/internal/ratelimit"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)}
}

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()

	t.Run("admits up to limit then rejects", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		limiter := ratelimit.NewWithClock(3, time.Minute, clock.now)

		for i := range 3 {
			clock.advance(time.Second)
			assert.True(t, limiter.Allow("c1"), "request %d", i+1)
		}
		clock.advance(time.Second)
		assert.False(t, limiter.Allow("c1"))
	})

	t.Run("rejected requests do not count", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		limiter := ratelimit.NewWithClock(1, time.Minute, clock.now)

		assert.True(t, limiter.Allow("c1"))
		for range 10 {
			clock.advance(time.Second)
			assert.False(t, limiter.Allow("c1"))
		}

		// One window after the single admitted request, the client is
		// admissible again even though many rejections happened since.
		clock.advance(time.Minute)
		assert.True(t, limiter.Allow("c1"))
	})

	t.Run("window is trailing not fixed", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		limiter := ratelimit.NewWithClock(2, time.Minute, clock.now)

		assert.True(t, limiter.Allow("c1"))
		clock.advance(40 * time.Second)
		assert.True(t, limiter.Allow("c1"))
		clock.advance(10 * time.Second)
		assert.False(t, limiter.Allow("c1"))

		// 61s after the first request it ages out, freeing one slot.
		clock.advance(11 * time.Second)
		assert.True(t, limiter.Allow("c1"))
	})

	t.Run("clients are independent", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		limiter := ratelimit.NewWithClock(1, time.Minute, clock.now)

		assert.True(t, limiter.Allow("c1"))
		assert.False(t, limiter.Allow("c1"))
		assert.True(t, limiter.Allow("c2"))
	})
}

func TestLimiter_RetryAfter(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(1, 90*time.Second)
	assert.Equal(t, 90*time.Second, limiter.RetryAfter())
}

func TestLimiter_Sweep(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	limiter := ratelimit.NewWithClock(1, time.Minute, clock.now)

	assert.True(t, limiter.Allow("idle"))
	assert.True(t, limiter.Allow("busy"))

	clock.advance(2 * time.Minute)
	assert.True(t, limiter.Allow("busy"))
	limiter.Sweep()

	// Sweeping is transparent to admission decisions: the idle client is
	// back to a clean slate, the busy one still holds its recent request.
	assert.True(t, limiter.Allow("idle"))
	assert.False(t, limiter.Allow("busy"))
}
