package circuit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker(t *testing.T) {
	newBreaker := func() (*Breaker, *fakeClock) {
		clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		return New("kafka", WithFailureThreshold(3), WithCooldown(time.Second), WithClock(clock.now)), clock
	}

	t.Run("opens after consecutive failures", func(t *testing.T) {
		b, _ := newBreaker()
		assert.False(t, b.Failure())
		assert.False(t, b.Failure())
		assert.True(t, b.Failure())
		assert.Equal(t, StateOpen, b.State())
		assert.False(t, b.Allow())
		assert.EqualError(t, b.Check(context.Background()), "circuit kafka is open")
	})

	t.Run("a success resets the failure run", func(t *testing.T) {
		b, _ := newBreaker()
		b.Failure()
		b.Failure()
		assert.False(t, b.Success())
		assert.False(t, b.Failure())
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("admits one trial per cooldown while open", func(t *testing.T) {
		b, clock := newBreaker()
		for range 3 {
			b.Failure()
		}

		clock.advance(999 * time.Millisecond)
		assert.False(t, b.Allow())

		clock.advance(time.Millisecond)
		assert.True(t, b.Allow())
		assert.False(t, b.Allow(), "second call inside the same cooldown is refused")

		assert.False(t, b.Failure(), "a failed trial keeps it open")
		assert.False(t, b.Allow())

		clock.advance(time.Second)
		assert.True(t, b.Allow())
		assert.True(t, b.Success())
		assert.Equal(t, StateClosed, b.State())
		assert.NoError(t, b.Check(context.Background()))
	})

	t.Run("nil breaker is always closed", func(t *testing.T) {
		var b *Breaker
		assert.True(t, b.Allow())
		assert.False(t, b.Failure())
		assert.False(t, b.Success())
		assert.NoError(t, b.Check(context.Background()))
	})
}
