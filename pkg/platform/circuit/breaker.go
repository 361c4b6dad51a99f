// Package circuit provides a two-state circuit breaker with a cooldown.
package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Breaker opens after a run of consecutive failures. While open, Allow admits
// one trial call per cooldown; a successful trial closes it again.
//
// Methods are safe on a nil *Breaker, which behaves as always closed.
type Breaker struct {
	mu        sync.Mutex
	name      string
	state     State
	failures  int
	threshold int
	cooldown  time.Duration
	nextTrial time.Time
	now       func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the breaker.
// Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open before a trial call.
// Default is 10s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock replaces time.Now. Tests only.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: 5,
		cooldown:  10 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call should be attempted now.
func (b *Breaker) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	now := b.now()
	if now.Before(b.nextTrial) {
		return false
	}
	b.nextTrial = now.Add(b.cooldown)
	return true
}

// Success records a successful call. It reports whether the breaker closed.
func (b *Breaker) Success() (closed bool) {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == StateOpen {
		b.state = StateClosed
		return true
	}
	return false
}

// Failure records a failed call. It reports whether the breaker opened.
func (b *Breaker) Failure() (opened bool) {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == StateOpen {
		b.nextTrial = b.now().Add(b.cooldown)
		return false
	}
	if b.failures >= b.threshold {
		b.state = StateOpen
		b.nextTrial = b.now().Add(b.cooldown)
		return true
	}
	return false
}

// Check fails while the breaker is open, for use as a readiness check.
func (b *Breaker) Check(_ context.Context) error {
	if b.State() == StateOpen {
		return fmt.Errorf("circuit %s is open", b.Name())
	}
	return nil
}
