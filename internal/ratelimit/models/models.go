package models

import (
	"time"

	"ecertify/pkg/domain"
)

// Result is the outcome of a single limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until a denied caller may retry. Zero when allowed.
	RetryAfter int
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

const keyPrefix = "ecertify:ratelimit:"

// Key identifies a rate limit bucket.
type Key string

// ActorKey is the bucket for every mutation issued by one caller.
func ActorKey(actor domain.ActorID) Key {
	return Key(keyPrefix + "actor:" + actor.String())
}

func (k Key) String() string { return string(k) }
