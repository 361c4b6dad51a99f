// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; the ledger reads them. Keeping the package free of
// net/http lets services import it without pulling in transport code.
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, alice)
package requestcontext

import (
	"context"
	"time"

	"ecertify/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Actor retrieves the calling actor from the context.
// Returns the zero address if not set.
func Actor(ctx context.Context) domain.ActorID {
	if actor, ok := ctx.Value(actorKey{}).(domain.ActorID); ok {
		return actor
	}
	return domain.ZeroActor
}

// WithActor injects the calling actor into the context.
func WithActor(ctx context.Context, actor domain.ActorID) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Tests use it to move the ledger clock past a grant's expiry.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
