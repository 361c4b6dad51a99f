// Package middleware enforces the per-caller mutation budget on HTTP routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"ecertify/internal/ratelimit/models"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/platform/httputil"
	"ecertify/pkg/requestcontext"
)

const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
	headerRetry     = "Retry-After"
)

type RateLimiter interface {
	CheckActor(ctx context.Context, actor domain.ActorID) (*models.Result, error)
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	return &Middleware{limiter: limiter, logger: logger}
}

// PerActor charges one unit to the caller set by the actor middleware, which
// must run first. Reads are mounted outside it and cost nothing.
func (m *Middleware) PerActor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.admit(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// admit reports whether the request may proceed, writing the 429 itself when
// it may not. An unreachable limiter store admits the request.
func (m *Middleware) admit(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	caller := requestcontext.Actor(ctx)
	if caller.IsZero() {
		return true
	}

	res, err := m.limiter.CheckActor(ctx, caller)
	if err != nil {
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed, admitting request",
				"error", err,
				"actor", caller.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return true
	}

	h := w.Header()
	h.Set(headerLimit, strconv.Itoa(res.Limit))
	h.Set(headerRemaining, strconv.Itoa(res.Remaining))
	h.Set(headerReset, strconv.FormatInt(res.ResetAt.Unix(), 10))
	if res.Allowed {
		return true
	}
	h.Set(headerRetry, strconv.Itoa(res.RetryAfter))
	httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests from this caller, retry later"))
	return false
}
