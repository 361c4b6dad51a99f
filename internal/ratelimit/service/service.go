// Package service applies the per-caller mutation budget.
package service

import (
	"context"
	"log/slog"
	"time"

	"ecertify/internal/ratelimit/metrics"
	"ecertify/internal/ratelimit/models"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
)

// BucketStore is a sliding-window counter.
//
// Error contract: any error means the check could not be made; the caller
// decides whether to fail open.
type BucketStore interface {
	AllowN(ctx context.Context, key models.Key, cost, limit int, window time.Duration) (*models.Result, error)
}

type Limiter struct {
	store   BucketStore
	limit   int
	window  time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithWindow overrides the one-minute window.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// New builds a limiter allowing limit mutations per caller per window.
func New(store BucketStore, limit int, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "bucket store is required")
	}
	if limit <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "rate limit must be positive")
	}
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CheckActor consumes one hit from the caller's budget.
func (l *Limiter) CheckActor(ctx context.Context, actor domain.ActorID) (*models.Result, error) {
	result, err := l.store.AllowN(ctx, models.ActorKey(actor), 1, l.limit, l.window)
	if err != nil {
		l.metrics.Record(metrics.OutcomeError)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
	}
	if !result.Allowed {
		l.metrics.Record(metrics.OutcomeRejected)
		if l.logger != nil {
			l.logger.WarnContext(ctx, "caller exceeded mutation budget",
				"actor", actor.String(),
				"limit", l.limit,
				"retry_after", result.RetryAfter,
			)
		}
		return result, nil
	}
	l.metrics.Record(metrics.OutcomeAllowed)
	return result, nil
}
