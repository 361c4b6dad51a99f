package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Task is one periodic refresh, e.g. copying pool stats or the outbox depth
// into a gauge.
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	run  Task
}

// Sampler runs registered tasks on a fixed interval.
type Sampler struct {
	tasks    []namedTask
	interval time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithInterval overrides the sampling interval when greater than zero.
func WithInterval(interval time.Duration) SamplerOption {
	return func(s *Sampler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for task failures.
func WithLogger(logger *slog.Logger) SamplerOption {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics counts task failures.
func WithMetrics(m *Metrics) SamplerOption {
	return func(s *Sampler) {
		s.metrics = m
	}
}

// NewSampler creates a sampler with a 15 second default interval.
func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{
		interval: 15 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Add registers a task. Not safe to call after Start.
func (s *Sampler) Add(name string, task Task) {
	if task == nil {
		return
	}
	s.tasks = append(s.tasks, namedTask{name: name, run: task})
}

// Start samples once immediately, then on every tick until ctx is cancelled.
func (s *Sampler) Start(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.WarnContext(ctx, "metrics sampling failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.WarnContext(ctx, "metrics sampling failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce runs every task, continuing past failures. Errors are joined.
func (s *Sampler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, t := range s.tasks {
		if err := t.run(ctx); err != nil {
			s.metrics.incSamplerError(t.name)
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}
