package events

import (
	"context"
	"log/slog"
	"time"

	"ecertify/pkg/requestcontext"
)

//go:generate mockgen -source=log.go -destination=mocks/mocks.go -package=mocks Store

// Store persists the event log.
// Append must join the caller's transaction so the event commits or rolls
// back with the mutation that produced it.
type Store interface {
	// Append assigns the next sequence number to e and stores it.
	Append(ctx context.Context, e *Event) error
	// ListAfter returns up to limit events with Seq > afterSeq in sequence order.
	ListAfter(ctx context.Context, afterSeq int64, limit int) ([]*Event, error)
	// FetchUnpublished returns up to limit events the relay has not yet published, oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]*Event, error)
	// MarkPublished records that the relay delivered the event.
	MarkPublished(ctx context.Context, seq int64, at time.Time) error
	// CountPending returns the number of unpublished events.
	CountPending(ctx context.Context) (int64, error)
}

// Log stamps and appends events for the ledger.
type Log struct {
	store  Store
	logger *slog.Logger
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithLogger sets the logger used for append diagnostics.
func WithLogger(logger *slog.Logger) LogOption {
	return func(l *Log) {
		l.logger = logger
	}
}

// NewLog wraps a store.
func NewLog(store Store, opts ...LogOption) *Log {
	l := &Log{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Emit appends one event built from p. Call it inside the mutation's transaction.
func (l *Log) Emit(ctx context.Context, p Payload) error {
	e := &Event{
		Type:       p.EventType(),
		Subject:    p.Subject(),
		Payload:    p,
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx),
	}
	if err := l.store.Append(ctx, e); err != nil {
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "failed to append ledger event",
				"event_type", e.Type,
				"subject", e.Subject.String(),
				"error", err,
			)
		}
		return err
	}
	return nil
}

// List returns committed events after afterSeq.
func (l *Log) List(ctx context.Context, afterSeq int64, limit int) ([]*Event, error) {
	return l.store.ListAfter(ctx, afterSeq, limit)
}
