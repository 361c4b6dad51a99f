package ledger

import (
	"context"
	"time"

	"ecertify/internal/events"
	"ecertify/internal/platform/tracer"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
)

const outcomeOK = "ok"

type emittedKey struct{}

// emitted collects event types appended during one transaction so metrics are
// only counted after commit.
type emitted struct {
	types []events.Type
}

// recordingEmitter appends through the event log and remembers what it
// appended for the surrounding mutate call.
type recordingEmitter struct {
	log *events.Log
}

func (e recordingEmitter) Emit(ctx context.Context, p events.Payload) error {
	if err := e.log.Emit(ctx, p); err != nil {
		return err
	}
	if rec, ok := ctx.Value(emittedKey{}).(*emitted); ok {
		rec.types = append(rec.types, p.EventType())
	}
	return nil
}

func mutate[T any](ctx context.Context, l *Ledger, op string, caller domain.ActorID, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "ledger."+op,
		tracer.String(tracer.AttrOperation, op),
		tracer.String(tracer.AttrCaller, caller.String()),
		tracer.Bool(tracer.AttrReadOnly, false),
	)
	rec := &emitted{}
	ctx = context.WithValue(ctx, emittedKey{}, rec)

	var out T
	err := l.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	if err == nil {
		span.AddEvent(tracer.EventCommitted, tracer.Int64("events", int64(len(rec.types))))
		for _, t := range rec.types {
			l.metrics.IncrementEventsAppended(string(t))
		}
	}
	l.finish(ctx, op, start, span, err)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func read[T any](ctx context.Context, l *Ledger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "ledger."+op,
		tracer.String(tracer.AttrOperation, op),
		tracer.Bool(tracer.AttrReadOnly, true),
	)
	var out T
	err := l.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	l.finish(ctx, op, start, span, err)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (l *Ledger) finish(ctx context.Context, op string, start time.Time, span tracer.Span, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
	span.End(err)
	l.metrics.ObserveOperation(op, outcome, time.Since(start).Seconds())

	if err != nil && l.logger != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		l.logger.ErrorContext(ctx, "ledger operation failed",
			"operation", op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// outbox routes relay access to the event store through the ledger's
// transaction boundary.
type outbox struct {
	store events.Store
	tx    StoreTx
}

func (o *outbox) Append(ctx context.Context, e *events.Event) error {
	return o.tx.RunInTx(ctx, func(ctx context.Context) error {
		return o.store.Append(ctx, e)
	})
}

func (o *outbox) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]*events.Event, error) {
	var out []*events.Event
	err := o.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		out, err = o.store.ListAfter(ctx, afterSeq, limit)
		return err
	})
	return out, err
}

func (o *outbox) FetchUnpublished(ctx context.Context, limit int) ([]*events.Event, error) {
	var out []*events.Event
	err := o.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = o.store.FetchUnpublished(ctx, limit)
		return err
	})
	return out, err
}

func (o *outbox) MarkPublished(ctx context.Context, seq int64, at time.Time) error {
	return o.tx.RunInTx(ctx, func(ctx context.Context) error {
		return o.store.MarkPublished(ctx, seq, at)
	})
}

func (o *outbox) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := o.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		n, err = o.store.CountPending(ctx)
		return err
	})
	return n, err
}

var _ events.Store = (*outbox)(nil)
