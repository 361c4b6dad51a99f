package ledger

import (
	"context"
	"sync"
	"time"

	"ecertify/internal/ledger/metrics"
	dErrors "ecertify/pkg/domain-errors"
	txcontext "ecertify/pkg/platform/tx"
)

// StoreTx is the atomicity boundary for ledger operations. RunInTx gives fn
// exclusive, all-or-nothing access; RunReadOnly gives fn a consistent view of
// committed state. Both are re-entrant.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	RunReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a transaction when the caller set no deadline.
const defaultTxTimeout = 5 * time.Second

type readKey struct{}

// memoryTx serialises writers behind one RWMutex and undoes a failed
// writer's store mutations from the journal on its context.
type memoryTx struct {
	mu      sync.RWMutex
	timeout time.Duration
	metrics *metrics.Metrics
}

func newMemoryTx() *memoryTx {
	return &memoryTx{}
}

func (t *memoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.JournalFrom(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	ctx, cancel := withDefaultTimeout(ctx, t.timeout)
	defer cancel()

	lockStart := time.Now()
	t.mu.Lock()
	t.metrics.ObserveLockWait(time.Since(lockStart).Seconds())

	journal := &txcontext.Journal{}
	committed := false
	defer func() {
		if !committed {
			journal.Rollback()
		}
		t.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if err := fn(txcontext.WithJournal(ctx, journal)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (t *memoryTx) RunReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.JournalFrom(ctx); ok {
		return fn(ctx)
	}
	if ctx.Value(readKey{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "read aborted: context cancelled")
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(context.WithValue(ctx, readKey{}, true))
}

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
