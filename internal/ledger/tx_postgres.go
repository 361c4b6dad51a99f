package ledger

import (
	"context"
	"database/sql"
	"time"

	dErrors "ecertify/pkg/domain-errors"
	txcontext "ecertify/pkg/platform/tx"
)

// ledgerLockKey is the advisory lock every mutating transaction takes, so
// writers are serialised exactly like the in-memory backend.
const ledgerLockKey int64 = 0x6c6564676572

type postgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresTx(db *sql.DB) *postgresTx {
	return &postgresTx{db: db}
}

func (t *postgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	return t.run(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire ledger lock")
		}
		return fn(ctx)
	})
}

func (t *postgresTx) RunReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return t.run(ctx, opts, func(ctx context.Context, _ *sql.Tx) error {
		return fn(ctx)
	})
}

func (t *postgresTx) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	ctx, cancel := withDefaultTimeout(ctx, t.timeout)
	defer cancel()

	tx, err := t.db.BeginTx(ctx, opts)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
