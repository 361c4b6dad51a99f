// Package tx carries the active transaction on the context so stores can
// join it without the service layer passing handles around.
package tx

import (
	"context"
	"database/sql"
)

type (
	ctxKey     struct{}
	journalKey struct{}
)

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Journal collects undo steps for in-memory stores. It is owned by a single
// transaction and is not safe for concurrent use.
type Journal struct {
	undo []func()
}

// WithJournal stores an undo journal in context.
func WithJournal(ctx context.Context, j *Journal) context.Context {
	if j == nil {
		return ctx
	}
	return context.WithValue(ctx, journalKey{}, j)
}

// JournalFrom extracts the undo journal from context if present.
func JournalFrom(ctx context.Context) (*Journal, bool) {
	j, ok := ctx.Value(journalKey{}).(*Journal)
	return j, ok
}

// OnRollback registers an undo step with the journal on ctx.
// Outside a transaction the step is dropped and the mutation stands.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := JournalFrom(ctx); ok {
		j.Record(undo)
	}
}

// Record appends an undo step.
func (j *Journal) Record(undo func()) {
	j.undo = append(j.undo, undo)
}

// Rollback runs the recorded steps newest first and empties the journal.
func (j *Journal) Rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Len returns the number of pending undo steps.
func (j *Journal) Len() int {
	return len(j.undo)
}
