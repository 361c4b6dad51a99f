package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txcontext "ecertify/pkg/platform/tx"
)

func TestMemoryTx_RollsBackOnError(t *testing.T) {
	tx := newMemoryTx()
	state := []string{"base"}

	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		state = append(state, "a")
		txcontext.OnRollback(ctx, func() { state = state[:len(state)-1] })
		state = append(state, "b")
		txcontext.OnRollback(ctx, func() { state = state[:len(state)-1] })
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"base"}, state)
}

func TestMemoryTx_RollsBackOnPanic(t *testing.T) {
	tx := newMemoryTx()
	state := 0

	assert.Panics(t, func() {
		_ = tx.RunInTx(context.Background(), func(ctx context.Context) error {
			state++
			txcontext.OnRollback(ctx, func() { state-- })
			panic("boom")
		})
	})
	assert.Zero(t, state)

	// The lock was released.
	require.NoError(t, tx.RunInTx(context.Background(), func(context.Context) error { return nil }))
}

func TestMemoryTx_Reentrant(t *testing.T) {
	tx := newMemoryTx()
	calls := 0
	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		return tx.RunInTx(ctx, func(ctx context.Context) error {
			return tx.RunReadOnly(ctx, func(context.Context) error {
				calls++
				return nil
			})
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	err = tx.RunReadOnly(context.Background(), func(ctx context.Context) error {
		return tx.RunReadOnly(ctx, func(context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMemoryTx_AppliesDefaultTimeout(t *testing.T) {
	tx := newMemoryTx()
	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}
