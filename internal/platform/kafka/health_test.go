package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadinessCheck(t *testing.T) {
	ctx := context.Background()

	up := ReadinessCheck(pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, up(ctx))

	refused := errors.New("dial tcp: refused")
	down := ReadinessCheck(pingerFunc(func(context.Context) error { return refused }))
	err := down(ctx)
	assert.ErrorIs(t, err, refused)
	assert.ErrorContains(t, err, "no kafka brokers reachable")

	assert.Error(t, ReadinessCheck(nil)(ctx))
}
