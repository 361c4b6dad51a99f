package metrics

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDBStats(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordDBStats(sql.DBStats{OpenConnections: 4, InUse: 3, Idle: 1, WaitCount: 2, WaitDuration: time.Second})
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DBOpenConns))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DBInUseConns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBIdleConns))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DBWaitCount))

	t.Run("only deltas are added to counters", func(t *testing.T) {
		m.RecordDBStats(sql.DBStats{WaitCount: 5, WaitDuration: 3 * time.Second})
		assert.Equal(t, 5.0, testutil.ToFloat64(m.DBWaitCount))
		assert.InDelta(t, 3.0, testutil.ToFloat64(m.DBWaitDuration), 1e-9)
	})

	t.Run("nil metrics is a no-op", func(t *testing.T) {
		var nilMetrics *Metrics
		assert.NotPanics(t, func() { nilMetrics.RecordDBStats(sql.DBStats{}) })
	})
}

func TestSamplerRunOnce(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())
	s := NewSampler(WithMetrics(m))

	var ran []string
	s.Add("pool", func(context.Context) error {
		ran = append(ran, "pool")
		return nil
	})
	s.Add("outbox", func(context.Context) error {
		ran = append(ran, "outbox")
		return errors.New("connection refused")
	})
	s.Add("ignored", nil)
	s.Add("redis", func(context.Context) error {
		ran = append(ran, "redis")
		return nil
	})

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox: connection refused")
	assert.Equal(t, []string{"pool", "outbox", "redis"}, ran, "a failing task does not stop the rest")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SamplerErrors.WithLabelValues("outbox")))
}

func TestSamplerStartStopsOnCancel(t *testing.T) {
	s := NewSampler(WithInterval(5 * time.Millisecond))
	calls := make(chan struct{}, 16)
	s.Add("tick", func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	for range 2 {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("sampler did not run")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop")
	}
}
