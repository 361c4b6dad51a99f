package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecertify/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("empty URL means not configured", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, opts)

		client, err := New(context.Background(), config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("rejects malformed URL", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "http://localhost:6379"})
		require.Error(t, err)
	})

	t.Run("applies overrides and keeps URL defaults otherwise", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:         "redis://cache:6380/2",
			PoolSize:    20,
			DialTimeout: 2 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
		assert.Zero(t, opts.MinIdleConns)
	})
}

func TestPoolMetrics_Deltas(t *testing.T) {
	m := NewPoolMetrics(prometheus.NewRegistry())

	m.observe(redis.PoolStats{}, redis.PoolStats{Hits: 5, Misses: 2, TotalConns: 3, IdleConns: 1})
	m.observe(redis.PoolStats{Hits: 5, Misses: 2}, redis.PoolStats{Hits: 9, Misses: 2, Timeouts: 1, TotalConns: 4})

	assert.Equal(t, 9.0, promtest.ToFloat64(m.Hits))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.Misses))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Timeouts))
	assert.Equal(t, 4.0, promtest.ToFloat64(m.TotalConns))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.IdleConns))

	m.observe(redis.PoolStats{Hits: 9}, redis.PoolStats{Hits: 1})
	assert.Equal(t, 9.0, promtest.ToFloat64(m.Hits), "a reset pool does not move counters")
}

func TestRecordPoolStats_WithoutMetrics(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.RecordPoolStats(context.Background()))
}
