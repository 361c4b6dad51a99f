package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

type PoolMetrics struct {
	Hits       prometheus.Counter
	Misses     prometheus.Counter
	Timeouts   prometheus.Counter
	TotalConns prometheus.Gauge
	IdleConns  prometheus.Gauge
}

func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	f := promauto.With(reg)
	return &PoolMetrics{
		Hits: f.NewCounter(prometheus.CounterOpts{
			Name: "ecertify_redis_pool_hits_total",
			Help: "Connections reused from the pool.",
		}),
		Misses: f.NewCounter(prometheus.CounterOpts{
			Name: "ecertify_redis_pool_misses_total",
			Help: "Connection requests the pool could not serve from idle connections.",
		}),
		Timeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "ecertify_redis_pool_timeouts_total",
			Help: "Connection requests that timed out waiting on the pool.",
		}),
		TotalConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "ecertify_redis_pool_total_conns",
			Help: "Open connections in the pool.",
		}),
		IdleConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "ecertify_redis_pool_idle_conns",
			Help: "Idle connections in the pool.",
		}),
	}
}

// observe adds cur-prev to each counter. A counter that went backwards (the
// pool was replaced) is skipped for that sample.
func (m *PoolMetrics) observe(prev, cur redis.PoolStats) {
	m.TotalConns.Set(float64(cur.TotalConns))
	m.IdleConns.Set(float64(cur.IdleConns))
	addDelta(m.Hits, prev.Hits, cur.Hits)
	addDelta(m.Misses, prev.Misses, cur.Misses)
	addDelta(m.Timeouts, prev.Timeouts, cur.Timeouts)
}

func addDelta(c prometheus.Counter, prev, cur uint32) {
	if cur > prev {
		c.Add(float64(cur - prev))
	}
}
