package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-level gauges that are refreshed by the Sampler rather
// than updated inline.
type Metrics struct {
	DBOpenConns    prometheus.Gauge
	DBInUseConns   prometheus.Gauge
	DBIdleConns    prometheus.Gauge
	DBWaitCount    prometheus.Counter
	DBWaitDuration prometheus.Counter
	SamplerErrors  *prometheus.CounterVec

	lastWaitCount    int64
	lastWaitDuration float64
}

// New creates and registers the process metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the process metrics with reg. Tests pass a fresh
// registry so repeated construction does not panic.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DBOpenConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "ecertify_db_open_connections",
			Help: "Open connections in the database pool",
		}),
		DBInUseConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "ecertify_db_in_use_connections",
			Help: "Database connections currently in use",
		}),
		DBIdleConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "ecertify_db_idle_connections",
			Help: "Idle connections in the database pool",
		}),
		DBWaitCount: f.NewCounter(prometheus.CounterOpts{
			Name: "ecertify_db_wait_total",
			Help: "Connections waited for because the pool was exhausted",
		}),
		DBWaitDuration: f.NewCounter(prometheus.CounterOpts{
			Name: "ecertify_db_wait_seconds_total",
			Help: "Time spent waiting for a database connection",
		}),
		SamplerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecertify_sampler_errors_total",
			Help: "Failed sampler runs, labeled by task",
		}, []string{"task"}),
	}
}

// RecordDBStats copies pool statistics into the gauges. Wait counters are
// cumulative in sql.DBStats, so only the delta since the last call is added.
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBOpenConns.Set(float64(stats.OpenConnections))
	m.DBInUseConns.Set(float64(stats.InUse))
	m.DBIdleConns.Set(float64(stats.Idle))

	if stats.WaitCount > m.lastWaitCount {
		m.DBWaitCount.Add(float64(stats.WaitCount - m.lastWaitCount))
	}
	m.lastWaitCount = stats.WaitCount

	waited := stats.WaitDuration.Seconds()
	if waited > m.lastWaitDuration {
		m.DBWaitDuration.Add(waited - m.lastWaitDuration)
	}
	m.lastWaitDuration = waited
}

func (m *Metrics) incSamplerError(task string) {
	if m != nil {
		m.SamplerErrors.WithLabelValues(task).Inc()
	}
}
