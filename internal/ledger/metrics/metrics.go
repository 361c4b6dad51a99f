package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for ledger operations.
type Metrics struct {
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	EventsAppended   *prometheus.CounterVec
	LockWait         prometheus.Histogram
}

// New registers and returns ledger metrics collectors. Call once per process.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecertify_ledger_operations_total",
			Help: "Ledger operations, labeled by operation and outcome (ok or error code)",
		}, []string{"operation", "outcome"}),
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecertify_ledger_operation_latency_seconds",
			Help:    "Latency of ledger operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecertify_ledger_events_appended_total",
			Help: "Events committed to the ledger event log, labeled by type",
		}, []string{"type"}),
		LockWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecertify_ledger_lock_wait_seconds",
			Help:    "Time spent waiting for the ledger write lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) ObserveOperation(operation, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(durationSeconds)
}

func (m *Metrics) IncrementEventsAppended(eventType string) {
	if m == nil {
		return
	}
	m.EventsAppended.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveLockWait(durationSeconds float64) {
	if m == nil {
		return
	}
	m.LockWait.Observe(durationSeconds)
}
