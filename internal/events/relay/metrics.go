package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are optional; every helper is a no-op on a nil receiver.
type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  prometheus.Counter
	PublishFailures prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
	BreakerOpen     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "ecertify_relay_pending_events",
			Help: "Outbox events not yet on Kafka.",
		}),
		PublishedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ecertify_relay_published_total",
			Help: "Outbox events published and marked.",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ecertify_relay_publish_failures_total",
			Help: "Outbox fetches or publishes that failed.",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecertify_relay_publish_duration_seconds",
			Help:    "Broker round trip for one event.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2.5, 9),
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecertify_relay_batch_size",
			Help:    "Events fetched per non-empty poll.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "ecertify_relay_circuit_open",
			Help: "1 while publishing is paused after repeated broker failures.",
		}),
	}
}

func (m *Metrics) incPublished() {
	if m != nil {
		m.PublishedTotal.Inc()
	}
}

func (m *Metrics) incFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) observePublish(d time.Duration) {
	if m != nil {
		m.PublishDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) observeBatch(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.Set(v)
}
