// Package relay moves committed ledger events from the outbox to Kafka.
package relay

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"ecertify/internal/events"
	"ecertify/internal/platform/kafka/producer"
	"ecertify/pkg/platform/circuit"
)

const (
	DefaultTopic = "ecertify.ledger.events"

	defaultBatchSize    = 100
	defaultPollInterval = 200 * time.Millisecond
	drainTimeout        = 10 * time.Second

	headerEventType = "event_type"
	headerSeq       = "seq"
)

// Publisher blocks until the broker has msg.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker publishes outbox events in seq order, keyed by subject. An event is
// marked only after the broker acknowledged it, so delivery is at least once.
type Worker struct {
	store     events.Store
	publisher Publisher

	topic        string
	batchSize    int
	pollInterval time.Duration
	metrics      *Metrics
	breaker      *circuit.Breaker
	logger       *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		if topic != "" {
			w.topic = topic
		}
	}
}

// WithBatchSize caps events fetched per poll.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithBreaker skips polls while the broker keeps failing, until the breaker
// lets a trial batch through.
func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) { w.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func New(store events.Store, pub Publisher, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		publisher:    pub,
		topic:        DefaultTopic,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	return w
}

// Start polls in the background until Stop.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.PublishBatch(ctx)
		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

// drain flushes what it can after Stop, bounded by drainTimeout.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	w.logger.Info("draining event relay")
	for ctx.Err() == nil && w.PublishBatch(ctx) > 0 {
	}
}

// Stop ends polling and waits for the drain. ctx bounds only the wait.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishBatch sends up to one batch and reports how many events were sent and
// marked. The first failure ends the batch, so nothing for a subject overtakes
// an earlier event that did not make it.
func (w *Worker) PublishBatch(ctx context.Context) int {
	batch, err := w.store.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "fetch unpublished events failed", "error", err)
		w.metrics.incFailures()
		return 0
	}
	if len(batch) == 0 || !w.breaker.Allow() {
		return 0
	}
	w.metrics.observeBatch(len(batch))

	sent := 0
	for _, e := range batch {
		if err := w.send(ctx, e); err != nil {
			w.recordFailure(ctx, e, err)
			return sent
		}
		w.recordSuccess(ctx)
		if err := w.store.MarkPublished(ctx, e.Seq, time.Now()); err != nil {
			// Sent but unmarked: the next poll sends it again.
			w.logger.ErrorContext(ctx, "mark event published failed", "seq", e.Seq, "error", err)
			return sent
		}
		w.metrics.incPublished()
		sent++
	}
	return sent
}

func (w *Worker) send(ctx context.Context, e *events.Event) error {
	start := time.Now()
	body, err := events.MarshalEnvelope(e)
	if err != nil {
		return err
	}
	err = w.publisher.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(e.Subject.String()),
		Value: body,
		Headers: map[string]string{
			headerEventType: string(e.Type),
			headerSeq:       strconv.FormatInt(e.Seq, 10),
		},
	})
	if err == nil {
		w.metrics.observePublish(time.Since(start))
	}
	return err
}

func (w *Worker) recordFailure(ctx context.Context, e *events.Event, err error) {
	w.logger.ErrorContext(ctx, "publish ledger event failed",
		"seq", e.Seq, "event_type", e.Type, "error", err)
	w.metrics.incFailures()
	if w.breaker.Failure() {
		w.metrics.setBreakerOpen(true)
		w.logger.ErrorContext(ctx, "event relay circuit opened", "breaker", w.breaker.Name())
	}
}

func (w *Worker) recordSuccess(ctx context.Context) {
	if w.breaker.Success() {
		w.metrics.setBreakerOpen(false)
		w.logger.InfoContext(ctx, "event relay circuit closed", "breaker", w.breaker.Name())
	}
}

// UpdateMetrics is a sampler task refreshing the outbox depth gauge.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	if w.metrics == nil {
		return nil
	}
	n, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}
	w.metrics.PendingDepth.Set(float64(n))
	return nil
}
