// Package consumer reads ledger envelopes back off Kafka for downstream tools.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"ecertify/internal/platform/kafka"
)

const (
	handleAttempts = 3
	retryBackoff   = 200 * time.Millisecond
)

var ErrClosed = errors.New("consumer is closed")

type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler sees each record once per attempt. A record that still fails after
// the last attempt is logged, committed and skipped.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Consumer polls one group and commits record by record, so a restart resumes
// after the last handled offset.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	closed  atomic.Bool
}

func New(cfg kafka.ConsumerConfig, handler Handler, logger *slog.Logger) (*Consumer, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}, nil
}

// Start polls in the background until Stop.
func (c *Consumer) Start() {
	if c.closed.Load() || !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.loop()
}

func (c *Consumer) loop() {
	defer close(c.done)
	for {
		fetches := c.client.PollFetches(c.ctx)
		if c.ctx.Err() != nil || fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch failed", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(c.process)
	}
}

func (c *Consumer) process(rec *kgo.Record) {
	msg := fromRecord(rec)
	if err := c.handleWithRetry(msg); err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Error("skipping record after failed attempts",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"attempts", handleAttempts, "error", err)
	}
	if err := c.client.CommitRecords(c.ctx, rec); err != nil && c.ctx.Err() == nil {
		c.logger.Error("commit failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
	}
}

func (c *Consumer) handleWithRetry(msg *Message) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = c.handler.Handle(c.ctx, msg); err == nil || attempt == handleAttempts {
			return err
		}
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
}

func fromRecord(rec *kgo.Record) *Message {
	msg := &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Headers:   make(map[string]string, len(rec.Headers)),
		Timestamp: rec.Timestamp,
	}
	for _, h := range rec.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// Stop ends polling and waits for the record in hand. The client is closed
// either way; ctx only bounds the wait. Stop on a consumer that was never
// started returns at once.
func (c *Consumer) Stop(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	defer c.client.Close()
	if !c.started.Load() {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.client.Ping(ctx)
}
