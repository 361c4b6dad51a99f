// Package kafka holds the broker settings shared by the relay producer and the
// ledger-tail consumer, translated into franz-go client options.
package kafka

import (
	"errors"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Acks is how many replicas must hold a record before Produce returns.
type Acks string

const (
	AcksAll    Acks = "all"
	AcksLeader Acks = "leader"
	AcksNone   Acks = "none"
)

var (
	ErrNoBrokers = errors.New("kafka brokers not configured")
	ErrNoGroup   = errors.New("kafka consumer group not configured")
	ErrNoTopics  = errors.New("kafka consumer topics not configured")
)

// SplitBrokers turns "a:9092, b:9092" into a seed list, dropping blanks.
func SplitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type ProducerConfig struct {
	Brokers         []string
	ClientID        string
	Acks            Acks
	RecordRetries   int
	DeliveryTimeout time.Duration
	Linger          time.Duration
}

// NewProducerConfig fills in the relay defaults: full acks with idempotent
// writes, which together keep one subject's events in ledger order.
func NewProducerConfig(brokers string) ProducerConfig {
	return ProducerConfig{
		Brokers:         SplitBrokers(brokers),
		ClientID:        "ecertify-relay",
		Acks:            AcksAll,
		RecordRetries:   3,
		DeliveryTimeout: 30 * time.Second,
		Linger:          5 * time.Millisecond,
	}
}

func (c ProducerConfig) Options() ([]kgo.Opt, error) {
	if len(c.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.Brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
		kgo.ProducerLinger(c.Linger),
	}
	switch c.Acks {
	case AcksNone:
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	case AcksLeader:
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	default:
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	}
	if c.RecordRetries > 0 {
		opts = append(opts, kgo.RecordRetries(c.RecordRetries))
	}
	if c.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(c.DeliveryTimeout))
	}
	if c.ClientID != "" {
		opts = append(opts, kgo.ClientID(c.ClientID))
	}
	return opts, nil
}

type ConsumerConfig struct {
	Brokers []string
	Group   string
	Topics  []string
	// FromStart replays from the earliest offset when the group has no
	// committed position. Otherwise only new records are read.
	FromStart bool
}

func NewConsumerConfig(brokers, group string, topics ...string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:   SplitBrokers(brokers),
		Group:     group,
		Topics:    topics,
		FromStart: true,
	}
}

// Options always disables auto-commit. The consumer commits each record once
// its handler is done with it.
func (c ConsumerConfig) Options() ([]kgo.Opt, error) {
	switch {
	case len(c.Brokers) == 0:
		return nil, ErrNoBrokers
	case c.Group == "":
		return nil, ErrNoGroup
	case len(c.Topics) == 0:
		return nil, ErrNoTopics
	}
	reset := kgo.NewOffset().AtEnd()
	if c.FromStart {
		reset = kgo.NewOffset().AtStart()
	}
	return []kgo.Opt{
		kgo.SeedBrokers(c.Brokers...),
		kgo.ConsumerGroup(c.Group),
		kgo.ConsumeTopics(c.Topics...),
		kgo.ConsumeResetOffset(reset),
		kgo.DisableAutoCommit(),
	}, nil
}
