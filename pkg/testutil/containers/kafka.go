//go:build integration

package containers

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   string
}

func startKafka(ctx context.Context) (*KafkaContainer, error) {
	ctr, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.2.4",
		redpanda.WithAutoCreateTopics(),
	)
	if err != nil {
		return nil, err
	}
	broker, err := ctr.KafkaSeedBroker(ctx)
	if err != nil {
		_ = ctr.Terminate(context.Background())
		return nil, err
	}
	return &KafkaContainer{Container: ctr, Brokers: broker}, nil
}

// CreateTopic creates topic up front. Tests that assert ordering across keys
// use a single partition.
func (k *KafkaContainer) CreateTopic(ctx context.Context, topic string, partitions int32, replicas int16) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers))
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := kadm.NewClient(client).CreateTopic(ctx, partitions, replicas, nil, topic)
	if err != nil {
		return err
	}
	return resp.Err
}

// NewConsumer returns a raw client reading topics from the start, for
// asserting on what was published.
func (k *KafkaContainer) NewConsumer(_ context.Context, group string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
}

// WaitForMessage polls until match accepts a record or timeout passes. It
// returns nil on timeout.
func (k *KafkaContainer) WaitForMessage(ctx context.Context, client *kgo.Client, timeout time.Duration, match func(*kgo.Record) bool) *kgo.Record {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for ctx.Err() == nil {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			if rec := iter.Next(); match(rec) {
				return rec
			}
		}
	}
	return nil
}
