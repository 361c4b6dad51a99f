// Package main tails the ledger event topic and prints each event as it is
// published by the relay. Useful when checking a deployment end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"ecertify/internal/events"
	"ecertify/internal/platform/kafka"
	"ecertify/internal/platform/kafka/consumer"
	"ecertify/internal/platform/logger"
	"ecertify/pkg/domain"
)

func main() {
	brokers := flag.String("brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "Comma-separated Kafka seed brokers")
	topic := flag.String("topic", envOr("LEDGER_EVENTS_TOPIC", "ecertify.ledger.events"), "Ledger events topic")
	group := flag.String("group", "", "Consumer group. A throwaway group is used if empty.")
	fromStart := flag.Bool("from-start", false, "Replay the topic from the earliest offset")
	subject := flag.String("subject", "", "Only print events for this actor address")
	asJSON := flag.Bool("json", false, "Print raw envelopes instead of a summary line")
	flag.Parse()

	var filter domain.ActorID
	if *subject != "" {
		id, err := domain.ParseActorID(*subject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -subject: %v\n", err)
			os.Exit(2)
		}
		filter = id
	}

	if *group == "" {
		*group = "ecertify-ledger-tail-" + uuid.NewString()
	}
	cfg := kafka.NewConsumerConfig(*brokers, *group, *topic)
	cfg.FromStart = *fromStart

	p := &printer{out: os.Stdout, filter: filter, raw: *asJSON}
	c, err := consumer.New(cfg, consumer.HandlerFunc(p.handle), logger.NewWithWriter(os.Stderr, slog.LevelWarn))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create consumer: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "consumer shutdown: %v\n", err)
	}
}

type printer struct {
	mu     sync.Mutex
	out    io.Writer
	filter domain.ActorID
	raw    bool
}

// handle never returns an error for undecodable records: retrying will not
// make them decodable.
func (p *printer) handle(_ context.Context, msg *consumer.Message) error {
	e, err := events.UnmarshalEnvelope(msg.Value)
	if err != nil {
		p.printf("partition=%d offset=%d undecodable: %v\n", msg.Partition, msg.Offset, err)
		return nil
	}
	if !p.filter.IsZero() && e.Subject != p.filter {
		return nil
	}
	if p.raw {
		p.printf("%s\n", msg.Value)
		return nil
	}

	body, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	p.printf("#%d %s %s subject=%s %s\n",
		e.Seq,
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.Type,
		e.Subject,
		body,
	)
	return nil
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
