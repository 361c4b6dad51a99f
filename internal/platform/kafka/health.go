package kafka

import (
	"context"
	"errors"
	"fmt"
)

// Pinger is implemented by the producer and the consumer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck reports whether any seed broker answers p's ping.
func ReadinessCheck(p Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if p == nil {
			return errors.New("kafka client not configured")
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("no kafka brokers reachable: %w", err)
		}
		return nil
	}
}
