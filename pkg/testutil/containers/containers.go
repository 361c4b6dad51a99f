//go:build integration

// Package containers starts the services integration suites run against.
// Each one starts on first use and is then shared by every suite in the test
// binary. Ryuk removes them when the process exits, so nothing here registers
// a cleanup.
package containers

import (
	"context"
	"sync"
	"testing"
	"time"
)

const startTimeout = 2 * time.Minute

type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
}

var manager = &Manager{}

func GetManager() *Manager { return manager }

// GetPostgres returns a migrated, empty-on-first-use ledger database.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return shared(m, t, "postgres", &m.postgres, startPostgres)
}

// GetKafka returns a Redpanda broker. It speaks the Kafka protocol and boots
// in seconds.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return shared(m, t, "kafka", &m.kafka, startKafka)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return shared(m, t, "redis", &m.redis, startRedis)
}

func shared[C any](m *Manager, t *testing.T, name string, slot **C, start func(context.Context) (*C, error)) *C {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot != nil {
		return *slot
	}
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	c, err := start(ctx)
	if err != nil {
		t.Fatalf("start %s container: %v", name, err)
	}
	*slot = c
	return c
}
