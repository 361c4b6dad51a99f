package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"ECERTIFY_ADDR", "ENVIRONMENT", "LOG_LEVEL", "STRICT_CONTENT_REFS",
		"RATE_LIMIT_PER_MINUTE", "ECERTIFY_SEED_DEMO", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "LEDGER_EVENTS_TOPIC",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.StrictContentRefs)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 5*time.Second, cfg.LedgerTxTimeout)
	assert.False(t, cfg.SeedDemo)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "ecertify.ledger.events", cfg.Kafka.EventsTopic)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ECERTIFY_ADDR", ":9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STRICT_CONTENT_REFS", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	t.Setenv("LEDGER_TX_TIMEOUT", "250ms")
	t.Setenv("ECERTIFY_SEED_DEMO", "true")
	t.Setenv("DATABASE_URL", "postgres://ledger@db/ecertify")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("LEDGER_EVENTS_TOPIC", "custom.topic")

	cfg := FromEnv()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.StrictContentRefs)
	assert.Zero(t, cfg.RateLimitPerMinute)
	assert.Equal(t, 250*time.Millisecond, cfg.LedgerTxTimeout)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, "postgres://ledger@db/ecertify", cfg.Database.URL)
	assert.Equal(t, "kafka:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "custom.topic", cfg.Kafka.EventsTopic)
}

func TestFromEnv_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "lots")
	t.Setenv("LEDGER_TX_TIMEOUT", "soon")

	cfg := FromEnv()
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 5*time.Second, cfg.LedgerTxTimeout)
}
