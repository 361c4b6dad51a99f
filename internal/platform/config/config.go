package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    slog.Level
	// StrictContentRefs rejects certificate refs that do not decode as CIDs.
	StrictContentRefs bool
	// RateLimitPerMinute caps mutations per caller. Zero disables the limiter.
	RateLimitPerMinute int
	// SeedDemo populates an in-memory ledger with demo accounts at startup.
	// Ignored in production and with a database configured.
	SeedDemo bool

	// LedgerTxTimeout bounds how long a ledger operation waits for the write lock.
	LedgerTxTimeout time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// DatabaseConfig selects the PostgreSQL backend when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the shared rate limiter when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the event relay when Brokers is set.
type KafkaConfig struct {
	Brokers       string
	EventsTopic   string
	ClientID      string
	RelayInterval time.Duration
	RelayBatch    int
}

// IsProduction reports whether the process runs with ENVIRONMENT=production.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:               getEnv("ECERTIFY_ADDR", ":8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           parseLevel(os.Getenv("LOG_LEVEL")),
		StrictContentRefs:  os.Getenv("STRICT_CONTENT_REFS") == "true",
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 60),
		LedgerTxTimeout:    getDuration("LEDGER_TX_TIMEOUT", 5*time.Second),
		SeedDemo:           os.Getenv("ECERTIFY_SEED_DEMO") == "true",
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       os.Getenv("KAFKA_BROKERS"),
			EventsTopic:   getEnv("LEDGER_EVENTS_TOPIC", "ecertify.ledger.events"),
			ClientID:      getEnv("KAFKA_CLIENT_ID", "ecertify-relay"),
			RelayInterval: getDuration("RELAY_INTERVAL", time.Second),
			RelayBatch:    getInt("RELAY_BATCH_SIZE", 100),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getInt falls back to def on unset or unparsable values.
func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
