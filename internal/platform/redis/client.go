// Package redis connects to the Redis instance that holds the shared
// rate-limit windows when more than one replica serves the API.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"ecertify/internal/platform/config"
)

type Client struct {
	*redis.Client

	metrics *PoolMetrics
	mu      sync.Mutex
	prev    redis.PoolStats
}

type Option func(*Client)

// WithPoolMetrics turns RecordPoolStats on.
func WithPoolMetrics(m *PoolMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Options parses cfg.URL and layers the non-zero pool settings on top. It
// returns nil options for an empty URL.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	setPositive(&opts.PoolSize, cfg.PoolSize)
	setPositive(&opts.MinIdleConns, cfg.MinIdleConns)
	setPositive(&opts.DialTimeout, cfg.DialTimeout)
	setPositive(&opts.ReadTimeout, cfg.ReadTimeout)
	setPositive(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func setPositive[T ~int | ~int64](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// New pings before returning. A nil client and nil error mean Redis is not
// configured.
func New(ctx context.Context, cfg config.RedisConfig, opts ...Option) (*Client, error) {
	ropts, err := Options(cfg)
	if err != nil || ropts == nil {
		return nil, err
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	c := &Client{Client: rdb}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats is a sampler task. Counters advance by the change since the
// previous sample.
func (c *Client) RecordPoolStats(context.Context) error {
	if c.metrics == nil {
		return nil
	}
	cur := *c.PoolStats()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.observe(c.prev, cur)
	c.prev = cur
	return nil
}
