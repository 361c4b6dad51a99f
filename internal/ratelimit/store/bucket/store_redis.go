package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ecertify/internal/ratelimit/models"
	"ecertify/pkg/requestcontext"
)

// slidingWindowScript keeps one sorted-set member per hit, scored by its time
// in milliseconds. Returns {allowed, remaining, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

local function reset_at()
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  if oldest[2] then
    return tonumber(oldest[2]) + window
  end
  return now + window
end

if count + cost > limit then
  return {0, 0, reset_at()}
end

for i = 1, cost do
  redis.call('ZADD', key, now, member .. ':' .. i)
end
redis.call('PEXPIRE', key, window)
return {1, limit - count - cost, reset_at()}
`)

// RedisBucketStore shares sliding windows across server instances.
type RedisBucketStore struct {
	client *redis.Client
}

func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

// AllowN runs the window check and the hit insert atomically in one script call.
func (s *RedisBucketStore) AllowN(ctx context.Context, key models.Key, cost, limit int, window time.Duration) (*models.Result, error) {
	now := requestcontext.Now(ctx)
	out, err := slidingWindowScript.Run(ctx, s.client, []string{key.String()},
		now.UnixMilli(), window.Milliseconds(), limit, cost, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check %s: %w", key, err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("rate limit check %s: unexpected reply length %d", key, len(out))
	}

	result := &models.Result{
		Allowed:   out[0] == 1,
		Limit:     limit,
		Remaining: int(out[1]),
		ResetAt:   time.UnixMilli(out[2]).UTC(),
	}
	if !result.Allowed {
		result.RetryAfter = models.RetryAfterSeconds(now, result.ResetAt)
	}
	return result, nil
}

// Reset clears the window for key.
func (s *RedisBucketStore) Reset(ctx context.Context, key models.Key) error {
	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("reset rate limit %s: %w", key, err)
	}
	return nil
}

// CurrentCount returns the hits still inside key's window.
func (s *RedisBucketStore) CurrentCount(ctx context.Context, key models.Key, window time.Duration) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-window).UnixMilli()
	n, err := s.client.ZCount(ctx, key.String(), fmt.Sprintf("(%d", cutoff), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count rate limit %s: %w", key, err)
	}
	return int(n), nil
}
