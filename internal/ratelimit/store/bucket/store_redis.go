package bucket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"linkage/internal/ratelimit/models"
	dErrors "linkage/pkg/domain-errors"
)

// allowScript atomically prunes expired entries, checks capacity, and
// consumes cost units. Entries are sorted-set members scored by their
// arrival time in milliseconds. Returns {allowed, used, reset_at_millis}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local span = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local seed = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - span)
local used = redis.call('ZCARD', key)

local function reset_at()
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  if oldest[2] then
    return tonumber(oldest[2]) + span
  end
  return now + span
end

if used + cost > limit then
  return {0, used, reset_at()}
end

for i = 1, cost do
  redis.call('ZADD', key, now, seed .. ':' .. i)
end
redis.call('PEXPIRE', key, span)
return {1, used + cost, reset_at()}
`)

// RedisStore is a Redis-backed sliding window store shared across nodes.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed bucket store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Allow checks if a single unit is available and consumes it if so.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, windowSpan time.Duration) (*models.Result, error) {
	return s.AllowN(ctx, key, 1, limit, windowSpan)
}

// AllowN checks if 'cost' units are available and consumes them if so.
func (s *RedisStore) AllowN(ctx context.Context, key string, cost, limit int, windowSpan time.Duration) (*models.Result, error) {
	now := time.Now()
	raw, err := allowScript.Run(ctx, s.client,
		[]string{key},
		now.UnixMilli(),
		windowSpan.Milliseconds(),
		limit,
		cost,
		uuid.NewString(),
	).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "redis budget check failed")
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		return nil, dErrors.New(dErrors.CodeInternal, "redis budget check returned unexpected shape")
	}
	allowed, aok := vals[0].(int64)
	used, uok := vals[1].(int64)
	resetMillis, rok := vals[2].(int64)
	if !aok || !uok || !rok {
		return nil, dErrors.New(dErrors.CodeInternal, "redis budget check returned unexpected shape")
	}

	resetAt := time.UnixMilli(resetMillis)
	result := &models.Result{
		Allowed:   allowed == 1,
		Limit:     limit,
		Remaining: max(0, limit-int(used)),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = retryAfter(now, resetAt)
	}
	return result, nil
}

// Reset clears the window for a key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "redis budget reset failed")
	}
	return nil
}

// GetCurrentCount returns how many units are recorded for a key. Expired
// entries are pruned on every AllowN call and the key itself carries a TTL,
// so the count can only overshoot by the entries aged since the last check.
func (s *RedisStore) GetCurrentCount(ctx context.Context, key string) (int, error) {
	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "redis budget count failed")
	}
	return int(count), nil
}
