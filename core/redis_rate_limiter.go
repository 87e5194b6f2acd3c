package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter shares fixed-window counters across instances.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
}

var rateScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then
	redis.call("SET", KEYS[1], 1, "PX", ARGV[2])
	return 1
end
local count = tonumber(current)
if count >= tonumber(ARGV[1]) then
	return 0
end
redis.call("INCR", KEYS[1])
return 1
`)

func NewRedisRateLimiter(client redis.UniversalClient, keyPrefix string) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "reset-rate:"
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisRateLimiter) key(key string) string {
	return fmt.Sprintf("%s%s", r.keyPrefix, key)
}

func (r *RedisRateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) error {
	result, err := rateScript.Run(ctx, r.client, []string{r.key(key)}, limit, window.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if result == 0 {
		return ErrRateLimitExceeded
	}
	return nil
}

func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}
