package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// checkScript performs prune + count + conditional insert atomically so
// two concurrent requests cannot both take the last slot in a window.
// Returns {allowed, retry_after_seconds}.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry = 0
	if oldest[2] then
		retry = (tonumber(oldest[2]) + window) - now
		if retry < 0 then
			retry = 0
		end
	end
	return {0, tostring(retry)}
end

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, math.ceil(window))
return {1, '0'}
`)

// RedisLimiter is a sliding-window limiter backed by Redis sorted sets,
// shared across gateway instances. It fails closed: a backend error is
// treated as "limit exceeded" rather than letting traffic through
// unmetered.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (r *RedisLimiter) key(bucket string, window time.Duration) string {
	return fmt.Sprintf("rate:%s:%d", bucket, int(window.Seconds()))
}

// Check runs the atomic prune-count-insert sequence in one round trip.
func (r *RedisLimiter) Check(ctx context.Context, bucket string, cfg Config) error {
	key := r.key(bucket, cfg.Window)
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	result, err := checkScript.Run(ctx, r.client,
		[]string{key},
		now,
		cfg.Window.Seconds(),
		cfg.Limit,
		uuid.New().String(),
	).Result()
	if err != nil {
		// Fail closed: a broken backend must not admit unlimited traffic.
		log.Printf("redis rate limiter error for bucket %s: %v", bucket, err)
		return &LimitExceededError{RetryAfter: 0}
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		log.Printf("redis rate limiter returned unexpected shape for bucket %s", bucket)
		return &LimitExceededError{RetryAfter: 0}
	}

	allowed, _ := values[0].(int64)
	if allowed == 1 {
		return nil
	}

	retrySeconds := 0.0
	if s, ok := values[1].(string); ok {
		fmt.Sscanf(s, "%f", &retrySeconds)
	}
	return &LimitExceededError{RetryAfter: time.Duration(retrySeconds * float64(time.Second))}
}

// Count reports the live window size without mutating the sorted set.
func (r *RedisLimiter) Count(ctx context.Context, bucket string) int {
	count, err := r.client.ZCard(ctx, r.key(bucket, time.Minute)).Result()
	if err != nil {
		return 0
	}
	return int(count)
}
