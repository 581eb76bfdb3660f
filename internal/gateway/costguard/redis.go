package costguard

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisGuard persists spend in Redis so budgets are shared across gateway
// instances. Increments are atomic (INCRBYFLOAT) and each profile key
// expires at the end of its budget epoch. Unlike the rate limiter, this
// guard fails open: on a backend error it falls back to the last usage it
// observed in memory instead of rejecting the request, since the guard is
// a spend ceiling rather than an admission control.
type RedisGuard struct {
	client  *redis.Client
	budgets map[string]float64
	epoch   time.Duration

	mu        sync.Mutex
	lastUsage map[string]float64
}

// NewRedisGuard creates a Redis-backed guard. epoch is the TTL applied to
// each profile's spend key.
func NewRedisGuard(client *redis.Client, budgets map[string]float64, epoch time.Duration) *RedisGuard {
	g := &RedisGuard{
		client:    client,
		budgets:   make(map[string]float64, len(budgets)),
		epoch:     epoch,
		lastUsage: make(map[string]float64),
	}
	for profile, budget := range budgets {
		g.budgets[profile] = budget
	}
	return g
}

func (g *RedisGuard) key(profile string) string {
	return fmt.Sprintf("spend:%s", profile)
}

func (g *RedisGuard) usage(ctx context.Context, profile string) float64 {
	val, err := g.client.Get(ctx, g.key(profile)).Float64()
	if err == redis.Nil {
		g.snapshot(profile, 0)
		return 0
	}
	if err != nil {
		// Fail open with the last known usage.
		log.Printf("redis cost guard read failed for profile %s: %v", profile, err)
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.lastUsage[profile]
	}

	g.snapshot(profile, val)
	return val
}

func (g *RedisGuard) snapshot(profile string, used float64) {
	g.mu.Lock()
	g.lastUsage[profile] = used
	g.mu.Unlock()
}

func (g *RedisGuard) Evaluate(ctx context.Context, profile string, expectedCost float64) Decision {
	return decide(g.budgets, profile, g.usage(ctx, profile), expectedCost)
}

func (g *RedisGuard) Record(ctx context.Context, profile string, actualCost float64) {
	key := g.key(profile)
	pipe := g.client.TxPipeline()
	incr := pipe.IncrByFloat(ctx, key, actualCost)
	pipe.Expire(ctx, key, g.epoch)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("redis cost guard record failed for profile %s: %v", profile, err)
		g.mu.Lock()
		g.lastUsage[profile] += actualCost
		g.mu.Unlock()
		return
	}
	g.snapshot(profile, incr.Val())
}

func (g *RedisGuard) Remaining(ctx context.Context, profile string) *float64 {
	budget, ok := g.budgets[profile]
	if !ok {
		return nil
	}

	remaining := budget - g.usage(ctx, profile)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
