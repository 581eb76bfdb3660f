// Package ratelimit implements sliding-window request limiting with
// pluggable in-memory and Redis backends.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config describes one sliding window: at most Limit events per trailing
// Window.
type Config struct {
	Window time.Duration
	Limit  int
}

// LimitExceededError is returned by Check when a bucket is over its limit.
type LimitExceededError struct {
	RetryAfter time.Duration
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Limiter is the rate-limiting contract shared by both backends.
type Limiter interface {
	// Check records one event in the bucket if it is under the limit,
	// or returns *LimitExceededError without recording anything.
	Check(ctx context.Context, bucket string, cfg Config) error
	// Count returns the number of events currently inside the bucket's
	// window. It never mutates state.
	Count(ctx context.Context, bucket string) int
}

// MemoryLimiter is an in-process sliding-window limiter for tests and
// single-instance deployments.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter creates an in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check prunes expired entries, rejects when the bucket is full, and
// otherwise records the current timestamp.
func (m *MemoryLimiter) Check(ctx context.Context, bucket string, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	windowStart := now.Add(-cfg.Window)

	entries := m.buckets[bucket]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= cfg.Limit {
		retryAfter := valid[0].Add(cfg.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		m.buckets[bucket] = valid
		return &LimitExceededError{RetryAfter: retryAfter}
	}

	m.buckets[bucket] = append(valid, now)
	return nil
}

// Count returns the live entry count without recording anything.
func (m *MemoryLimiter) Count(ctx context.Context, bucket string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.buckets[bucket]
	if !ok {
		return 0
	}

	windowStart := m.now().Add(-time.Minute)
	count := 0
	for _, t := range entries {
		if t.After(windowStart) {
			count++
		}
	}
	return count
}

// Reset clears all buckets. Test helper.
func (m *MemoryLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make(map[string][]time.Time)
}
