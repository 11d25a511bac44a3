// Package ratelimit limits requests per client key. RedisLimiter shares a
// fixed window across replicas; LocalLimiter is an in-process token bucket
// used when Redis is disabled.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request identified by key may proceed.
// It returns the remaining budget and the time the budget resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error)
	MaxRequests() int
}

// fixedWindow counts requests per key and expires the counter after the
// window. Returns {allowed, remaining, reset_unix}.
var fixedWindow = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local current = redis.call('GET', key)
	if current == false then
		redis.call('SET', key, 1, 'EX', window)
		return {1, max_requests - 1, now + window}
	end

	current = tonumber(current)
	local ttl = redis.call('TTL', key)
	if current < max_requests then
		redis.call('INCR', key)
		return {1, max_requests - current - 1, now + ttl}
	end
	return {0, 0, now + ttl}
`)

// RedisLimiter is a fixed-window limiter backed by a Lua script so the
// read-increment is atomic.
type RedisLimiter struct {
	client      redis.Scripter
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewRedisLimiter allows maxRequests per window for each key
func NewRedisLimiter(client redis.Scripter, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	result, err := fixedWindow.Run(
		ctx,
		rl.client,
		[]string{"ratelimit:" + key},
		rl.maxRequests,
		int(rl.window.Seconds()),
		rl.now().Unix(),
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected rate limit result: %v", result)
	}

	return result[0] == 1, int(result[1]), time.Unix(result[2], 0), nil
}

// MaxRequests returns the maximum number of requests allowed
func (rl *RedisLimiter) MaxRequests() int {
	return rl.maxRequests
}
