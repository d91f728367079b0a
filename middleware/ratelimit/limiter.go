package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoClient is returned by Limiter methods when no Redis client is configured.
var ErrNoClient = errors.New("rate limiter has no redis client")

// slidingWindow atomically trims expired hits, counts the window and records
// the new hit when it fits. Members are made unique with a per-key counter.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local current = redis.call('ZCARD', key)
	local expire_seconds = math.ceil(window_ms / 1000)

	if current < limit then
		local counter = redis.call('INCR', key .. ':counter')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		redis.call('EXPIRE', key, expire_seconds)
		redis.call('EXPIRE', key .. ':counter', expire_seconds)
		return {1, limit - current - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset_at = 0
	if oldest and #oldest >= 2 then
		reset_at = tonumber(oldest[2]) + window_ms
	end
	return {0, 0, reset_at}
`)

// Limiter implements sliding window rate limiting using Redis sorted sets.
type Limiter struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewLimiter creates a new rate limiter with Redis backend.
func NewLimiter(client *redis.Client, keyPrefix string) *Limiter {
	return &Limiter{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Allow records a hit for key and reports whether it fits in the window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if l.client == nil {
		return nil, ErrNoClient
	}

	now := l.now()
	nowMs := now.UnixMilli()
	windowStartMs := now.Add(-window).UnixMilli()

	result, err := slidingWindow.Run(ctx, l.client, []string{l.keyPrefix + key},
		nowMs, windowStartMs, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis script error: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("unexpected Redis response length: %d", len(result))
	}

	return buildResult(result, now, limit, window), nil
}

// buildResult interprets the script reply {allowed, remaining, resetAtMs}.
func buildResult(reply []int64, now time.Time, limit int, window time.Duration) *RateLimitResult {
	resetAt := now.Add(window)
	if reply[2] > 0 {
		resetAt = time.UnixMilli(reply[2])
	}
	return &RateLimitResult{
		Allowed:   reply[0] == 1,
		Remaining: int(reply[1]),
		ResetAt:   resetAt,
		Limit:     limit,
	}
}

// Reset clears the rate limit for a specific key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l.client == nil {
		return ErrNoClient
	}
	redisKey := l.keyPrefix + key
	return l.client.Del(ctx, redisKey, redisKey+":counter").Err()
}

// GetStats returns the number of hits currently inside the window for key.
func (l *Limiter) GetStats(ctx context.Context, key string, window time.Duration) (int, error) {
	if l.client == nil {
		return 0, ErrNoClient
	}
	redisKey := l.keyPrefix + key
	windowStart := l.now().Add(-window).UnixMilli()

	if err := l.client.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart, 10)).Err(); err != nil {
		return 0, err
	}
	count, err := l.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
