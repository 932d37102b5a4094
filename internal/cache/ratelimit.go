package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitIPPrefix is the Redis key prefix for per-IP token buckets.
	rateLimitIPPrefix = "ratelimit:ip:"
	// quotaPrefix is the Redis key prefix for fixed-window counters.
	quotaPrefix = "ratelimit:window:"
	// rateLimitIPTTL is the TTL for IP rate limit keys.
	rateLimitIPTTL = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// fixedWindowScript increments a counter and starts its window on first use.
// Returns {count, remaining window in ms}.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	local ttl = redis.call('PTTL', KEYS[1])
	if count == 1 or ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// CheckIPRateLimit checks and updates the token bucket for an IP address.
// IP is hashed to avoid storing raw IP addresses.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	key := rateLimitIPPrefix + hashIdentity(ip)
	rate := float64(ratePerSecond)
	now := time.Now().Unix()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		rate, burst, now, int(rateLimitIPTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		// Fail open on Redis errors - allow the request
		return &RateLimitResult{
			Allowed:   true,
			Limit:     int64(burst),
			Remaining: int64(burst),
			ResetAt:   time.Now().Add(time.Second),
		}, nil
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Limit:      int64(burst),
		Remaining:  result[2],
		ResetAt:    time.Now().Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}, nil
}

// CheckQuota counts one request for identity within scope and reports whether
// it stays within limit for the current fixed window.
func (c *Cache) CheckQuota(ctx context.Context, scope, identity string, limit int, window time.Duration) (*RateLimitResult, error) {
	count, resetIn, err := c.countInWindow(ctx, scope, identity, window)
	if err != nil {
		return &RateLimitResult{
			Allowed:   true,
			Limit:     int64(limit),
			Remaining: int64(limit),
			ResetAt:   time.Now().Add(window),
		}, nil
	}

	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}

	result := &RateLimitResult{
		Allowed:   count <= int64(limit),
		Limit:     int64(limit),
		Remaining: remaining,
		ResetAt:   time.Now().Add(resetIn),
	}
	if !result.Allowed {
		result.RetryAfter = resetIn
	}

	return result, nil
}

// CountRequest counts one request for identity within scope and returns the
// running total for the current window. Redis errors report zero.
func (c *Cache) CountRequest(ctx context.Context, scope, identity string, window time.Duration) int64 {
	count, _, err := c.countInWindow(ctx, scope, identity, window)
	if err != nil {
		return 0
	}
	return count
}

func (c *Cache) countInWindow(ctx context.Context, scope, identity string, window time.Duration) (int64, time.Duration, error) {
	key := quotaPrefix + scope + ":" + hashIdentity(identity)

	result, err := fixedWindowScript.Run(ctx, c.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}

	return result[0], time.Duration(result[1]) * time.Millisecond, nil
}

// hashIdentity creates a truncated SHA256 hash of an IP address or uid.
func hashIdentity(id string) string {
	hash := sha256.Sum256([]byte(id))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
