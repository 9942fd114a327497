package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
)

var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, retry_after_ms }
`)

// NewRateLimiter returns a Redis token bucket, or an in-process one when rdb is nil.
// It returns nil when rate limiting is switched off; callers treat nil as allow-all.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) ports.RateLimiter {
	if !cfg.Enabled {
		return nil
	}
	if rdb == nil {
		return NewMemoryRateLimiter(cfg)
	}
	return &RedisRateLimiter{rdb: rdb, cfg: cfg, now: time.Now}
}

// RedisRateLimiter is a token bucket shared by every instance
type RedisRateLimiter struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
	now func() time.Time
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	args := []interface{}{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL / time.Second),
	}
	vals, err := tokenBucketScript.Run(ctx, l.rdb, []string{l.cfg.Prefix + ":" + key}, args...).Result()
	if err != nil {
		return true, 0, fmt.Errorf("rate limit script: %w", err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return true, 0, fmt.Errorf("unexpected rate limit result %#v", vals)
	}
	return asInt64(arr[0]) == 1, time.Duration(asInt64(arr[1])) * time.Millisecond, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	touched    time.Time
}

// MemoryRateLimiter is the single-instance token bucket
type MemoryRateLimiter struct {
	mu      sync.Mutex
	cfg     config.RateLimitConfig
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryRateLimiter(cfg config.RateLimitConfig) *MemoryRateLimiter {
	return &MemoryRateLimiter{cfg: cfg, buckets: make(map[string]*bucket), now: time.Now}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.cfg.Capacity, lastRefill: now}
		l.buckets[key] = b
	}
	b.touched = now

	if l.cfg.RefillInterval > 0 && l.cfg.RefillTokens > 0 {
		intervals := int(now.Sub(b.lastRefill) / l.cfg.RefillInterval)
		if intervals > 0 {
			b.tokens += intervals * l.cfg.RefillTokens
			if b.tokens > l.cfg.Capacity {
				b.tokens = l.cfg.Capacity
			}
			b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * l.cfg.RefillInterval)
		}
	}

	if b.tokens > 0 {
		b.tokens--
		return true, 0, nil
	}
	retry := l.cfg.RefillInterval - now.Sub(b.lastRefill)
	if retry < 0 {
		retry = 0
	}
	return false, retry, nil
}

// evict drops buckets idle for longer than the TTL
func (l *MemoryRateLimiter) evict(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.touched) > l.cfg.TTL {
			delete(l.buckets, k)
		}
	}
}
