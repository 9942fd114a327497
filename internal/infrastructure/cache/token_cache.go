package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
)

const tokenKeyPrefix = "crm:token:"

// NewTokenCache returns a Redis-backed cache, or an in-process one when rdb is nil
func NewTokenCache(rdb *redis.Client) ports.TokenCache {
	if rdb == nil {
		return NewMemoryTokenCache()
	}
	return &RedisTokenCache{rdb: rdb}
}

// RedisTokenCache shares tokens between instances
type RedisTokenCache struct {
	rdb *redis.Client
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, tokenKeyPrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("⚠️  Token cache read failed")
		}
		return "", false
	}
	return val, true
}

func (c *RedisTokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, tokenKeyPrefix+key, value, ttl).Err()
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// MemoryTokenCache is a mutex-guarded map with expiry
type MemoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[string]cachedToken
	now    func() time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]cachedToken), now: time.Now}
}

func (c *MemoryTokenCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tokens[key]
	if !ok || !c.now().Before(t.expiresAt) {
		return "", false
	}
	return t.value, true
}

func (c *MemoryTokenCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = cachedToken{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}
