// Package cache holds the Redis-backed helpers: rate limiting, the access-token
// cache and the scheduler lock. Every helper degrades to an in-process version
// when Redis is not configured or unreachable.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
)

// NewRedisClient connects to Redis. It returns nil when no address is
// configured or the server does not answer a ping; callers must degrade.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("⚠️  Redis unavailable, using in-process fallbacks")
		_ = client.Close()
		return nil
	}
	log.Info().Str("addr", cfg.Addr).Msg("✅ Redis connected")
	return client
}
