package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const lockKeyPrefix = "crm:lock:"

// unlockScript deletes the key only when this instance still owns it
var unlockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// NewLocker returns a Redis lock, or a lock that always succeeds when rdb is nil
func NewLocker(rdb *redis.Client) ports.Locker {
	if rdb == nil {
		return NoopLocker{}
	}
	return &RedisLocker{rdb: rdb, owner: utils.GenerateID()}
}

// RedisLocker is a SET NX lock keyed per job
type RedisLocker struct {
	rdb   *redis.Client
	owner string
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, lockKeyPrefix+key, l.owner, ttl).Result()
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	return unlockScript.Run(ctx, l.rdb, []string{lockKeyPrefix + key}, l.owner).Err()
}

// NoopLocker is used on single-instance deployments
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NoopLocker) Unlock(context.Context, string) error                         { return nil }
