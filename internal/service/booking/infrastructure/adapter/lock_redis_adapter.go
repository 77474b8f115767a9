// internal/service/booking/infrastructure/adapter/lock_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"tripnexus/internal/pkg/redis"
	"tripnexus/internal/service/booking/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const releaseLockScriptName = "release_lock"

// releaseLockScript 比对 token 后删除，保证只释放自己持有的锁。
// 租约过期后 key 可能已被别人持有，直接 DEL 会误删他人的锁。
var releaseLockScript = `
-- KEYS[1]: 锁的 Key
-- ARGV[1]: 持有者的 token

if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
else
    return 0
end
`

// RedisLockAdapter 是 port.LockManager 的 Redis 实现。
// SET NX PX 提供非阻塞的带租约获取，Lua 脚本提供 token 比对释放。
type RedisLockAdapter struct {
	redisClient *redis.Client
}

// NewRedisLockAdapter 创建 Redis 锁适配器，创建时加载释放脚本。
func NewRedisLockAdapter(redisClient *redis.Client) (*RedisLockAdapter, error) {
	if err := redisClient.LoadScriptFromContent(releaseLockScriptName, releaseLockScript); err != nil {
		return nil, fmt.Errorf("failed to load lock release script: %w", err)
	}
	return &RedisLockAdapter{redisClient: redisClient}, nil
}

// TryAcquire 非阻塞获取：拿不到立刻返回 ErrLockBusy，绝不等待。
func (a *RedisLockAdapter) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := a.redisClient.GetClient().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", errors.Wrapf(err, "redis SETNX failed for %s", key)
	}
	if !ok {
		return "", errors.Wrapf(domain.ErrLockBusy, "lock %s", key)
	}
	return token, nil
}

// Release 通过 Lua 脚本原子地比对并删除。
func (a *RedisLockAdapter) Release(ctx context.Context, key, token string) error {
	result, err := a.redisClient.RunScript(ctx, releaseLockScriptName, []string{key}, token)
	if err != nil {
		return errors.Wrapf(err, "failed to release lock %s", key)
	}
	if deleted, ok := result.(int64); ok && deleted == 0 {
		// 租约已过期或 token 不匹配。锁事实上已经不归我们持有，不算错误
		return nil
	}
	return nil
}
