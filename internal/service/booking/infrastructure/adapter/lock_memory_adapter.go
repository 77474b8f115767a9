// internal/service/booking/infrastructure/adapter/lock_memory_adapter.go
package adapter

import (
	"context"
	"sync"
	"time"

	"tripnexus/internal/service/booking/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryLockAdapter 是 port.LockManager 的进程内实现。
// 用于测试（确定性地构造"锁被占用"）和单机部署，语义与 Redis 实现一致：
// 非阻塞、带租约过期、token 比对释放。
type MemoryLockAdapter struct {
	mu    sync.Mutex
	locks map[string]memoryLease
}

type memoryLease struct {
	token    string
	expireAt time.Time
}

// NewMemoryLockAdapter 创建内存锁适配器。
func NewMemoryLockAdapter() *MemoryLockAdapter {
	return &MemoryLockAdapter{locks: make(map[string]memoryLease)}
}

func (a *MemoryLockAdapter) TryAcquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if lease, ok := a.locks[key]; ok && time.Now().Before(lease.expireAt) {
		return "", errors.Wrapf(domain.ErrLockBusy, "lock %s", key)
	}

	token := uuid.New().String()
	a.locks[key] = memoryLease{token: token, expireAt: time.Now().Add(ttl)}
	return token, nil
}

func (a *MemoryLockAdapter) Release(_ context.Context, key, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if lease, ok := a.locks[key]; ok && lease.token == token {
		delete(a.locks, key)
	}
	return nil
}

// Held 返回当前是否有人持有该锁，测试用。
func (a *MemoryLockAdapter) Held(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	lease, ok := a.locks[key]
	return ok && time.Now().Before(lease.expireAt)
}
