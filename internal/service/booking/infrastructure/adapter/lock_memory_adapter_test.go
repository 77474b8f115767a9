package adapter

import (
	"context"
	"testing"
	"time"

	"tripnexus/internal/service/booking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockAcquireAndRelease(t *testing.T) {
	locks := NewMemoryLockAdapter()
	ctx := context.Background()

	token, err := locks.TryAcquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, locks.Held("lock:a"))

	// 第二个获取者必须立刻失败，不能等待
	_, err = locks.TryAcquire(ctx, "lock:a", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockBusy)

	require.NoError(t, locks.Release(ctx, "lock:a", token))
	assert.False(t, locks.Held("lock:a"))

	_, err = locks.TryAcquire(ctx, "lock:a", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLockReleaseRequiresToken(t *testing.T) {
	locks := NewMemoryLockAdapter()
	ctx := context.Background()

	token, err := locks.TryAcquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)

	// 错误的 token 不能释放别人的锁
	require.NoError(t, locks.Release(ctx, "lock:a", "not-my-token"))
	assert.True(t, locks.Held("lock:a"))

	require.NoError(t, locks.Release(ctx, "lock:a", token))
	assert.False(t, locks.Held("lock:a"))
}

func TestMemoryLockLeaseExpires(t *testing.T) {
	locks := NewMemoryLockAdapter()
	ctx := context.Background()

	_, err := locks.TryAcquire(ctx, "lock:a", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	// 租约到期后锁可以被重新获取，持有者崩溃不会造成永久死锁
	assert.False(t, locks.Held("lock:a"))
	_, err = locks.TryAcquire(ctx, "lock:a", time.Minute)
	assert.NoError(t, err)
}
