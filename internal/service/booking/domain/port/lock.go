// internal/service/booking/domain/port/lock.go
package port

import (
	"context"
	"time"
)

// LockManager 是 (资源, 日期) 维度互斥锁的出站端口。
// 实现必须满足：
//   - TryAcquire 非阻塞：锁被占用时立刻返回 domain.ErrLockBusy，绝不等待
//   - 租约到期后锁自动失效，持有者崩溃也不会造成永久死锁
//   - Release 只释放自己持有的锁（token 比对），过期后误删他人的锁是不可接受的
// 生产环境用 Redis 或 ZooKeeper 实现，测试用内存实现确定性地构造"锁被占用"。
type LockManager interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}
