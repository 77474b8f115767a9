// internal/service/booking/infrastructure/adapter/lock_zookeeper_adapter.go
package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tripnexus/internal/service/booking/domain"

	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const zkLockRoot = "/tripnexus_locks" // 所有分布式锁的根节点

// ZookeeperLockAdapter 是 port.LockManager 的 ZooKeeper 实现。
// 用临时节点的"创建即获锁"实现非阻塞 try-acquire：节点已存在说明锁被占用。
// 临时节点随会话消亡，持有者崩溃后锁在会话超时内自动释放，
// 等效于 Redis 实现里的租约；传入的 ttl 用作会话超时的下限参考。
type ZookeeperLockAdapter struct {
	conn *zk.Conn
}

// NewZookeeperLockAdapter 连接 ZooKeeper 并确保锁根节点存在。
func NewZookeeperLockAdapter(servers []string, sessionTimeout time.Duration) (*ZookeeperLockAdapter, error) {
	if sessionTimeout <= 0 {
		sessionTimeout = 5 * time.Second
	}
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to zookeeper")
	}

	if _, err := conn.Create(zkLockRoot, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		conn.Close()
		return nil, errors.Wrap(err, "failed to create lock root node")
	}
	return &ZookeeperLockAdapter{conn: conn}, nil
}

// TryAcquire 创建临时节点，节点已存在则立刻返回 ErrLockBusy。
func (a *ZookeeperLockAdapter) TryAcquire(_ context.Context, key string, _ time.Duration) (string, error) {
	token := uuid.New().String()
	path := a.nodePath(key)

	_, err := a.conn.Create(path, []byte(token), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err == zk.ErrNodeExists {
		return "", errors.Wrapf(domain.ErrLockBusy, "lock %s", key)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to create lock node %s", path)
	}
	return token, nil
}

// Release 比对 token 后删除节点，避免误删他人重新获取的锁。
func (a *ZookeeperLockAdapter) Release(_ context.Context, key, token string) error {
	path := a.nodePath(key)

	data, _, err := a.conn.Get(path)
	if err == zk.ErrNoNode {
		return nil // 会话断开后节点已自动清理
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read lock node %s", path)
	}
	if string(data) != token {
		return nil // 锁已被别人持有，不是我们的了
	}

	if err := a.conn.Delete(path, -1); err != nil && err != zk.ErrNoNode {
		return errors.Wrapf(err, "failed to delete lock node %s", path)
	}
	return nil
}

// Close 关闭 ZooKeeper 会话，所有临时锁节点随之消亡。
func (a *ZookeeperLockAdapter) Close() {
	a.conn.Close()
}

// nodePath 把锁 Key 映射为合法的节点路径（Key 中的 '/' 和 ':' 会破坏层级）。
func (a *ZookeeperLockAdapter) nodePath(key string) string {
	sanitized := strings.NewReplacer("/", "_", ":", "_").Replace(key)
	return fmt.Sprintf("%s/%s", zkLockRoot, sanitized)
}
