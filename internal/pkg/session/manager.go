// internal/pkg/session/manager.go
package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:operator:"
	sessionTTL       = 24 * time.Hour
)

// Manager 在Redis中维护 运营人员 -> 网关节点 的会话映射。
// 多个push-gateway节点共享这份映射，路由方据此找到用户所在节点。
type Manager struct {
	client *goredis.Client
}

func NewManager(redisAddr string) *Manager {
	return &Manager{
		client: goredis.NewClient(&goredis.Options{Addr: redisAddr}),
	}
}

// SetOperatorGateway 记录运营人员连接到了哪个网关节点。
func (m *Manager) SetOperatorGateway(ctx context.Context, operatorID, nodeID string) error {
	err := m.client.Set(ctx, sessionKeyPrefix+operatorID, nodeID, sessionTTL).Err()
	return errors.Wrapf(err, "set session for operator %s", operatorID)
}

// GetOperatorGateway 返回运营人员所在的网关节点ID。离线时返回空字符串。
func (m *Manager) GetOperatorGateway(ctx context.Context, operatorID string) (string, error) {
	nodeID, err := m.client.Get(ctx, sessionKeyPrefix+operatorID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "get session for operator %s", operatorID)
	}
	return nodeID, nil
}

// RemoveOperatorGateway 在连接断开时清除会话映射。
// 只有映射仍指向本节点时才删除，避免误删用户重连到其他节点后的新会话。
func (m *Manager) RemoveOperatorGateway(ctx context.Context, operatorID, nodeID string) error {
	current, err := m.GetOperatorGateway(ctx, operatorID)
	if err != nil {
		return err
	}
	if current != nodeID {
		return nil
	}
	err = m.client.Del(ctx, sessionKeyPrefix+operatorID).Err()
	return errors.Wrapf(err, "remove session for operator %s", operatorID)
}

func (m *Manager) Close() error {
	return m.client.Close()
}
