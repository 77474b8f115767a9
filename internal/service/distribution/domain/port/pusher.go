// internal/service/distribution/domain/port/pusher.go
package port

import (
	"context"

	"tripnexus/internal/service/distribution/domain"
)

// ChannelPusher 是向下游渠道推送库存快照的出站端口。
type ChannelPusher interface {
	Push(ctx context.Context, channel domain.Channel, snapshots []domain.InventorySnapshot) error
}

// RuleEngine 判定一条快照是否匹配渠道的订阅规则。
type RuleEngine interface {
	Evaluate(rule string, snapshot domain.InventorySnapshot) (bool, error)
}
