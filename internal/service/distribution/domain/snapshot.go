// internal/service/distribution/domain/snapshot.go
package domain

import (
	"fmt"
	"strconv"
)

// InventorySnapshot 是面向渠道分发的库存快照。
// 同一个 (ResourceID, Date) 在一个批次内只应出现一次。
type InventorySnapshot struct {
	ResourceID   string  `json:"resource_id"`
	ResourceType string  `json:"resource_type"`
	City         string  `json:"city"`
	Date         string  `json:"date"` // 格式: 2006-01-02
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	IsClosed     bool    `json:"is_closed"`
}

// Key 返回快照在指纹缓存中的定位键（资源+日期）。
func (s *InventorySnapshot) Key() (resourceID, date string) {
	return s.ResourceID, s.Date
}

// Fingerprint 计算快照业务字段的指纹。
// 只纳入会影响渠道侧售卖的字段：数量、价格、是否关房。
// 价格固定两位小数，避免浮点表示差异造成的假变更。
func (s *InventorySnapshot) Fingerprint() string {
	return fmt.Sprintf("%d|%s|%s",
		s.Quantity,
		strconv.FormatFloat(s.Price, 'f', 2, 64),
		strconv.FormatBool(s.IsClosed),
	)
}
