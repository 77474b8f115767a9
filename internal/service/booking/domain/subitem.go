// internal/service/booking/domain/subitem.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceType 标识子项对应的资源类别。
// 用枚举 + 策略接口分发，不做字符串比较。
type ResourceType string

const (
	ResourceTicket    ResourceType = "TICKET"     // 门票
	ResourceHotelStay ResourceType = "HOTEL_STAY" // 住宿
)

// StockMode 标识库存归谁管理，决定履约走哪条路径。
type StockMode string

const (
	// StockUpstream 库存由上游资源系统管理，履约 = 调一次上游确认接口
	StockUpstream StockMode = "UPSTREAM"
	// StockSelfManaged 自营库存，履约 = 乐观锁扣减本地台账
	StockSelfManaged StockMode = "SELF_MANAGED"
)

// SubItemStatus 是子项的履约状态。
type SubItemStatus string

const (
	SubItemPending SubItemStatus = "PENDING"
	SubItemSuccess SubItemStatus = "SUCCESS"
	SubItemFailed  SubItemStatus = "FAILED"
)

// OrderSubItem 是组合订单拆出的一条可独立履约的子项。
// 进入终态（SUCCESS/FAILED）后不可再变更。
type OrderSubItem struct {
	ID           string
	OrderID      string
	ResourceType ResourceType
	ResourceID   string
	Quantity     int
	StockMode    StockMode

	Status     SubItemStatus
	RetryCount int
	MaxRetries int

	// ExternalRef 上游确认成功后返回的外部单号
	ExternalRef string
	// ErrorMsg 终态为 FAILED 时的失败原因
	ErrorMsg string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubItems 把订单的资源行拆成子项。拆分是纯粹的结构分解，不会失败。
func NewSubItems(order *Order, maxRetries int) []*OrderSubItem {
	now := time.Now()
	items := make([]*OrderSubItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, &OrderSubItem{
			ID:           uuid.New().String(),
			OrderID:      order.ID,
			ResourceType: line.ResourceType,
			ResourceID:   line.ResourceID,
			Quantity:     line.Quantity,
			StockMode:    line.StockMode,
			Status:       SubItemPending,
			MaxRetries:   maxRetries,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return items
}

// IsTerminal 判断子项是否已到终态。
func (s *OrderSubItem) IsTerminal() bool {
	return s.Status == SubItemSuccess || s.Status == SubItemFailed
}

// MarkSuccess 标记履约成功并记录上游单号。对终态子项调用是无操作。
func (s *OrderSubItem) MarkSuccess(externalRef string) {
	if s.IsTerminal() {
		return
	}
	s.Status = SubItemSuccess
	s.ExternalRef = externalRef
	s.UpdatedAt = time.Now()
}

// MarkFailed 标记履约失败并保留失败原因。对终态子项调用是无操作。
func (s *OrderSubItem) MarkFailed(reason string) {
	if s.IsTerminal() {
		return
	}
	s.Status = SubItemFailed
	s.ErrorMsg = reason
	s.UpdatedAt = time.Now()
}
