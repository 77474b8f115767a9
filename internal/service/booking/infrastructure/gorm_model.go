// internal/service/booking/infrastructure/gorm_model.go
package infrastructure

import (
	"time"
)

// OrderModel 对应数据库中的 booking_order 表
type OrderModel struct {
	ID       string `gorm:"primaryKey;size:36"`
	ParentID string `gorm:"size:36;index"`
	Status   string `gorm:"size:32;index"`

	CheckIn  time.Time `gorm:"type:date"`
	CheckOut time.Time `gorm:"type:date"`

	ConfirmedAt *time.Time
	CancelledAt *time.Time
	VerifiedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []OrderLineModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "booking_order"
}

// OrderLineModel 对应 booking_order_line 表，订单创建后不再变更
type OrderLineModel struct {
	ID           uint   `gorm:"primaryKey"`
	OrderID      string `gorm:"size:36;index"`
	ResourceType string `gorm:"size:16"`
	ResourceID   string `gorm:"size:64"`
	Quantity     int
	StockMode    string `gorm:"size:16"`
}

func (OrderLineModel) TableName() string {
	return "booking_order_line"
}

// SubItemModel 对应 booking_order_sub_item 表
type SubItemModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	OrderID      string `gorm:"size:36;index"`
	ResourceType string `gorm:"size:16"`
	ResourceID   string `gorm:"size:64"`
	Quantity     int
	StockMode    string `gorm:"size:16"`

	Status     string `gorm:"size:16;index"`
	RetryCount int
	MaxRetries int

	ExternalRef string `gorm:"size:128"`
	ErrorMsg    string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SubItemModel) TableName() string {
	return "booking_order_sub_item"
}

// StatusLogModel 对应 booking_order_status_log 表，状态流转的审计记录
type StatusLogModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	OrderID    string `gorm:"size:36;index"`
	FromStatus string `gorm:"size:32"`
	ToStatus   string `gorm:"size:32"`
	Actor      string `gorm:"size:64"`
	Remark     string `gorm:"type:text"`
	OccurredAt time.Time
}

func (StatusLogModel) TableName() string {
	return "booking_order_status_log"
}

// LedgerModel 对应 inventory_ledger 表，(房型, 日期) 唯一
type LedgerModel struct {
	ID         uint64    `gorm:"primaryKey"`
	RoomTypeID string    `gorm:"size:64;uniqueIndex:uk_room_date"`
	Date       time.Time `gorm:"type:date;uniqueIndex:uk_room_date"`

	TotalQuantity     int
	LockedQuantity    int
	AvailableQuantity int
	StockSold         int

	IsClosed bool
	Source   string `gorm:"size:16"`

	// 乐观并发版本号，条件更新时比对
	Version int64 `gorm:"default:0"`

	UpdatedAt time.Time
}

func (LedgerModel) TableName() string {
	return "inventory_ledger"
}

// ExceptionModel 对应 booking_exception 表
type ExceptionModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	OrderID   string `gorm:"size:36;index"`
	SubItemID string `gorm:"size:36"`

	Kind    string `gorm:"size:32"`
	Message string `gorm:"type:text"`
	// Context 序列化为 JSON 存储
	Context string `gorm:"type:text"`

	Status  string `gorm:"size:16;index"`
	Handler string `gorm:"size:64"`

	ResolvedAt *time.Time
	Remark     string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ExceptionModel) TableName() string {
	return "booking_exception"
}
