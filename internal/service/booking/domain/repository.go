// internal/service/booking/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 负责订单与子项的持久化。
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	// Transition 在一个事务内同时写入订单新状态和审计记录，
	// 两者要么都成功要么都失败
	Transition(ctx context.Context, order *Order, change *StatusChange) error

	SaveSubItems(ctx context.Context, items []*OrderSubItem) error
	FindSubItems(ctx context.Context, orderID string) ([]*OrderSubItem, error)
	UpdateSubItem(ctx context.Context, item *OrderSubItem) error
}

// LedgerRepository 负责库存台账的持久化。
type LedgerRepository interface {
	Find(ctx context.Context, roomTypeID string, date time.Time) (*InventoryLedgerEntry, error)
	FindDates(ctx context.Context, roomTypeID string, dates []time.Time) ([]*InventoryLedgerEntry, error)
	// SaveAll 在一个事务内保存一批台账变更（预订/释放的全部日期）
	SaveAll(ctx context.Context, entries []*InventoryLedgerEntry) error
	// DecrementStock 自营库存的乐观扣减：
	//   UPDATE ... SET stock_sold += qty, available -= qty, version += 1
	//   WHERE room_type_id = ? AND date = ? AND version = ?
	// 返回 false 表示版本冲突（有并发写入者赢得了这次竞争），由调用方重读重试。
	DecrementStock(ctx context.Context, roomTypeID string, date time.Time, qty int, version int64) (bool, error)
}

// ExceptionRepository 负责异常单的持久化。
type ExceptionRepository interface {
	Save(ctx context.Context, record *ExceptionRecord) error
	FindByID(ctx context.Context, id string) (*ExceptionRecord, error)
	Update(ctx context.Context, record *ExceptionRecord) error
	ListByStatus(ctx context.Context, status ExceptionStatus, limit int) ([]*ExceptionRecord, error)
}
