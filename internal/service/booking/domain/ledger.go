// internal/service/booking/domain/ledger.go
package domain

import (
	"time"
)

// StockSource 标识一条台账记录的来源。
type StockSource string

const (
	SourceManual  StockSource = "MANUAL"  // 商家手工维护
	SourceChannel StockSource = "CHANNEL" // 上游推送
)

// DateKey 是台账/锁/指纹统一使用的日期格式。
const DateKey = "2006-01-02"

// InventoryLedgerEntry 是 (房型, 日期) 维度的库存台账。
// 不变式：available + locked <= total 且 available >= 0，
// 任何修改路径都必须维持，违反说明存在并发缺陷。
type InventoryLedgerEntry struct {
	ID         uint64
	RoomTypeID string
	Date       time.Time

	TotalQuantity     int
	LockedQuantity    int
	AvailableQuantity int
	// StockSold 自营库存的累计售出数，乐观扣减的目标字段
	StockSold int

	IsClosed bool
	Source   StockSource

	// Version 乐观并发版本号，条件更新时比对
	Version int64

	UpdatedAt time.Time
}

// CanReserve 判断当前是否有足够可售库存。关房视同无库存。
func (e *InventoryLedgerEntry) CanReserve(qty int) bool {
	return !e.IsClosed && e.AvailableQuantity >= qty
}

// Reserve 把 qty 从可售转入锁定。调用方必须先用 CanReserve 验证，
// 且必须在持有该 (房型,日期) 的分布式锁时调用。
func (e *InventoryLedgerEntry) Reserve(qty int) error {
	if !e.CanReserve(qty) {
		if e.IsClosed {
			return ErrLedgerClosed
		}
		return ErrInsufficientCapacity
	}
	e.AvailableQuantity -= qty
	e.LockedQuantity += qty
	e.UpdatedAt = time.Now()
	return nil
}

// Release 把锁定量释放回可售，返回实际释放的数量。
// 释放量收敛到当前锁定量，重复释放不会把不变式打穿。
func (e *InventoryLedgerEntry) Release(qty int) int {
	if qty > e.LockedQuantity {
		qty = e.LockedQuantity
	}
	e.LockedQuantity -= qty
	e.AvailableQuantity += qty
	e.UpdatedAt = time.Now()
	return qty
}
