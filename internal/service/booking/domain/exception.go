// internal/service/booking/domain/exception.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExceptionKind 标识异常单的类别。
type ExceptionKind string

const (
	ExceptionInventoryMismatch ExceptionKind = "INVENTORY_MISMATCH" // 库存对不上
	ExceptionUpstreamError     ExceptionKind = "UPSTREAM_ERROR"     // 上游系统失败
	ExceptionSplitFailure      ExceptionKind = "SPLIT_FAILURE"      // 拆单履约失败
)

// ExceptionStatus 是异常单的处理状态，只允许线性推进。
type ExceptionStatus string

const (
	ExceptionPending    ExceptionStatus = "PENDING"
	ExceptionProcessing ExceptionStatus = "PROCESSING"
	ExceptionResolved   ExceptionStatus = "RESOLVED"
)

// ExceptionRecord 是一条需要人工处理的异常单。
// 承载的是真金白银的预订，永不自动删除，只能被人显式关闭。
type ExceptionRecord struct {
	ID        string
	OrderID   string
	SubItemID string // 可为空：订单级异常没有具体子项

	Kind    ExceptionKind
	Message string
	// Context 自由格式的诊断上下文（失败子项列表、上游返回等）
	Context map[string]string

	Status  ExceptionStatus
	Handler string

	ResolvedAt *time.Time
	Remark     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewExceptionRecord 创建一条待处理的异常单。
func NewExceptionRecord(orderID, subItemID string, kind ExceptionKind, message string, context map[string]string) *ExceptionRecord {
	now := time.Now()
	return &ExceptionRecord{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		SubItemID: subItemID,
		Kind:      kind,
		Message:   message,
		Context:   context,
		Status:    ExceptionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StartProcessing 由值班人员认领异常单。只允许从 PENDING 发起。
func (r *ExceptionRecord) StartProcessing(handler string) error {
	if r.Status != ExceptionPending {
		return &InvalidExceptionStateError{From: r.Status, To: ExceptionProcessing}
	}
	r.Status = ExceptionProcessing
	r.Handler = handler
	r.UpdatedAt = time.Now()
	return nil
}

// Resolve 关闭异常单。允许从 PENDING 或 PROCESSING 关闭。
func (r *ExceptionRecord) Resolve(handler, remark string) error {
	if r.Status == ExceptionResolved {
		return &InvalidExceptionStateError{From: r.Status, To: ExceptionResolved}
	}
	now := time.Now()
	r.Status = ExceptionResolved
	r.Handler = handler
	r.Remark = remark
	r.ResolvedAt = &now
	r.UpdatedAt = now
	return nil
}
