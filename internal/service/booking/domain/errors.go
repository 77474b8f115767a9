// internal/service/booking/domain/errors.go
package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// 核心错误分类。调用方用 errors.Is 判断，区分"可重试"与"需要人工"两类失败。
var (
	// ErrInsufficientCapacity 库存不足。没有新的供给之前重试无意义
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	// ErrLockBusy 锁被其他请求持有。瞬时错误，调用方可稍后重试
	ErrLockBusy = errors.New("lock busy")
	// ErrLockTimeout 在多个日期锁的获取过程中未能拿齐全部锁
	ErrLockTimeout = errors.New("lock acquisition timed out")
	// ErrOptimisticConflict 乐观锁版本冲突。内部有界重试，超限后升级为异常单
	ErrOptimisticConflict = errors.New("optimistic version conflict")
	// ErrLedgerNotFound 指定 (房型, 日期) 没有库存台账记录
	ErrLedgerNotFound = errors.New("inventory ledger entry not found")
	// ErrLedgerClosed 日期已关房，等同于无可售库存
	ErrLedgerClosed = errors.New("inventory ledger entry is closed")
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrExceptionNotFound 异常单不存在
	ErrExceptionNotFound = errors.New("exception record not found")
)

// InvalidTransitionError 表示一次非法的订单状态流转。
// 这是编程或数据错误，必须向上传播，绝不允许静默吞掉。
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition: %s -> %s", e.From, e.To)
}

// InvalidExceptionStateError 表示对异常单执行了不允许的生命周期操作。
type InvalidExceptionStateError struct {
	From ExceptionStatus
	To   ExceptionStatus
}

func (e *InvalidExceptionStateError) Error() string {
	return fmt.Sprintf("invalid exception status transition: %s -> %s", e.From, e.To)
}

// UpstreamError 表示上游资源系统的调用失败。
// 不在本地重试（重试语义归上游所有），统一转入异常单。
type UpstreamError struct {
	System  string
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream %s failed [%s]: %s", e.System, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream %s failed: %s", e.System, e.Message)
}
