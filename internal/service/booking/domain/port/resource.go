// internal/service/booking/domain/port/resource.go
package port

import (
	"context"
	"time"
)

// ConfirmRequest 是向上游资源系统发起确认的请求。
type ConfirmRequest struct {
	OrderID    string
	SubItemID  string
	ResourceID string
	Quantity   int
	CheckIn    time.Time
	CheckOut   time.Time
}

// ConfirmResult 是上游确认的结果。Success 为 false 时 Message 说明原因。
type ConfirmResult struct {
	Success     bool
	ExternalRef string
	Message     string
}

// ResourceSystemClient 是上游资源系统的出站端口。
// 确认只调用一次，失败不在本地重试——重试语义归上游所有。
// 网络调用必须带超时，超时按失败处理。
type ResourceSystemClient interface {
	ConfirmReservation(ctx context.Context, req ConfirmRequest) (ConfirmResult, error)
}
