// internal/service/booking/domain/port/notifier.go
package port

import (
	"context"

	"tripnexus/internal/service/booking/domain"
)

// ExceptionNotifier 把新建的异常单广播出去（Kafka -> push-gateway）。
// 通知失败不影响异常单本身的落库——落库是正确性，通知只是时效性。
type ExceptionNotifier interface {
	NotifyExceptionRaised(ctx context.Context, record *domain.ExceptionRecord) error
}
