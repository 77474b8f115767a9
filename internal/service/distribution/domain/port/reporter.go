// internal/service/distribution/domain/port/reporter.go
package port

import (
	"context"

	"tripnexus/internal/service/distribution/domain"
)

// ExceptionReporter 把渠道推送失败上报成一条可人工处理的异常单。
type ExceptionReporter interface {
	ReportPushFailure(ctx context.Context, channel domain.Channel, snapshots []domain.InventorySnapshot, cause error) error
}
