// internal/service/booking/domain/port/fingerprint.go
package port

import (
	"context"
	"time"
)

// FingerprintFlusher 是推送指纹缓存的失效钩子。
// 台账被任何一方修改（预订、释放、人工调整）后都必须让对应
// (资源, 日期) 的指纹失效，否则后续出站同步会把真实变更误判为"未变化"而吞掉。
type FingerprintFlusher interface {
	Flush(ctx context.Context, resourceID string, dates []time.Time) error
}
