// internal/service/distribution/domain/port/fingerprint.go
package port

import (
	"context"
	"time"
)

// FingerprintStore 是指纹缓存的出站端口。
// 实现必须容忍缓存整体不可用：调用方在读失败时会降级为全量推送。
type FingerprintStore interface {
	// GetAll 批量读取指纹。返回的切片与keys等长，缓存未命中的位置为空字符串。
	GetAll(ctx context.Context, keys []string) ([]string, error)
	// SetAll 批量写入指纹并设置过期时间。
	SetAll(ctx context.Context, entries map[string]string, ttl time.Duration) error
	// Invalidate 删除指定键的指纹，使下一批次把对应快照视为有变更。
	Invalidate(ctx context.Context, keys []string) error
}
