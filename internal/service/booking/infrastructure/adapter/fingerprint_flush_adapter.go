// internal/service/booking/infrastructure/adapter/fingerprint_flush_adapter.go
package adapter

import (
	"context"
	"time"

	"tripnexus/internal/pkg/constants"
	"tripnexus/internal/pkg/redis"
	"tripnexus/internal/service/booking/domain"

	"github.com/pkg/errors"
)

// FingerprintFlushAdapter 是 port.FingerprintFlusher 的 Redis 实现。
// 台账变更后删掉对应 (资源, 日期) 的推送指纹，让下一轮出站同步重新判定。
type FingerprintFlushAdapter struct {
	redisClient *redis.Client
}

// NewFingerprintFlushAdapter 创建指纹失效适配器。
func NewFingerprintFlushAdapter(redisClient *redis.Client) *FingerprintFlushAdapter {
	return &FingerprintFlushAdapter{redisClient: redisClient}
}

func (a *FingerprintFlushAdapter) Flush(ctx context.Context, resourceID string, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, constants.FingerprintKey(resourceID, d.Format(domain.DateKey)))
	}
	if err := a.redisClient.GetClient().Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to delete fingerprint keys")
	}
	return nil
}
