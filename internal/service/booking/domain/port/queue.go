// internal/service/booking/domain/port/queue.go
package port

import (
	"context"

	"tripnexus/internal/service/booking/domain"
)

// FulfillmentQueue 是履约任务队列的出站端口。
// 底层是至少一次投递（Kafka），消费侧必须幂等。
type FulfillmentQueue interface {
	EnqueueFulfillment(ctx context.Context, job domain.FulfillmentJobRequested) error
}
