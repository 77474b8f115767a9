// internal/service/distribution/interfaces/sync_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/mq"
	"tripnexus/internal/service/distribution/application"
	"tripnexus/internal/service/distribution/domain"

	"go.opentelemetry.io/otel"

	"github.com/segmentio/kafka-go"
)

// SnapshotConsumerAdapter 是一个驱动适配器，它监听库存快照批次并驱动同步服务。
type SnapshotConsumerAdapter struct {
	reader  *kafka.Reader
	syncSvc *application.SyncService
	wg      sync.WaitGroup
	stopped bool

	failureHandler *mq.FailureHandler
}

// NewSnapshotConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewSnapshotConsumerAdapter(reader *kafka.Reader, syncSvc *application.SyncService, failureHandler *mq.FailureHandler) *SnapshotConsumerAdapter {
	return &SnapshotConsumerAdapter{
		reader:         reader,
		syncSvc:        syncSvc,
		failureHandler: failureHandler,
	}
}

// Start 开始监听Kafka主题。这是一个长期运行的方法。
func (a *SnapshotConsumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Printf("✅ Snapshot Consumer Adapter started for topic '%s'.", a.reader.Config().Topic)
		for {
			if a.stopped {
				return
			}
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Error().Err(ctx.Err()).Msg("🛑 Snapshot Consumer Adapter shutting down.")
					return
				}
				logger.Ctx(ctx).Printf("ERROR: could not read message: %v. Retrying...", err)
				time.Sleep(1 * time.Second) // 避免快速失败循环
				continue
			}

			propagator := otel.GetTextMapPropagator()
			headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
			newCtx := propagator.Extract(ctx, &headerCarrier)

			processingErr := a.processMessage(newCtx, msg)

			if processingErr != nil {
				a.failureHandler.Handle(newCtx, msg, processingErr)
			}

			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit messages")
			}
		}
	}()
	return nil
}

// Stop 优雅地停止消费者。
func (a *SnapshotConsumerAdapter) Stop(ctx context.Context) {
	a.stopped = true
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Printf("✅ Snapshot Consumer Adapter stopped.")
}

// processMessage 反序列化快照批次并触发同步。
func (a *SnapshotConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) error {
	var snapshots []domain.InventorySnapshot
	if err := json.Unmarshal(msg.Value, &snapshots); err != nil {
		return err
	}

	return a.syncSvc.SyncBatch(ctx, snapshots)
}
