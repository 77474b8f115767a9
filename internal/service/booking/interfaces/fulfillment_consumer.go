// internal/service/booking/interfaces/fulfillment_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/mq"
	"tripnexus/internal/service/booking/application"
	"tripnexus/internal/service/booking/domain"

	"go.opentelemetry.io/otel"

	"github.com/segmentio/kafka-go"
)

// FulfillmentConsumerAdapter 是一个驱动适配器，它监听履约任务消息并驱动拆单处理。
type FulfillmentConsumerAdapter struct {
	reader   *kafka.Reader
	splitter *application.OrderSplitter
	wg       sync.WaitGroup
	stopped  bool

	failureHandler *mq.FailureHandler
}

// NewFulfillmentConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewFulfillmentConsumerAdapter(reader *kafka.Reader, splitter *application.OrderSplitter, failureHandler *mq.FailureHandler) *FulfillmentConsumerAdapter {
	return &FulfillmentConsumerAdapter{
		reader:         reader,
		splitter:       splitter,
		failureHandler: failureHandler,
	}
}

// Start 开始监听Kafka主题。这是一个长期运行的方法。
func (a *FulfillmentConsumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Printf("✅ Fulfillment Consumer Adapter started for topic '%s'.", a.reader.Config().Topic)
		for {
			if a.stopped {
				return
			}
			// 我们使用FetchMessage而不是ReadMessage，以便更好地控制退出逻辑
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Error().Err(ctx.Err()).Msg("🛑 Fulfillment Consumer Adapter shutting down.")
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
				// 处理失败：消息移交DLT，由人工或补偿流程接管
				a.failureHandler.Handle(newCtx, msg, processingErr)
			}

			// 无论成功或失败（已移交），都提交Offset
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit messages")
			}
		}
	}()
	return nil
}

// Stop 优雅地停止消费者。
func (a *FulfillmentConsumerAdapter) Stop(ctx context.Context) {
	a.stopped = true
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Printf("✅ Fulfillment Consumer Adapter stopped.")
}

// processMessage 反序列化消息并调用拆单服务。Process是幂等的，重复投递是安全的。
func (a *FulfillmentConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) error {
	var job domain.FulfillmentJobRequested
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return err
	}

	return a.splitter.Process(ctx, job.OrderID)
}
