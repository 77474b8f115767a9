// internal/service/booking/infrastructure/adapter/fulfillment_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"time"

	"tripnexus/internal/pkg/mq"
	"tripnexus/internal/service/booking/domain"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// FulfillmentKafkaAdapter 是 port.FulfillmentQueue 的 Kafka 实现。
type FulfillmentKafkaAdapter struct {
	writer *kafka.Writer
}

// NewFulfillmentKafkaAdapter 创建履约任务投递适配器。
func NewFulfillmentKafkaAdapter(writer *kafka.Writer) *FulfillmentKafkaAdapter {
	return &FulfillmentKafkaAdapter{writer: writer}
}

// EnqueueFulfillment 投递一个履约任务。以订单号为 Key，
// 同一订单的消息落到同一分区，天然避免并发处理同一订单。
func (a *FulfillmentKafkaAdapter) EnqueueFulfillment(ctx context.Context, job domain.FulfillmentJobRequested) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal fulfillment job")
	}

	msg := kafka.Message{
		Key:   []byte(job.OrderID),
		Value: payload,
		Time:  time.Now(),
	}

	// 注入 trace 上下文，消费侧接续同一条链路
	carrier := mq.KafkaHeaderCarrier(msg.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = carrier

	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "failed to write fulfillment job to kafka")
	}
	return nil
}

// ExceptionKafkaNotifier 是 port.ExceptionNotifier 的 Kafka 实现，
// 异常单事件广播给 push-gateway 做实时推送。
type ExceptionKafkaNotifier struct {
	writer *kafka.Writer
}

// NewExceptionKafkaNotifier 创建异常事件广播适配器。
func NewExceptionKafkaNotifier(writer *kafka.Writer) *ExceptionKafkaNotifier {
	return &ExceptionKafkaNotifier{writer: writer}
}

func (a *ExceptionKafkaNotifier) NotifyExceptionRaised(ctx context.Context, record *domain.ExceptionRecord) error {
	event := domain.ExceptionRaisedEvent{
		ExceptionID: record.ID,
		OrderID:     record.OrderID,
		SubItemID:   record.SubItemID,
		Kind:        record.Kind,
		Message:     record.Message,
		Context:     record.Context,
		RaisedAt:    record.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal exception event")
	}

	msg := kafka.Message{
		Key:   []byte(record.OrderID),
		Value: payload,
		Time:  time.Now(),
	}
	carrier := mq.KafkaHeaderCarrier(msg.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = carrier

	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "failed to write exception event to kafka")
	}
	return nil
}
