// internal/pkg/mq/failure_handler.go
package mq

import (
	"context"

	"tripnexus/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// FailureHandler 把处理失败的消息转投到死信 Topic，
// 避免一条坏消息卡住整个消费组，同时保留现场供人工排查。
type FailureHandler struct {
	dltWriter *kafka.Writer
}

// NewFailureHandler 创建一个失败处理器。dltTopic 通常为 "<topic>.DLT"。
func NewFailureHandler(brokers []string, dltTopic string) *FailureHandler {
	return &FailureHandler{
		dltWriter: NewKafkaWriter(brokers, dltTopic),
	}
}

// Handle 把原始消息连同失败原因写入死信 Topic。
// 死信写入本身失败时只能记日志，不能反过来阻塞消费。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, processingErr error) {
	headers := append(msg.Headers,
		kafka.Header{Key: "x-failure-reason", Value: []byte(processingErr.Error())},
		kafka.Header{Key: "x-original-topic", Value: []byte(msg.Topic)},
	)

	dltMsg := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}

	if err := h.dltWriter.WriteMessages(ctx, dltMsg); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("original_topic", msg.Topic).
			Msg("CRITICAL: failed to write message to DLT, message is lost from the queue")
		return
	}

	logger.Ctx(ctx).Warn().
		Str("original_topic", msg.Topic).
		Str("reason", processingErr.Error()).
		Msg("message moved to DLT")
}

// Close 关闭死信 Writer。
func (h *FailureHandler) Close() error {
	return h.dltWriter.Close()
}
