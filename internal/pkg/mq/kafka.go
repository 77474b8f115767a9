// internal/pkg/mq/kafka.go
package mq

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaReader 创建一个带消费组的 Reader。
// 使用消费组可以让同一个 Topic 被多个 Worker 实例分摊消费。
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // 手动提交 Offset，配合至少一次语义
		MaxWait:        500 * time.Millisecond,
	})
}

// NewKafkaWriter 创建一个指定 Topic 的 Writer。
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // 按 Key 哈希，保证同一订单的消息有序
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}
