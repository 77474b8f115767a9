// internal/pkg/mq/carrier.go
package mq

import (
	"github.com/segmentio/kafka-go"
)

// KafkaHeaderCarrier 让 Kafka 消息头适配 OTel 的 TextMapCarrier 接口，
// 使 trace 上下文可以跨越消息队列传播。
type KafkaHeaderCarrier []kafka.Header

// Get 返回指定 key 的 header 值。
func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set 写入（或覆盖）指定 key 的 header。
func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

// Keys 列出所有 header 的 key。
func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
