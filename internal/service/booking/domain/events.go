// internal/service/booking/domain/events.go
package domain

import "time"

// FulfillmentJobRequested 是投递到履约队列的任务载荷。
// 队列是至少一次投递，消费侧的 Process 必须幂等。
type FulfillmentJobRequested struct {
	OrderID     string    `json:"order_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// ExceptionRaisedEvent 是异常单创建后广播的事件，
// push-gateway 消费后实时推送到值班人员的控制台。
type ExceptionRaisedEvent struct {
	ExceptionID string            `json:"exception_id"`
	OrderID     string            `json:"order_id"`
	SubItemID   string            `json:"sub_item_id,omitempty"`
	Kind        ExceptionKind     `json:"kind"`
	Message     string            `json:"message"`
	Context     map[string]string `json:"context,omitempty"`
	RaisedAt    time.Time         `json:"raised_at"`
}
