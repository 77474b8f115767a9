// internal/pkg/constants/constants.go
package constants

import "fmt"

// Kafka Topic 约定。所有服务共用，避免各处散落的魔法字符串。
const (
	// TopicFulfillmentJobs 履约任务队列：订单创建后投递，booking-service 消费并执行拆单履约
	TopicFulfillmentJobs = "fulfillment-jobs-v1"
	// TopicInventorySnapshots 库存/价格快照批次：渠道同步的输入
	TopicInventorySnapshots = "inventory-snapshots-v1"
	// TopicExceptionEvents 异常单事件：push-gateway 消费后推送给值班人员
	TopicExceptionEvents = "exception-events-v1"
)

// ReservationLockKey 生成 (资源, 日期) 维度的分布式锁 Key。
// date 使用 2006-01-02 格式，保证同一天的并发预订竞争同一把锁。
func ReservationLockKey(resourceID, date string) string {
	return fmt.Sprintf("lock:inventory:{%s}:%s", resourceID, date)
}

// FingerprintKey 生成 (资源, 日期) 维度的推送指纹缓存 Key。
// 预订侧的缓存失效和分发侧的变更过滤必须使用同一个格式。
func FingerprintKey(resourceID, date string) string {
	return fmt.Sprintf("sync:fp:{%s}:%s", resourceID, date)
}
