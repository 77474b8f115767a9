// internal/service/distribution/domain/channel.go
package domain

// Channel 描述一个下游分销渠道。
// Rule 是一条CEL表达式，决定哪些快照需要推送给该渠道，
// 例如: resource_type == "HOTEL_STAY" && city == "shanghai"。
// 空规则表示接收全部快照。
type Channel struct {
	Name     string
	Endpoint string
	Rule     string
}
