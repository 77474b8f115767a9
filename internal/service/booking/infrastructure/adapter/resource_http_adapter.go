// internal/service/booking/infrastructure/adapter/resource_http_adapter.go
package adapter

import (
	"context"
	"fmt"

	"tripnexus/internal/pkg/httpclient"
	"tripnexus/internal/pkg/nacos"
	"tripnexus/internal/service/booking/domain"
	"tripnexus/internal/service/booking/domain/port"
)

// ResourceHTTPAdapter 是 port.ResourceSystemClient 的 HTTP 实现，
// 面向上游资源方网关（门票系统、上游控房系统）。
type ResourceHTTPAdapter struct {
	client *httpclient.Client

	// endpoint 显式配置的网关地址；为空时通过 Nacos 按服务名发现
	endpoint    string
	serviceName string
	nacosClient *nacos.Client
}

// NewResourceHTTPAdapter 创建资源方适配器。
// endpoint 与 (serviceName + nacosClient) 二选一，前者优先。
func NewResourceHTTPAdapter(client *httpclient.Client, endpoint, serviceName string, nacosClient *nacos.Client) *ResourceHTTPAdapter {
	return &ResourceHTTPAdapter{
		client:      client,
		endpoint:    endpoint,
		serviceName: serviceName,
		nacosClient: nacosClient,
	}
}

type confirmPayload struct {
	OrderID    string `json:"order_id"`
	SubItemID  string `json:"sub_item_id"`
	ResourceID string `json:"resource_id"`
	Quantity   int    `json:"quantity"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
}

type confirmResponse struct {
	Success     bool   `json:"success"`
	ExternalRef string `json:"external_ref"`
	Message     string `json:"message"`
}

// ConfirmReservation 调用上游确认接口。超时由调用方通过 ctx 控制。
func (a *ResourceHTTPAdapter) ConfirmReservation(ctx context.Context, req port.ConfirmRequest) (port.ConfirmResult, error) {
	baseURL, err := a.resolveEndpoint()
	if err != nil {
		return port.ConfirmResult{}, err
	}

	payload := confirmPayload{
		OrderID:    req.OrderID,
		SubItemID:  req.SubItemID,
		ResourceID: req.ResourceID,
		Quantity:   req.Quantity,
		CheckIn:    req.CheckIn.Format(domain.DateKey),
		CheckOut:   req.CheckOut.Format(domain.DateKey),
	}

	var resp confirmResponse
	if err := a.client.PostJSON(ctx, baseURL+"/api/v1/reservations/confirm", payload, &resp); err != nil {
		return port.ConfirmResult{}, err
	}

	return port.ConfirmResult{
		Success:     resp.Success,
		ExternalRef: resp.ExternalRef,
		Message:     resp.Message,
	}, nil
}

func (a *ResourceHTTPAdapter) resolveEndpoint() (string, error) {
	if a.endpoint != "" {
		return a.endpoint, nil
	}
	if a.nacosClient == nil || a.serviceName == "" {
		return "", fmt.Errorf("resource gateway endpoint is not configured")
	}
	ip, p, err := a.nacosClient.DiscoverServiceInstance(a.serviceName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", ip, p), nil
}
