// internal/service/booking/application/dto.go
package application

import (
	"time"

	"tripnexus/internal/service/booking/domain"

	"github.com/pkg/errors"
)

// ReserveInventoryRequest 对应 /reserve_inventory 与 /release_inventory。
type ReserveInventoryRequest struct {
	RoomTypeID string `json:"room_type_id"`
	CheckIn    string `json:"check_in"`  // 2006-01-02
	CheckOut   string `json:"check_out"` // 2006-01-02，与 check_in 相同表示单日
	Quantity   int    `json:"quantity"`
}

// Dates 解析并校验日期字段。
func (r *ReserveInventoryRequest) Dates() (time.Time, time.Time, error) {
	checkIn, err := time.Parse(domain.DateKey, r.CheckIn)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid check_in %q", r.CheckIn)
	}
	checkOut, err := time.Parse(domain.DateKey, r.CheckOut)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid check_out %q", r.CheckOut)
	}
	return checkIn, checkOut, nil
}

// CreateOrderRequest 对应 /create_order。
type CreateOrderRequest struct {
	CheckIn  string             `json:"check_in"`
	CheckOut string             `json:"check_out"`
	Lines    []OrderLineRequest `json:"lines"`
}

// OrderLineRequest 是请求中的一条资源行。
type OrderLineRequest struct {
	ResourceType string `json:"resource_type"` // TICKET | HOTEL_STAY
	ResourceID   string `json:"resource_id"`
	Quantity     int    `json:"quantity"`
	StockMode    string `json:"stock_mode"` // UPSTREAM | SELF_MANAGED
}

// ToDomainLines 把请求行转换为领域资源行。
func (r *CreateOrderRequest) ToDomainLines() ([]domain.ResourceLine, error) {
	lines := make([]domain.ResourceLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		rt := domain.ResourceType(l.ResourceType)
		if rt != domain.ResourceTicket && rt != domain.ResourceHotelStay {
			return nil, errors.Errorf("unknown resource type %q", l.ResourceType)
		}
		mode := domain.StockMode(l.StockMode)
		if mode != domain.StockUpstream && mode != domain.StockSelfManaged {
			return nil, errors.Errorf("unknown stock mode %q", l.StockMode)
		}
		lines = append(lines, domain.ResourceLine{
			ResourceType: rt,
			ResourceID:   l.ResourceID,
			Quantity:     l.Quantity,
			StockMode:    mode,
		})
	}
	return lines, nil
}

// TransitionOrderRequest 对应 /transition_order。
type TransitionOrderRequest struct {
	OrderID string `json:"order_id"`
	To      string `json:"to"`
	Actor   string `json:"actor"`
	Remark  string `json:"remark"`
}

// ExceptionActionRequest 对应 /exceptions/start 与 /exceptions/resolve。
type ExceptionActionRequest struct {
	ExceptionID string `json:"exception_id"`
	Handler     string `json:"handler"`
	Remark      string `json:"remark"`
}

// RaiseExceptionRequest 对应 /exceptions/raise，供其他服务上报异常单。
type RaiseExceptionRequest struct {
	OrderID   string            `json:"order_id"`
	SubItemID string            `json:"sub_item_id"`
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context"`
}

// ToKind 校验并转换异常类别。
func (r *RaiseExceptionRequest) ToKind() (domain.ExceptionKind, error) {
	switch domain.ExceptionKind(r.Kind) {
	case domain.ExceptionInventoryMismatch, domain.ExceptionUpstreamError, domain.ExceptionSplitFailure:
		return domain.ExceptionKind(r.Kind), nil
	}
	return "", errors.Errorf("unknown exception kind %q", r.Kind)
}
