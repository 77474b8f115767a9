// internal/service/booking/infrastructure/mapper.go
package infrastructure

import (
	"encoding/json"

	"tripnexus/internal/service/booking/domain"
)

// 数据库模型与领域模型之间的转换。领域层不感知 GORM 标签和序列化细节。

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:          o.ID,
		ParentID:    o.ParentID,
		Status:      string(o.Status),
		CheckIn:     o.CheckIn,
		CheckOut:    o.CheckOut,
		ConfirmedAt: o.ConfirmedAt,
		CancelledAt: o.CancelledAt,
		VerifiedAt:  o.VerifiedAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	for _, l := range o.Lines {
		m.Lines = append(m.Lines, OrderLineModel{
			OrderID:      o.ID,
			ResourceType: string(l.ResourceType),
			ResourceID:   l.ResourceID,
			Quantity:     l.Quantity,
			StockMode:    string(l.StockMode),
		})
	}
	return m
}

func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:          m.ID,
		ParentID:    m.ParentID,
		Status:      domain.Status(m.Status),
		CheckIn:     m.CheckIn,
		CheckOut:    m.CheckOut,
		ConfirmedAt: m.ConfirmedAt,
		CancelledAt: m.CancelledAt,
		VerifiedAt:  m.VerifiedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, l := range m.Lines {
		o.Lines = append(o.Lines, domain.ResourceLine{
			ResourceType: domain.ResourceType(l.ResourceType),
			ResourceID:   l.ResourceID,
			Quantity:     l.Quantity,
			StockMode:    domain.StockMode(l.StockMode),
		})
	}
	return o
}

func toSubItemModel(s *domain.OrderSubItem) *SubItemModel {
	return &SubItemModel{
		ID:           s.ID,
		OrderID:      s.OrderID,
		ResourceType: string(s.ResourceType),
		ResourceID:   s.ResourceID,
		Quantity:     s.Quantity,
		StockMode:    string(s.StockMode),
		Status:       string(s.Status),
		RetryCount:   s.RetryCount,
		MaxRetries:   s.MaxRetries,
		ExternalRef:  s.ExternalRef,
		ErrorMsg:     s.ErrorMsg,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toDomainSubItem(m *SubItemModel) *domain.OrderSubItem {
	return &domain.OrderSubItem{
		ID:           m.ID,
		OrderID:      m.OrderID,
		ResourceType: domain.ResourceType(m.ResourceType),
		ResourceID:   m.ResourceID,
		Quantity:     m.Quantity,
		StockMode:    domain.StockMode(m.StockMode),
		Status:       domain.SubItemStatus(m.Status),
		RetryCount:   m.RetryCount,
		MaxRetries:   m.MaxRetries,
		ExternalRef:  m.ExternalRef,
		ErrorMsg:     m.ErrorMsg,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toLedgerModel(e *domain.InventoryLedgerEntry) *LedgerModel {
	return &LedgerModel{
		ID:                e.ID,
		RoomTypeID:        e.RoomTypeID,
		Date:              e.Date,
		TotalQuantity:     e.TotalQuantity,
		LockedQuantity:    e.LockedQuantity,
		AvailableQuantity: e.AvailableQuantity,
		StockSold:         e.StockSold,
		IsClosed:          e.IsClosed,
		Source:            string(e.Source),
		Version:           e.Version,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toDomainLedger(m *LedgerModel) *domain.InventoryLedgerEntry {
	return &domain.InventoryLedgerEntry{
		ID:                m.ID,
		RoomTypeID:        m.RoomTypeID,
		Date:              m.Date,
		TotalQuantity:     m.TotalQuantity,
		LockedQuantity:    m.LockedQuantity,
		AvailableQuantity: m.AvailableQuantity,
		StockSold:         m.StockSold,
		IsClosed:          m.IsClosed,
		Source:            domain.StockSource(m.Source),
		Version:           m.Version,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toExceptionModel(r *domain.ExceptionRecord) *ExceptionModel {
	ctxJSON := ""
	if len(r.Context) > 0 {
		if data, err := json.Marshal(r.Context); err == nil {
			ctxJSON = string(data)
		}
	}
	return &ExceptionModel{
		ID:         r.ID,
		OrderID:    r.OrderID,
		SubItemID:  r.SubItemID,
		Kind:       string(r.Kind),
		Message:    r.Message,
		Context:    ctxJSON,
		Status:     string(r.Status),
		Handler:    r.Handler,
		ResolvedAt: r.ResolvedAt,
		Remark:     r.Remark,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toDomainException(m *ExceptionModel) *domain.ExceptionRecord {
	var ctx map[string]string
	if m.Context != "" {
		_ = json.Unmarshal([]byte(m.Context), &ctx)
	}
	return &domain.ExceptionRecord{
		ID:         m.ID,
		OrderID:    m.OrderID,
		SubItemID:  m.SubItemID,
		Kind:       domain.ExceptionKind(m.Kind),
		Message:    m.Message,
		Context:    ctx,
		Status:     domain.ExceptionStatus(m.Status),
		Handler:    m.Handler,
		ResolvedAt: m.ResolvedAt,
		Remark:     m.Remark,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
