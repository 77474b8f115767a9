// internal/service/booking/domain/order.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Order 是预订订单聚合的根实体。
// 状态只能通过 TransitionTo 变更，里程碑时间戳由流转本身决定，
// 不允许业务代码在别处随手 time.Now()。
type Order struct {
	ID       string
	ParentID string // 组合订单的父单号，普通订单为空
	Status   Status

	// Lines 是打包的资源行，组合单（门票+房）会有多行
	Lines []ResourceLine

	CheckIn  time.Time
	CheckOut time.Time

	ConfirmedAt *time.Time
	CancelledAt *time.Time
	VerifiedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResourceLine 是订单中一条可独立履约的资源行。
type ResourceLine struct {
	ResourceType ResourceType
	ResourceID   string
	Quantity     int
	StockMode    StockMode
	// 门票行只用 Date（等于 CheckIn），住宿行覆盖 [CheckIn, CheckOut) 的每一晚
}

// StatusChange 是一次状态流转的审计记录，与状态变更本身在同一个事务里落库。
type StatusChange struct {
	ID       string
	OrderID  string
	From     Status
	To       Status
	Actor    string
	Remark   string
	Occurred time.Time
}

// NewOrder 创建一个新的订单实体，初始状态为已支付待处理。
func NewOrder(lines []ResourceLine, checkIn, checkOut time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, errors.New("cannot create order without resource lines")
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, errors.Errorf("resource line %s has non-positive quantity %d", l.ResourceID, l.Quantity)
		}
	}
	if checkOut.Before(checkIn) {
		return nil, errors.New("check-out date is before check-in date")
	}

	now := time.Now()
	return &Order{
		ID:        uuid.New().String(),
		Status:    StatusPaidPending,
		Lines:     lines,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo 按流转表把订单推进到 next 状态，并返回对应的审计记录。
// 非法流转返回 InvalidTransitionError，且不产生任何副作用。
func (o *Order) TransitionTo(next Status, actor, remark string) (*StatusChange, error) {
	if !next.IsValid() {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}
	if !CanTransition(o.Status, next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}

	now := time.Now()
	change := &StatusChange{
		ID:       uuid.New().String(),
		OrderID:  o.ID,
		From:     o.Status,
		To:       next,
		Actor:    actor,
		Remark:   remark,
		Occurred: now,
	}

	o.Status = next
	o.UpdatedAt = now

	// 里程碑时间戳由流转决定
	switch next {
	case StatusConfirmed:
		// CancelRejected -> Confirmed 不是首次确认，保留原时间
		if o.ConfirmedAt == nil {
			t := now
			o.ConfirmedAt = &t
		}
	case StatusCancelApproved:
		t := now
		o.CancelledAt = &t
	case StatusVerified:
		t := now
		o.VerifiedAt = &t
	}

	return change, nil
}

// Nights 返回订单覆盖的每一晚（含入住日，不含离店日）。
// 门票类订单 CheckIn == CheckOut，返回单个日期。
func (o *Order) Nights() []time.Time {
	if o.CheckOut.Equal(o.CheckIn) {
		return []time.Time{o.CheckIn}
	}
	var nights []time.Time
	for d := o.CheckIn; d.Before(o.CheckOut); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}
