// internal/service/booking/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPaidPending     Status = "PAID_PENDING"     // 已支付，等待处理
	StatusConfirming      Status = "CONFIRMING"       // 确认中（拆单履约进行中）
	StatusConfirmed       Status = "CONFIRMED"        // 已确认
	StatusCancelRequested Status = "CANCEL_REQUESTED" // 用户发起取消，等待审核
	StatusCancelApproved  Status = "CANCEL_APPROVED"  // 取消通过（终态）
	StatusCancelRejected  Status = "CANCEL_REJECTED"  // 取消被驳回，回到已确认
	StatusVerified        Status = "VERIFIED"         // 已核销（终态）
	StatusRejected        Status = "REJECTED"         // 已拒单（终态）
)

// transitions 是唯一的状态流转表。新增状态或边必须改这里，
// 任何不在表内的流转都会以 InvalidTransitionError 拒绝。
var transitions = map[Status][]Status{
	StatusPaidPending:     {StatusConfirming, StatusRejected, StatusCancelApproved, StatusCancelRequested},
	StatusConfirming:      {StatusConfirmed, StatusRejected, StatusCancelApproved},
	StatusConfirmed:       {StatusCancelRequested, StatusVerified},
	StatusCancelRequested: {StatusCancelApproved, StatusCancelRejected},
	StatusCancelRejected:  {StatusConfirmed},
	// CancelApproved / Verified / Rejected 为终态，无出边
}

// CanTransition 判断 from -> to 是否是合法流转。
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 判断状态是否为终态。
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsValid 判断是否为已知状态。
func (s Status) IsValid() bool {
	switch s {
	case StatusPaidPending, StatusConfirming, StatusConfirmed,
		StatusCancelRequested, StatusCancelApproved, StatusCancelRejected,
		StatusVerified, StatusRejected:
		return true
	}
	return false
}
