package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	order, err := NewOrder([]ResourceLine{
		{ResourceType: ResourceHotelStay, ResourceID: "room-101", Quantity: 1, StockMode: StockSelfManaged},
	}, checkIn, checkIn.AddDate(0, 0, 2))
	require.NoError(t, err)
	return order
}

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusPaidPending, StatusConfirming},
		{StatusPaidPending, StatusRejected},
		{StatusPaidPending, StatusCancelApproved},
		{StatusConfirming, StatusConfirmed},
		{StatusConfirming, StatusRejected},
		{StatusConfirmed, StatusCancelRequested},
		{StatusConfirmed, StatusVerified},
		{StatusCancelRequested, StatusCancelApproved},
		{StatusCancelRequested, StatusCancelRejected},
		{StatusCancelRejected, StatusConfirmed},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusPaidPending, StatusConfirmed},
		{StatusPaidPending, StatusVerified},
		{StatusConfirmed, StatusConfirming},
		{StatusVerified, StatusConfirming},
		{StatusVerified, StatusConfirmed},
		{StatusCancelApproved, StatusConfirmed},
		{StatusRejected, StatusPaidPending},
		{StatusConfirming, StatusCancelRequested},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCancelApproved.IsTerminal())
	assert.True(t, StatusVerified.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())

	assert.False(t, StatusPaidPending.IsTerminal())
	assert.False(t, StatusConfirming.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.False(t, StatusCancelRequested.IsTerminal())
	assert.False(t, StatusCancelRejected.IsTerminal())
}

func TestTransitionToRecordsAudit(t *testing.T) {
	order := newTestOrder(t)

	change, err := order.TransitionTo(StatusConfirming, "system", "fulfillment started")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirming, order.Status)
	assert.Equal(t, StatusPaidPending, change.From)
	assert.Equal(t, StatusConfirming, change.To)
	assert.Equal(t, "system", change.Actor)
	assert.Equal(t, order.ID, change.OrderID)
}

func TestTransitionToRejectsIllegalMove(t *testing.T) {
	order := newTestOrder(t)

	_, err := order.TransitionTo(StatusVerified, "system", "")
	require.Error(t, err)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusPaidPending, invalid.From)
	assert.Equal(t, StatusVerified, invalid.To)

	// 非法流转不产生任何副作用
	assert.Equal(t, StatusPaidPending, order.Status)
	assert.Nil(t, order.VerifiedAt)
}

func TestTransitionToRejectsUnknownStatus(t *testing.T) {
	order := newTestOrder(t)
	_, err := order.TransitionTo(Status("EXPLODED"), "system", "")
	require.Error(t, err)
	assert.Equal(t, StatusPaidPending, order.Status)
}

func TestMilestoneTimestamps(t *testing.T) {
	order := newTestOrder(t)

	_, err := order.TransitionTo(StatusConfirming, "system", "")
	require.NoError(t, err)
	_, err = order.TransitionTo(StatusConfirmed, "system", "")
	require.NoError(t, err)
	require.NotNil(t, order.ConfirmedAt)
	firstConfirmed := *order.ConfirmedAt

	// 取消被驳回后回到已确认，不应刷新首次确认时间
	_, err = order.TransitionTo(StatusCancelRequested, "user", "")
	require.NoError(t, err)
	_, err = order.TransitionTo(StatusCancelRejected, "ops", "policy")
	require.NoError(t, err)
	_, err = order.TransitionTo(StatusConfirmed, "system", "")
	require.NoError(t, err)
	assert.Equal(t, firstConfirmed, *order.ConfirmedAt)

	_, err = order.TransitionTo(StatusVerified, "gate", "")
	require.NoError(t, err)
	assert.NotNil(t, order.VerifiedAt)
}

func TestCancelApprovedSetsCancelledAt(t *testing.T) {
	order := newTestOrder(t)
	_, err := order.TransitionTo(StatusCancelRequested, "user", "")
	require.NoError(t, err)
	_, err = order.TransitionTo(StatusCancelApproved, "ops", "refund issued")
	require.NoError(t, err)
	assert.NotNil(t, order.CancelledAt)
	assert.True(t, order.Status.IsTerminal())
}

func TestOrderNights(t *testing.T) {
	order := newTestOrder(t)
	nights := order.Nights()
	require.Len(t, nights, 2)
	assert.Equal(t, order.CheckIn, nights[0])
	assert.Equal(t, order.CheckIn.AddDate(0, 0, 1), nights[1])

	// 门票场景：入住=离店，按单日处理
	ticket, err := NewOrder([]ResourceLine{
		{ResourceType: ResourceTicket, ResourceID: "park-1", Quantity: 2, StockMode: StockUpstream},
	}, order.CheckIn, order.CheckIn)
	require.NoError(t, err)
	assert.Len(t, ticket.Nights(), 1)
}

func TestNewOrderValidation(t *testing.T) {
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewOrder(nil, checkIn, checkIn)
	assert.Error(t, err)

	_, err = NewOrder([]ResourceLine{{ResourceID: "x", Quantity: 0}}, checkIn, checkIn)
	assert.Error(t, err)

	_, err = NewOrder([]ResourceLine{{ResourceID: "x", Quantity: 1}}, checkIn, checkIn.AddDate(0, 0, -1))
	assert.Error(t, err)
}
