package application

import (
	"context"
	"testing"
	"time"

	"tripnexus/internal/service/booking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

type splitterFixture struct {
	splitter   *OrderSplitter
	orders     *fakeOrderRepo
	ledger     *fakeLedgerRepo
	upstream   *fakeUpstream
	exceptions *fakeExceptionRepo
}

func newSplitterFixture(t *testing.T) *splitterFixture {
	t.Helper()
	orders := newFakeOrderRepo()
	ledger := newFakeLedgerRepo()
	upstream := &fakeUpstream{}
	exceptionRepo := newFakeExceptionRepo()
	exceptionSvc := NewExceptionService(exceptionRepo, nil)

	splitter := NewOrderSplitter(orders, ledger, upstream, nopFlusher{}, exceptionSvc, RetryPolicy{
		MaxAttempts:   5,
		BackoffBase:   time.Millisecond,
		BackoffJitter: time.Millisecond,
	}, otel.Tracer("test"))

	return &splitterFixture{
		splitter:   splitter,
		orders:     orders,
		ledger:     ledger,
		upstream:   upstream,
		exceptions: exceptionRepo,
	}
}

// newCompositeOrder 创建一张"门票(上游) + 住宿(自营)"的组合订单并入库。
func (f *splitterFixture) newCompositeOrder(t *testing.T) *domain.Order {
	t.Helper()
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	order, err := domain.NewOrder([]domain.ResourceLine{
		{ResourceType: domain.ResourceTicket, ResourceID: "park-west", Quantity: 2, StockMode: domain.StockUpstream},
		{ResourceType: domain.ResourceHotelStay, ResourceID: "room-101", Quantity: 1, StockMode: domain.StockSelfManaged},
	}, checkIn, checkIn.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.NoError(t, f.orders.Save(context.Background(), order))

	for _, night := range order.Nights() {
		f.ledger.seed("room-101", night, 5)
	}
	return order
}

func TestProcessAllSubItemsSucceed(t *testing.T) {
	f := newSplitterFixture(t)
	order := f.newCompositeOrder(t)

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))

	assert.Equal(t, domain.StatusConfirmed, order.Status)
	assert.Equal(t, 1, f.upstream.callCount())
	assert.Equal(t, 0, f.exceptions.count())

	items, err := f.orders.FindSubItems(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, domain.SubItemSuccess, item.Status)
	}

	// 自营库存每晚都完成扣减
	for _, night := range order.Nights() {
		e := f.ledger.get("room-101", night)
		assert.Equal(t, 4, e.AvailableQuantity)
		assert.Equal(t, 1, e.StockSold)
	}
}

func TestProcessPartialFailureRaisesException(t *testing.T) {
	f := newSplitterFixture(t)
	f.upstream.fail = true
	order := f.newCompositeOrder(t)

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))

	// 订单停在确认中等人工，不自动拒单
	assert.Equal(t, domain.StatusConfirming, order.Status)
	assert.Equal(t, 1, f.exceptions.count())

	items, err := f.orders.FindSubItems(context.Background(), order.ID)
	require.NoError(t, err)
	var ticket, hotel *domain.OrderSubItem
	for _, item := range items {
		switch item.ResourceType {
		case domain.ResourceTicket:
			ticket = item
		case domain.ResourceHotelStay:
			hotel = item
		}
	}
	require.NotNil(t, ticket)
	require.NotNil(t, hotel)
	assert.Equal(t, domain.SubItemFailed, ticket.Status)
	assert.NotEmpty(t, ticket.ErrorMsg)

	// 成功的兄弟子项不回滚：住宿扣减保持生效，留给人工对账
	assert.Equal(t, domain.SubItemSuccess, hotel.Status)
	for _, night := range order.Nights() {
		assert.Equal(t, 4, f.ledger.get("room-101", night).AvailableQuantity)
	}

	pending, err := f.exceptions.ListByStatus(context.Background(), domain.ExceptionPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ExceptionSplitFailure, pending[0].Kind)
	assert.Equal(t, order.ID, pending[0].OrderID)
	assert.Contains(t, pending[0].Context, "sub_item:"+ticket.ID)
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newSplitterFixture(t)
	order := f.newCompositeOrder(t)

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))
	require.NoError(t, f.splitter.Process(context.Background(), order.ID))
	require.NoError(t, f.splitter.Process(context.Background(), order.ID))

	// 至少一次投递的重复消息不会重复调上游，也不会重复扣库存
	assert.Equal(t, 1, f.upstream.callCount())
	for _, night := range order.Nights() {
		assert.Equal(t, 1, f.ledger.get("room-101", night).StockSold)
	}
}

func TestProcessDoesNotDuplicateExceptions(t *testing.T) {
	f := newSplitterFixture(t)
	f.upstream.fail = true
	order := f.newCompositeOrder(t)

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))
	require.NoError(t, f.splitter.Process(context.Background(), order.ID))

	// 重放只会发现已终态的失败子项，不会开第二张异常单
	assert.Equal(t, 1, f.exceptions.count())
	assert.Equal(t, 1, f.upstream.callCount())
}

func TestSelfManagedDecrementRetriesOnVersionConflict(t *testing.T) {
	f := newSplitterFixture(t)
	order := f.newCompositeOrder(t)
	f.ledger.conflictFirstN = 2 // 前两次扣减撞版本

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))

	assert.Equal(t, domain.StatusConfirmed, order.Status)

	items, err := f.orders.FindSubItems(context.Background(), order.ID)
	require.NoError(t, err)
	for _, item := range items {
		if item.StockMode == domain.StockSelfManaged {
			assert.Equal(t, domain.SubItemSuccess, item.Status)
			assert.Equal(t, 2, item.RetryCount)
		}
	}
}

func TestSelfManagedDecrementGivesUpAfterMaxAttempts(t *testing.T) {
	f := newSplitterFixture(t)
	order := f.newCompositeOrder(t)
	f.ledger.conflictFirstN = 100 // 永远冲突

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))

	assert.Equal(t, domain.StatusConfirming, order.Status)
	assert.Equal(t, 1, f.exceptions.count())

	items, err := f.orders.FindSubItems(context.Background(), order.ID)
	require.NoError(t, err)
	for _, item := range items {
		if item.StockMode == domain.StockSelfManaged {
			assert.Equal(t, domain.SubItemFailed, item.Status)
			assert.Contains(t, item.ErrorMsg, "gave up")
		}
	}
}

func TestSelfManagedInsufficientStock(t *testing.T) {
	f := newSplitterFixture(t)
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	order, err := domain.NewOrder([]domain.ResourceLine{
		{ResourceType: domain.ResourceHotelStay, ResourceID: "room-101", Quantity: 3, StockMode: domain.StockSelfManaged},
	}, checkIn, checkIn.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NoError(t, f.orders.Save(context.Background(), order))
	f.ledger.seed("room-101", checkIn, 1)

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))

	assert.Equal(t, domain.StatusConfirming, order.Status)
	assert.Equal(t, 1, f.exceptions.count())
	// 库存不足没有任何扣减
	assert.Equal(t, 0, f.ledger.get("room-101", checkIn).StockSold)
}

func TestProcessResplitsWhenSubItemsMissing(t *testing.T) {
	f := newSplitterFixture(t)
	order := f.newCompositeOrder(t)

	// 不预先 Split：模拟创建流程在拆单前崩溃，Process 自行补拆
	items, err := f.orders.FindSubItems(context.Background(), order.ID)
	require.NoError(t, err)
	require.Empty(t, items)

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))

	items, err = f.orders.FindSubItems(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, domain.StatusConfirmed, order.Status)
}

func TestProcessSkipsTerminalOrder(t *testing.T) {
	f := newSplitterFixture(t)
	order := f.newCompositeOrder(t)

	_, err := order.TransitionTo(domain.StatusRejected, "ops", "fraud")
	require.NoError(t, err)

	require.NoError(t, f.splitter.Process(context.Background(), order.ID))
	assert.Equal(t, 0, f.upstream.callCount())
}
