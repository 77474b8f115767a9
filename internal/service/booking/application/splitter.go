// internal/service/booking/application/splitter.go
package application

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/metrics"
	"tripnexus/internal/service/booking/domain"
	"tripnexus/internal/service/booking/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RetryPolicy 控制自营库存乐观扣减的重试行为。
// 次数与退避都是显式配置，整个重试循环受 ctx 取消约束。
type RetryPolicy struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffJitter   time.Duration
	UpstreamTimeout time.Duration
}

// OrderSplitter 把组合订单拆成可独立履约的子项并驱动每个子项到终态。
// 任何子项失败都转成异常单而不是把错误抛回队列层——
// 一个坏子项不应该让整个任务反复重投。
type OrderSplitter struct {
	orders     domain.OrderRepository
	exceptions *ExceptionService
	policy     RetryPolicy
	tracer     trace.Tracer

	// 按库存归属分发的履约策略
	strategies map[domain.StockMode]fulfillmentStrategy
}

// NewOrderSplitter 创建拆单服务。
func NewOrderSplitter(orders domain.OrderRepository, ledger domain.LedgerRepository, upstream port.ResourceSystemClient, flusher port.FingerprintFlusher, exceptions *ExceptionService, policy RetryPolicy, tracer trace.Tracer) *OrderSplitter {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 10
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = 20 * time.Millisecond
	}
	if policy.BackoffJitter <= 0 {
		policy.BackoffJitter = 30 * time.Millisecond
	}
	if policy.UpstreamTimeout <= 0 {
		policy.UpstreamTimeout = 10 * time.Second
	}
	return &OrderSplitter{
		orders:     orders,
		exceptions: exceptions,
		policy:     policy,
		tracer:     tracer,
		strategies: map[domain.StockMode]fulfillmentStrategy{
			domain.StockUpstream:    &upstreamStrategy{client: upstream, timeout: policy.UpstreamTimeout},
			domain.StockSelfManaged: &selfManagedStrategy{ledger: ledger, flusher: flusher, policy: policy},
		},
	}
}

// Split 把订单的资源行拆成子项并持久化。拆分本身是不会失败的结构分解。
func (s *OrderSplitter) Split(ctx context.Context, order *domain.Order) ([]*domain.OrderSubItem, error) {
	items := domain.NewSubItems(order, s.policy.MaxAttempts)
	if err := s.orders.SaveSubItems(ctx, items); err != nil {
		return nil, errors.Wrap(err, "failed to persist order sub-items")
	}
	return items, nil
}

// Process 驱动订单的每个未完成子项到终态，并汇总订单级结果：
//   - 全部成功  -> 订单 Confirming -> Confirmed
//   - 任一失败  -> 创建一条汇总全部失败子项的异常单，订单停在 Confirming 等人工
// 不做部分确认，也不自动回滚已成功的兄弟子项（人工对账决定补偿方式）。
// 对已终态的订单重复调用是无操作：不会重复扣库存，也不会重复调上游。
func (s *OrderSplitter) Process(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "splitter.Process")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	// 幂等快路径：订单已经走到头，至少一次投递的重复消息直接吞掉
	if order.Status == domain.StatusConfirmed || order.Status.IsTerminal() {
		span.AddEvent("order already settled, nothing to do")
		return nil
	}

	items, err := s.orders.FindSubItems(ctx, orderID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		// 订单创建流程崩溃在拆单之前，这里补拆
		if items, err = s.Split(ctx, order); err != nil {
			return err
		}
	}

	if order.Status == domain.StatusPaidPending {
		if err := s.transition(ctx, order, domain.StatusConfirming, "system", "fulfillment started"); err != nil {
			return err
		}
	}

	newFailures := 0
	for _, item := range items {
		if item.IsTerminal() {
			continue // 幂等：不重复处理
		}
		s.fulfillOne(ctx, order, item)
		if item.Status == domain.SubItemFailed {
			newFailures++
		}
		if err := s.orders.UpdateSubItem(ctx, item); err != nil {
			return errors.Wrapf(err, "failed to persist sub-item %s", item.ID)
		}
	}

	return s.settle(ctx, order, items, newFailures)
}

// fulfillOne 执行单个子项的履约并把结果写回实体。
// 履约错误在这里收敛成子项的 FAILED 状态，不向外传播。
func (s *OrderSplitter) fulfillOne(ctx context.Context, order *domain.Order, item *domain.OrderSubItem) {
	ctx, span := s.tracer.Start(ctx, "splitter.FulfillSubItem")
	defer span.End()
	span.SetAttributes(
		attribute.String("sub_item_id", item.ID),
		attribute.String("resource_type", string(item.ResourceType)),
		attribute.String("stock_mode", string(item.StockMode)),
	)

	strategy, ok := s.strategies[item.StockMode]
	if !ok {
		item.MarkFailed(fmt.Sprintf("no fulfillment strategy for stock mode %s", item.StockMode))
		metrics.FulfillmentSubItemTotal.WithLabelValues(string(item.ResourceType), "failed").Inc()
		return
	}

	externalRef, err := strategy.Fulfill(ctx, order, item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sub-item fulfillment failed")
		item.MarkFailed(err.Error())
		metrics.FulfillmentSubItemTotal.WithLabelValues(string(item.ResourceType), "failed").Inc()
		logger.Ctx(ctx).Warn().Err(err).
			Str("order_id", order.ID).
			Str("sub_item_id", item.ID).
			Msg("sub-item fulfillment failed")
		return
	}

	item.MarkSuccess(externalRef)
	metrics.FulfillmentSubItemTotal.WithLabelValues(string(item.ResourceType), "success").Inc()
}

// settle 汇总子项结果并推进订单状态。
func (s *OrderSplitter) settle(ctx context.Context, order *domain.Order, items []*domain.OrderSubItem, newFailures int) error {
	allSuccess := true
	var failed []*domain.OrderSubItem
	for _, item := range items {
		if item.Status != domain.SubItemSuccess {
			allSuccess = false
		}
		if item.Status == domain.SubItemFailed {
			failed = append(failed, item)
		}
	}

	if allSuccess {
		return s.transition(ctx, order, domain.StatusConfirmed, "system", "all sub-items fulfilled")
	}

	// 只有本轮新产生的失败才开异常单，重放已终态的订单不会重复告警
	if newFailures > 0 {
		exCtx := map[string]string{"order_status": string(order.Status)}
		for _, f := range failed {
			exCtx["sub_item:"+f.ID] = fmt.Sprintf("%s/%s qty=%d: %s", f.ResourceType, f.ResourceID, f.Quantity, f.ErrorMsg)
		}
		msg := fmt.Sprintf("order %s: %d of %d sub-items failed fulfillment", order.ID, len(failed), len(items))
		if _, err := s.exceptions.Raise(ctx, order.ID, firstSubItemID(failed), domain.ExceptionSplitFailure, msg, exCtx); err != nil {
			return err
		}
	}
	// 订单停在 Confirming，由人工处理异常单后重新驱动或拒单
	return nil
}

func (s *OrderSplitter) transition(ctx context.Context, order *domain.Order, to domain.Status, actor, remark string) error {
	change, err := order.TransitionTo(to, actor, remark)
	if err != nil {
		return err
	}
	return s.orders.Transition(ctx, order, change)
}

func firstSubItemID(items []*domain.OrderSubItem) string {
	if len(items) == 0 {
		return ""
	}
	return items[0].ID
}

// fulfillmentStrategy 是按库存归属分发的履约策略。
type fulfillmentStrategy interface {
	// Fulfill 执行履约，成功时返回上游单号（自营库存返回空串）
	Fulfill(ctx context.Context, order *domain.Order, item *domain.OrderSubItem) (string, error)
}

// upstreamStrategy 处理上游管理的资源（门票、上游控房）。
// 只调一次确认接口：成功即成功，失败即失败，重试语义归上游所有。
type upstreamStrategy struct {
	client  port.ResourceSystemClient
	timeout time.Duration
}

func (u *upstreamStrategy) Fulfill(ctx context.Context, order *domain.Order, item *domain.OrderSubItem) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	result, err := u.client.ConfirmReservation(callCtx, port.ConfirmRequest{
		OrderID:    order.ID,
		SubItemID:  item.ID,
		ResourceID: item.ResourceID,
		Quantity:   item.Quantity,
		CheckIn:    order.CheckIn,
		CheckOut:   order.CheckOut,
	})
	if err != nil {
		return "", &domain.UpstreamError{System: "resource-gateway", Message: err.Error()}
	}
	if !result.Success {
		return "", &domain.UpstreamError{System: "resource-gateway", Message: result.Message}
	}
	return result.ExternalRef, nil
}

// selfManagedStrategy 处理自营库存：逐晚做乐观锁扣减。
// 版本冲突说明有并发写入者赢了这一轮，重读重试；
// 重试有界且每次之间随机退避，避免所有竞争者同步醒来再撞一次。
type selfManagedStrategy struct {
	ledger  domain.LedgerRepository
	flusher port.FingerprintFlusher
	policy  RetryPolicy
}

func (m *selfManagedStrategy) Fulfill(ctx context.Context, order *domain.Order, item *domain.OrderSubItem) (string, error) {
	for _, night := range order.Nights() {
		if err := m.decrementWithRetry(ctx, item, night); err != nil {
			// 已扣成功的晚不回滚，交由异常单的人工对账处理
			return "", err
		}
	}
	if m.flusher != nil {
		if err := m.flusher.Flush(ctx, item.ResourceID, order.Nights()); err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("resource_id", item.ResourceID).
				Msg("failed to flush push fingerprints after stock decrement")
		}
	}
	return "", nil
}

func (m *selfManagedStrategy) decrementWithRetry(ctx context.Context, item *domain.OrderSubItem, night time.Time) error {
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		entry, err := m.ledger.Find(ctx, item.ResourceID, night)
		if err != nil {
			return err
		}
		if entry.IsClosed || entry.AvailableQuantity < item.Quantity {
			return errors.Wrapf(domain.ErrInsufficientCapacity,
				"resource %s on %s: available=%d requested=%d",
				item.ResourceID, night.Format(domain.DateKey), entry.AvailableQuantity, item.Quantity)
		}

		ok, err := m.ledger.DecrementStock(ctx, item.ResourceID, night, item.Quantity, entry.Version)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		// 版本冲突：别人赢了，退避后重读再试
		item.RetryCount++
		metrics.OptimisticRetryTotal.Inc()
		backoff := m.policy.BackoffBase + time.Duration(rand.Int63n(int64(m.policy.BackoffJitter)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Wrapf(domain.ErrOptimisticConflict,
		"resource %s on %s: gave up after %d attempts",
		item.ResourceID, night.Format(domain.DateKey), m.policy.MaxAttempts)
}
