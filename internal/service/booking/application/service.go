// internal/service/booking/application/service.go
package application

import (
	"context"
	"time"

	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/service/booking/domain"
	"tripnexus/internal/service/booking/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderService 是订单编排的应用服务：接单、投递履约任务、状态流转。
// 耗时的履约动作不在请求线程里做，统一进队列由 Worker 消费。
type OrderService struct {
	orders   domain.OrderRepository
	splitter *OrderSplitter
	queue    port.FulfillmentQueue
	tracer   trace.Tracer
}

// NewOrderService 创建订单应用服务。
func NewOrderService(orders domain.OrderRepository, splitter *OrderSplitter, queue port.FulfillmentQueue, tracer trace.Tracer) *OrderService {
	return &OrderService{orders: orders, splitter: splitter, queue: queue, tracer: tracer}
}

// CreateOrder 落库一个已支付订单，拆出子项，并投递履约任务。
// 子项与订单在同一个入口创建，保证后续任何时刻都能按子项推进。
func (s *OrderService) CreateOrder(ctx context.Context, lines []domain.ResourceLine, checkIn, checkOut time.Time) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	order, err := domain.NewOrder(lines, checkIn, checkOut)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order_id", order.ID))

	if err := s.orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save order")
		return nil, errors.Wrap(err, "failed to save order")
	}
	if _, err := s.splitter.Split(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to split order")
		return nil, err
	}

	if err := s.queue.EnqueueFulfillment(ctx, domain.FulfillmentJobRequested{
		OrderID:     order.ID,
		RequestedAt: time.Now(),
	}); err != nil {
		// 订单已落库，任务投递失败靠人工/补偿任务重推，不回滚订单
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", order.ID).
			Msg("failed to enqueue fulfillment job, order needs manual re-drive")
		return order, errors.Wrap(err, "failed to enqueue fulfillment job")
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Int("lines", len(lines)).
		Msg("order accepted and fulfillment job enqueued")
	return order, nil
}

// TransitionOrderStatus 执行一次人工或系统发起的状态流转。
// 非法流转原样抛出 InvalidTransitionError——调用方传错状态是 bug，必须可见。
func (s *OrderService) TransitionOrderStatus(ctx context.Context, orderID string, to domain.Status, actor, remark string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.TransitionOrderStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("to_status", string(to)),
	)

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	change, err := order.TransitionTo(to, actor, remark)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid transition")
		return nil, err
	}
	if err := s.orders.Transition(ctx, order, change); err != nil {
		return nil, errors.Wrap(err, "failed to persist order transition")
	}

	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Str("actor", actor).
		Msg("order status transitioned")
	return order, nil
}

// GetOrder 查询订单与子项。
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, []*domain.OrderSubItem, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.orders.FindSubItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}
