// internal/service/booking/application/exception.go
package application

import (
	"context"

	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/metrics"
	"tripnexus/internal/service/booking/domain"
	"tripnexus/internal/service/booking/domain/port"

	"github.com/pkg/errors"
)

// ExceptionService 是异常单的收口：任何自动化路径走不下去的订单/子项
// 都在这里落成一条可被人工处理的持久记录，绝不静默丢弃。
type ExceptionService struct {
	repo     domain.ExceptionRepository
	notifier port.ExceptionNotifier
}

// NewExceptionService 创建异常单服务。notifier 可为 nil（例如离线工具场景）。
func NewExceptionService(repo domain.ExceptionRepository, notifier port.ExceptionNotifier) *ExceptionService {
	return &ExceptionService{repo: repo, notifier: notifier}
}

// Raise 创建一条待处理异常单并广播事件。
// 落库失败是硬错误；广播失败只记日志，不影响异常单本身。
func (s *ExceptionService) Raise(ctx context.Context, orderID, subItemID string, kind domain.ExceptionKind, message string, context_ map[string]string) (*domain.ExceptionRecord, error) {
	record := domain.NewExceptionRecord(orderID, subItemID, kind, message, context_)
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to persist exception record")
	}

	metrics.ExceptionRaisedTotal.WithLabelValues(string(kind)).Inc()
	logger.Ctx(ctx).Warn().
		Str("exception_id", record.ID).
		Str("order_id", orderID).
		Str("kind", string(kind)).
		Msg(message)

	if s.notifier != nil {
		if err := s.notifier.NotifyExceptionRaised(ctx, record); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("exception_id", record.ID).
				Msg("failed to broadcast exception event")
		}
	}
	return record, nil
}

// StartProcessing 值班人员认领异常单。仅允许从 PENDING 发起。
func (s *ExceptionService) StartProcessing(ctx context.Context, exceptionID, handler string) (*domain.ExceptionRecord, error) {
	record, err := s.repo.FindByID(ctx, exceptionID)
	if err != nil {
		return nil, err
	}
	if err := record.StartProcessing(handler); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to update exception record")
	}
	return record, nil
}

// Resolve 人工处理完毕后关闭异常单。
func (s *ExceptionService) Resolve(ctx context.Context, exceptionID, handler, remark string) (*domain.ExceptionRecord, error) {
	record, err := s.repo.FindByID(ctx, exceptionID)
	if err != nil {
		return nil, err
	}
	if err := record.Resolve(handler, remark); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to update exception record")
	}
	logger.Ctx(ctx).Info().
		Str("exception_id", record.ID).
		Str("handler", handler).
		Msg("exception resolved")
	return record, nil
}

// ListPending 返回待处理异常单，供值班队列页面拉取。
func (s *ExceptionService) ListPending(ctx context.Context, limit int) ([]*domain.ExceptionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListByStatus(ctx, domain.ExceptionPending, limit)
}
