// internal/service/distribution/application/sync_service.go
package application

import (
	"context"

	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/metrics"
	"tripnexus/internal/service/distribution/domain"
	"tripnexus/internal/service/distribution/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// SyncService 负责把库存快照批次同步到所有订阅渠道。
// 流程: 变更过滤 -> 按渠道规则分拣 -> 并发推送。
type SyncService struct {
	filter      *ChangeFilter
	ruleEngine  port.RuleEngine
	pusher      port.ChannelPusher
	reporter    port.ExceptionReporter
	channels    []domain.Channel
	concurrency int
	tracer      trace.Tracer
}

// NewSyncService 创建同步服务。reporter 可为 nil，此时推送失败只做指纹失效重试，不上报异常单。
func NewSyncService(filter *ChangeFilter, ruleEngine port.RuleEngine, pusher port.ChannelPusher, reporter port.ExceptionReporter, channels []domain.Channel, concurrency int) *SyncService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{
		filter:      filter,
		ruleEngine:  ruleEngine,
		pusher:      pusher,
		reporter:    reporter,
		channels:    channels,
		concurrency: concurrency,
		tracer:      otel.Tracer("distribution-service"),
	}
}

// FilterChanged 只做变更过滤，不推送。供HTTP接口调用。
func (s *SyncService) FilterChanged(ctx context.Context, snapshots []domain.InventorySnapshot) ([]domain.InventorySnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "SyncService.FilterChanged")
	defer span.End()
	return s.filter.Filter(ctx, snapshots)
}

// SyncBatch 处理一个快照批次：过滤出有变更的快照后并发推送到各渠道。
// 某个渠道推送失败不阻塞其他渠道；失败渠道对应的指纹会被删除，
// 使下一批次重新把这些快照判定为有变更并重推。
func (s *SyncService) SyncBatch(ctx context.Context, snapshots []domain.InventorySnapshot) error {
	ctx, span := s.tracer.Start(ctx, "SyncService.SyncBatch")
	defer span.End()

	changed, err := s.filter.Filter(ctx, snapshots)
	if err != nil {
		return errors.Wrap(err, "filter changed snapshots")
	}
	if len(changed) == 0 {
		logger.Ctx(ctx).Debug().Int("batch", len(snapshots)).Msg("no changed snapshots, nothing to push")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, ch := range s.channels {
		ch := ch
		g.Go(func() error {
			subset, err := s.selectForChannel(gctx, ch, changed)
			if err != nil {
				return err
			}
			if len(subset) == 0 {
				return nil
			}
			s.pushToChannel(gctx, ch, subset)
			return nil
		})
	}

	return g.Wait()
}

// selectForChannel 用渠道的CEL规则筛选快照子集。规则求值失败按不匹配处理并告警。
func (s *SyncService) selectForChannel(ctx context.Context, ch domain.Channel, snapshots []domain.InventorySnapshot) ([]domain.InventorySnapshot, error) {
	if ch.Rule == "" {
		return snapshots, nil
	}
	subset := make([]domain.InventorySnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		ok, err := s.ruleEngine.Evaluate(ch.Rule, snap)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("channel", ch.Name).
				Str("resourceId", snap.ResourceID).
				Msg("rule evaluation failed, snapshot skipped for channel")
			continue
		}
		if ok {
			subset = append(subset, snap)
		}
	}
	return subset, nil
}

// pushToChannel 推送并在失败时删除子集指纹、上报异常单。推送失败不作为整批错误返回。
func (s *SyncService) pushToChannel(ctx context.Context, ch domain.Channel, subset []domain.InventorySnapshot) {
	if err := s.pusher.Push(ctx, ch, subset); err != nil {
		metrics.ChannelPushTotal.WithLabelValues(ch.Name, "failure").Inc()
		logger.Ctx(ctx).Error().Err(err).
			Str("channel", ch.Name).
			Int("snapshots", len(subset)).
			Msg("channel push failed, invalidating fingerprints for retry")
		if invErr := s.filter.Invalidate(ctx, subset); invErr != nil {
			logger.Ctx(ctx).Error().Err(invErr).Str("channel", ch.Name).Msg("failed to invalidate fingerprints")
		}
		if s.reporter != nil {
			if repErr := s.reporter.ReportPushFailure(ctx, ch, subset, err); repErr != nil {
				logger.Ctx(ctx).Error().Err(repErr).Str("channel", ch.Name).Msg("failed to report push failure")
			}
		}
		return
	}
	metrics.ChannelPushTotal.WithLabelValues(ch.Name, "success").Inc()
}
