// internal/service/booking/application/reservation.go
package application

import (
	"context"
	"time"

	"tripnexus/internal/pkg/constants"
	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/metrics"
	"tripnexus/internal/service/booking/domain"
	"tripnexus/internal/service/booking/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReservationService 负责日期范围内的库存占用与释放。
// 正确性核心：先拿齐该范围内每一天的分布式锁，再在锁内校验并落库，
// 无论成功失败都保证释放全部已获取的锁。
type ReservationService struct {
	ledgerRepo domain.LedgerRepository
	locks      port.LockManager
	flusher    port.FingerprintFlusher
	lockTTL    time.Duration
	tracer     trace.Tracer
}

// NewReservationService 创建预订服务。lockTTL 为单把锁的租约时长（秒级）。
func NewReservationService(ledgerRepo domain.LedgerRepository, locks port.LockManager, flusher port.FingerprintFlusher, lockTTL time.Duration, tracer trace.Tracer) *ReservationService {
	return &ReservationService{
		ledgerRepo: ledgerRepo,
		locks:      locks,
		flusher:    flusher,
		lockTTL:    lockTTL,
		tracer:     tracer,
	}
}

// heldLock 记录一把已经拿到的锁，释放时需要 token 比对。
type heldLock struct {
	key   string
	token string
}

// Reserve 为 [checkIn, checkOut) 的每一晚占用 qty 个库存。
// 返回值：
//   - nil                          成功，每一天 available -= qty, locked += qty
//   - domain.ErrLockTimeout        没拿齐锁，瞬时失败，调用方可重试
//   - domain.ErrInsufficientCapacity 某天库存不足，不产生任何台账变更
//   - domain.ErrLedgerNotFound     某天没有台账记录
func (s *ReservationService) Reserve(ctx context.Context, roomTypeID string, checkIn, checkOut time.Time, qty int) error {
	ctx, span := s.tracer.Start(ctx, "reservation.Reserve")
	defer span.End()

	dates := nightsBetween(checkIn, checkOut)
	span.SetAttributes(
		attribute.String("room_type", roomTypeID),
		attribute.Int("quantity", qty),
		attribute.Int("nights", len(dates)),
	)

	if qty <= 0 {
		return errors.New("reserve quantity must be positive")
	}

	err := s.withDateLocks(ctx, roomTypeID, dates, func(lockedCtx context.Context) error {
		// 锁内重新校验。锁外的任何预检查都只是优化，不提供正确性
		entries, err := s.findAllDates(lockedCtx, roomTypeID, dates)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.CanReserve(qty) {
				return errors.Wrapf(domain.ErrInsufficientCapacity,
					"room type %s on %s: available=%d requested=%d closed=%t",
					roomTypeID, e.Date.Format(domain.DateKey), e.AvailableQuantity, qty, e.IsClosed)
			}
		}
		// 全部日期有量，才允许任何一条发生变更
		for _, e := range entries {
			if err := e.Reserve(qty); err != nil {
				return err
			}
		}
		return s.ledgerRepo.SaveAll(lockedCtx, entries)
	})

	switch {
	case err == nil:
		metrics.ReservationTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, domain.ErrInsufficientCapacity):
		metrics.ReservationTotal.WithLabelValues("insufficient").Inc()
	case errors.Is(err, domain.ErrLockTimeout):
		metrics.ReservationTotal.WithLabelValues("lock_busy").Inc()
	default:
		metrics.ReservationTotal.WithLabelValues("error").Inc()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reserve failed")
		return err
	}

	// 台账变了，推送指纹必须失效，否则出站同步会误判"未变化"
	s.flushFingerprints(ctx, roomTypeID, dates)
	return nil
}

// Release 把 [checkIn, checkOut) 每一晚的锁定量释放回可售。
// 释放量收敛到当天的锁定量，重复释放不会产生负数。
func (s *ReservationService) Release(ctx context.Context, roomTypeID string, checkIn, checkOut time.Time, qty int) error {
	ctx, span := s.tracer.Start(ctx, "reservation.Release")
	defer span.End()

	dates := nightsBetween(checkIn, checkOut)
	span.SetAttributes(
		attribute.String("room_type", roomTypeID),
		attribute.Int("quantity", qty),
	)

	err := s.withDateLocks(ctx, roomTypeID, dates, func(lockedCtx context.Context) error {
		entries, err := s.findAllDates(lockedCtx, roomTypeID, dates)
		if err != nil {
			return err
		}
		for _, e := range entries {
			released := e.Release(qty)
			if released < qty {
				logger.Ctx(lockedCtx).Warn().
					Str("room_type", roomTypeID).
					Str("date", e.Date.Format(domain.DateKey)).
					Int("requested", qty).
					Int("released", released).
					Msg("release clamped to locked quantity, possible double release")
			}
		}
		return s.ledgerRepo.SaveAll(lockedCtx, entries)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release failed")
		return err
	}

	s.flushFingerprints(ctx, roomTypeID, dates)
	return nil
}

// withDateLocks 按日期顺序尝试获取全部锁，执行 fn，最后保证释放所有已持有的锁。
// 任何一把锁获取失败都立刻回头释放已拿到的部分并以 ErrLockTimeout 快速失败，
// 绝不阻塞等待别人的锁，整个操作的延迟因此有界。
func (s *ReservationService) withDateLocks(ctx context.Context, roomTypeID string, dates []time.Time, fn func(ctx context.Context) error) error {
	var held []heldLock
	defer func() {
		// 释放用独立的 context：即使业务 ctx 已取消，锁也必须还回去
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for _, h := range held {
			if err := s.locks.Release(releaseCtx, h.key, h.token); err != nil {
				logger.Ctx(releaseCtx).Error().Err(err).
					Str("lock_key", h.key).
					Msg("failed to release reservation lock, lease will expire it")
			}
		}
	}()

	start := time.Now()
	for _, d := range dates {
		key := constants.ReservationLockKey(roomTypeID, d.Format(domain.DateKey))
		token, err := s.locks.TryAcquire(ctx, key, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockBusy) {
				return errors.Wrapf(domain.ErrLockTimeout, "lock %s held by a peer", key)
			}
			return errors.Wrapf(err, "failed to acquire lock %s", key)
		}
		held = append(held, heldLock{key: key, token: token})
	}
	metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())

	return fn(ctx)
}

// findAllDates 加载范围内每一天的台账，任何一天缺失都视为失败。
func (s *ReservationService) findAllDates(ctx context.Context, roomTypeID string, dates []time.Time) ([]*domain.InventoryLedgerEntry, error) {
	entries, err := s.ledgerRepo.FindDates(ctx, roomTypeID, dates)
	if err != nil {
		return nil, err
	}
	if len(entries) != len(dates) {
		return nil, errors.Wrapf(domain.ErrLedgerNotFound,
			"room type %s: expected %d ledger entries, found %d", roomTypeID, len(dates), len(entries))
	}
	return entries, nil
}

func (s *ReservationService) flushFingerprints(ctx context.Context, roomTypeID string, dates []time.Time) {
	if s.flusher == nil {
		return
	}
	if err := s.flusher.Flush(ctx, roomTypeID, dates); err != nil {
		// 失效失败只影响一次推送的时效性，指纹有 TTL 兜底
		logger.Ctx(ctx).Warn().Err(err).
			Str("room_type", roomTypeID).
			Msg("failed to flush push fingerprints after ledger mutation")
	}
}

// nightsBetween 展开 [checkIn, checkOut) 的每一晚；两者相等时返回单日（门票场景）。
func nightsBetween(checkIn, checkOut time.Time) []time.Time {
	if !checkOut.After(checkIn) {
		return []time.Time{checkIn}
	}
	var nights []time.Time
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}
