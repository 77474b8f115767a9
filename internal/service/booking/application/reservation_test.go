package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tripnexus/internal/pkg/constants"
	"tripnexus/internal/service/booking/domain"
	"tripnexus/internal/service/booking/infrastructure/adapter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func newReservationFixture(t *testing.T) (*ReservationService, *fakeLedgerRepo, *adapter.MemoryLockAdapter) {
	t.Helper()
	ledger := newFakeLedgerRepo()
	locks := adapter.NewMemoryLockAdapter()
	svc := NewReservationService(ledger, locks, nopFlusher{}, time.Second, otel.Tracer("test"))
	return svc, ledger, locks
}

func TestReserveAcrossDateRange(t *testing.T) {
	svc, ledger, _ := newReservationFixture(t)
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 3)
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		ledger.seed("room-101", d, 10)
	}

	require.NoError(t, svc.Reserve(context.Background(), "room-101", checkIn, checkOut, 4))

	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		e := ledger.get("room-101", d)
		assert.Equal(t, 6, e.AvailableQuantity, "available on %s", d.Format(domain.DateKey))
		assert.Equal(t, 4, e.LockedQuantity, "locked on %s", d.Format(domain.DateKey))
	}
}

func TestReserveAllOrNothing(t *testing.T) {
	svc, ledger, _ := newReservationFixture(t)
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 2)
	ledger.seed("room-101", checkIn, 10)
	ledger.seed("room-101", checkIn.AddDate(0, 0, 1), 2) // 第二晚不够

	err := svc.Reserve(context.Background(), "room-101", checkIn, checkOut, 4)
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	// 任何一晚不足时，哪一晚都不能有变更
	first := ledger.get("room-101", checkIn)
	assert.Equal(t, 10, first.AvailableQuantity)
	assert.Equal(t, 0, first.LockedQuantity)
}

func TestReserveMissingLedger(t *testing.T) {
	svc, ledger, _ := newReservationFixture(t)
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	ledger.seed("room-101", checkIn, 10)

	// 第二晚没有台账记录
	err := svc.Reserve(context.Background(), "room-101", checkIn, checkIn.AddDate(0, 0, 2), 1)
	require.ErrorIs(t, err, domain.ErrLedgerNotFound)
}

func TestReserveLockBusyFailsFast(t *testing.T) {
	svc, ledger, locks := newReservationFixture(t)
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	ledger.seed("room-101", checkIn, 10)

	// 另一个持有者占住了当天的锁
	key := constants.ReservationLockKey("room-101", checkIn.Format(domain.DateKey))
	_, err := locks.TryAcquire(context.Background(), key, time.Minute)
	require.NoError(t, err)

	err = svc.Reserve(context.Background(), "room-101", checkIn, checkIn, 1)
	require.ErrorIs(t, err, domain.ErrLockTimeout)

	e := ledger.get("room-101", checkIn)
	assert.Equal(t, 10, e.AvailableQuantity)
}

func TestReserveReleasesLocksOnAllPaths(t *testing.T) {
	svc, ledger, locks := newReservationFixture(t)
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	ledger.seed("room-101", checkIn, 2)

	// 失败路径也必须把锁还回去
	err := svc.Reserve(context.Background(), "room-101", checkIn, checkIn, 5)
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	key := constants.ReservationLockKey("room-101", checkIn.Format(domain.DateKey))
	assert.False(t, locks.Held(key))

	// 成功路径同样
	require.NoError(t, svc.Reserve(context.Background(), "room-101", checkIn, checkIn, 1))
	assert.False(t, locks.Held(key))
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	svc, ledger, _ := newReservationFixture(t)
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	ledger.seed("room-101", checkIn, 10)

	// 两个并发请求各要6间，库存只有10：最多一个能成功
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Reserve(context.Background(), "room-101", checkIn, checkIn, 6)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			// 输家要么碰到锁，要么在锁内发现不足
			losable := errors.Is(err, domain.ErrLockTimeout) || errors.Is(err, domain.ErrInsufficientCapacity)
			assert.True(t, losable, "unexpected error: %v", err)
		}
	}
	assert.LessOrEqual(t, successes, 1)

	e := ledger.get("room-101", checkIn)
	assert.Equal(t, 10-6*successes, e.AvailableQuantity)
	assert.Equal(t, 6*successes, e.LockedQuantity)
}

func TestReleaseClampsToLocked(t *testing.T) {
	svc, ledger, _ := newReservationFixture(t)
	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	ledger.seed("room-101", checkIn, 10)

	require.NoError(t, svc.Reserve(context.Background(), "room-101", checkIn, checkIn, 3))

	// 释放量超过锁定量时收敛，不产生负数
	require.NoError(t, svc.Release(context.Background(), "room-101", checkIn, checkIn, 5))

	e := ledger.get("room-101", checkIn)
	assert.Equal(t, 10, e.AvailableQuantity)
	assert.Equal(t, 0, e.LockedQuantity)
}

func TestReserveFlushesFingerprints(t *testing.T) {
	ledger := newFakeLedgerRepo()
	locks := adapter.NewMemoryLockAdapter()
	flusher := newRecordFlusher()
	svc := NewReservationService(ledger, locks, flusher, time.Second, otel.Tracer("test"))

	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	ledger.seed("room-101", checkIn, 10)
	ledger.seed("room-101", checkIn.AddDate(0, 0, 1), 10)

	require.NoError(t, svc.Reserve(context.Background(), "room-101", checkIn, checkIn.AddDate(0, 0, 2), 1))

	assert.Equal(t, 1, flusher.flushed[ledgerKey("room-101", checkIn)])
	assert.Equal(t, 1, flusher.flushed[ledgerKey("room-101", checkIn.AddDate(0, 0, 1))])
}
