package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(total, locked, available int) *InventoryLedgerEntry {
	return &InventoryLedgerEntry{
		RoomTypeID:        "room-101",
		Date:              time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		TotalQuantity:     total,
		LockedQuantity:    locked,
		AvailableQuantity: available,
		Source:            SourceManual,
	}
}

func TestLedgerReserve(t *testing.T) {
	e := newEntry(10, 0, 10)

	require.NoError(t, e.Reserve(4))
	assert.Equal(t, 6, e.AvailableQuantity)
	assert.Equal(t, 4, e.LockedQuantity)

	err := e.Reserve(7)
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	assert.Equal(t, 6, e.AvailableQuantity)
	assert.Equal(t, 4, e.LockedQuantity)
}

func TestLedgerReserveClosed(t *testing.T) {
	e := newEntry(10, 0, 10)
	e.IsClosed = true

	assert.False(t, e.CanReserve(1))
	assert.ErrorIs(t, e.Reserve(1), ErrLedgerClosed)
}

func TestLedgerReleaseClampsToLocked(t *testing.T) {
	e := newEntry(10, 3, 7)

	released := e.Release(5)
	assert.Equal(t, 3, released)
	assert.Equal(t, 0, e.LockedQuantity)
	assert.Equal(t, 10, e.AvailableQuantity)

	// 重复释放不会把不变式打穿
	released = e.Release(5)
	assert.Equal(t, 0, released)
	assert.Equal(t, 10, e.AvailableQuantity)
}
