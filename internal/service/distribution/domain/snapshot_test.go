package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStability(t *testing.T) {
	a := InventorySnapshot{ResourceID: "room-101", Date: "2026-09-01", Quantity: 5, Price: 128.5, IsClosed: false}
	b := a

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	// 价格浮点表示差异不应产生假变更
	b.Price = 128.50
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintChangesWithBusinessFields(t *testing.T) {
	base := InventorySnapshot{ResourceID: "room-101", Date: "2026-09-01", Quantity: 5, Price: 128.5}

	qty := base
	qty.Quantity = 4
	assert.NotEqual(t, base.Fingerprint(), qty.Fingerprint())

	price := base
	price.Price = 130
	assert.NotEqual(t, base.Fingerprint(), price.Fingerprint())

	closed := base
	closed.IsClosed = true
	assert.NotEqual(t, base.Fingerprint(), closed.Fingerprint())
}

func TestFingerprintIgnoresNonBusinessFields(t *testing.T) {
	a := InventorySnapshot{ResourceID: "room-101", City: "shanghai", Date: "2026-09-01", Quantity: 5, Price: 100}
	b := a
	b.City = "beijing" // 城市不参与售卖判定

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}
