package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"tripnexus/internal/service/distribution/domain"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFingerprintStore 是内存指纹缓存，可配置读失败。
type fakeFingerprintStore struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	setCall int
}

func newFakeFingerprintStore() *fakeFingerprintStore {
	return &fakeFingerprintStore{data: make(map[string]string)}
}

func (s *fakeFingerprintStore) GetAll(ctx context.Context, keys []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.data[k]
	}
	return out, nil
}

func (s *fakeFingerprintStore) SetAll(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCall++
	if s.setErr != nil {
		return s.setErr
	}
	for k, v := range entries {
		s.data[k] = v
	}
	return nil
}

func (s *fakeFingerprintStore) Invalidate(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func snapshotBatch() []domain.InventorySnapshot {
	return []domain.InventorySnapshot{
		{ResourceID: "room-101", ResourceType: "HOTEL_STAY", City: "shanghai", Date: "2026-09-01", Quantity: 5, Price: 120},
		{ResourceID: "room-101", ResourceType: "HOTEL_STAY", City: "shanghai", Date: "2026-09-02", Quantity: 3, Price: 150},
		{ResourceID: "park-west", ResourceType: "TICKET", City: "shanghai", Date: "2026-09-01", Quantity: 200, Price: 65},
	}
}

func TestFilterEmptyBatch(t *testing.T) {
	filter := NewChangeFilter(newFakeFingerprintStore(), time.Hour)

	changed, err := filter.Filter(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestFilterFirstBatchAllChanged(t *testing.T) {
	filter := NewChangeFilter(newFakeFingerprintStore(), time.Hour)

	changed, err := filter.Filter(context.Background(), snapshotBatch())
	require.NoError(t, err)
	assert.Len(t, changed, 3)
}

func TestFilterSecondIdenticalBatchIsEmpty(t *testing.T) {
	filter := NewChangeFilter(newFakeFingerprintStore(), time.Hour)
	ctx := context.Background()

	_, err := filter.Filter(ctx, snapshotBatch())
	require.NoError(t, err)

	changed, err := filter.Filter(ctx, snapshotBatch())
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestFilterDetectsMutatedSubset(t *testing.T) {
	filter := NewChangeFilter(newFakeFingerprintStore(), time.Hour)
	ctx := context.Background()

	_, err := filter.Filter(ctx, snapshotBatch())
	require.NoError(t, err)

	batch := snapshotBatch()
	batch[1].Quantity = 0
	batch[1].IsClosed = true

	changed, err := filter.Filter(ctx, batch)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "2026-09-02", changed[0].Date)

	// 变更被吸收后再次过滤为空
	changed, err = filter.Filter(ctx, batch)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestFilterFailsOpenOnCacheError(t *testing.T) {
	store := newFakeFingerprintStore()
	store.getErr = errors.New("redis: connection refused")
	filter := NewChangeFilter(store, time.Hour)

	// 缓存不可用时宁可全量推送，不可漏推
	changed, err := filter.Filter(context.Background(), snapshotBatch())
	require.NoError(t, err)
	assert.Len(t, changed, 3)
}

func TestFilterSurvivesWriteBackFailure(t *testing.T) {
	store := newFakeFingerprintStore()
	store.setErr = errors.New("redis: readonly replica")
	filter := NewChangeFilter(store, time.Hour)

	changed, err := filter.Filter(context.Background(), snapshotBatch())
	require.NoError(t, err)
	assert.Len(t, changed, 3)
}

func TestInvalidateForcesRedelivery(t *testing.T) {
	store := newFakeFingerprintStore()
	filter := NewChangeFilter(store, time.Hour)
	ctx := context.Background()

	batch := snapshotBatch()
	_, err := filter.Filter(ctx, batch)
	require.NoError(t, err)

	// 推送失败后失效指纹，下一批次重新判定为有变更
	require.NoError(t, filter.Invalidate(ctx, batch[:1]))

	changed, err := filter.Filter(ctx, batch)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, batch[0].ResourceID, changed[0].ResourceID)
	assert.Equal(t, batch[0].Date, changed[0].Date)
}
