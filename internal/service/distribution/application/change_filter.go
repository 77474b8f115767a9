// internal/service/distribution/application/change_filter.go
package application

import (
	"context"
	"time"

	"tripnexus/internal/pkg/constants"
	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/metrics"
	"tripnexus/internal/service/distribution/domain"
	"tripnexus/internal/service/distribution/domain/port"
)

// ChangeFilter 基于指纹缓存过滤掉与上一次推送完全相同的快照。
// 缓存读失败时降级为"全部有变更"：宁可重复推送，不可漏推。
type ChangeFilter struct {
	store port.FingerprintStore
	ttl   time.Duration
}

func NewChangeFilter(store port.FingerprintStore, ttl time.Duration) *ChangeFilter {
	return &ChangeFilter{store: store, ttl: ttl}
}

// Filter 返回快照中与缓存指纹不一致（或缓存中不存在）的子集，
// 并把这些变更快照的新指纹写回缓存。
func (f *ChangeFilter) Filter(ctx context.Context, snapshots []domain.InventorySnapshot) ([]domain.InventorySnapshot, error) {
	if len(snapshots) == 0 {
		return []domain.InventorySnapshot{}, nil
	}

	keys := make([]string, len(snapshots))
	for i, s := range snapshots {
		resourceID, date := s.Key()
		keys[i] = constants.FingerprintKey(resourceID, date)
	}

	cached, err := f.store.GetAll(ctx, keys)
	if err != nil {
		// 1. 缓存不可用：降级为全量变更，同时尽力写回指纹
		logger.Ctx(ctx).Warn().Err(err).Msg("fingerprint cache unavailable, treating whole batch as changed")
		f.writeBack(ctx, keys, snapshots, nil)
		f.observeRatio(len(snapshots), len(snapshots))
		return snapshots, nil
	}

	// 2. 逐条比对指纹
	changed := make([]domain.InventorySnapshot, 0, len(snapshots))
	changedIdx := make([]int, 0, len(snapshots))
	for i, s := range snapshots {
		if cached[i] == s.Fingerprint() {
			continue
		}
		changed = append(changed, s)
		changedIdx = append(changedIdx, i)
	}

	// 3. 只为变更的快照写回新指纹
	if len(changed) > 0 {
		f.writeBack(ctx, keys, snapshots, changedIdx)
	}

	f.observeRatio(len(changed), len(snapshots))
	return changed, nil
}

// Invalidate 删除一组快照的指纹，让它们在下一批次被重新判定为有变更。
// 推送失败后调用，保证失败的渠道数据最终会被重推。
func (f *ChangeFilter) Invalidate(ctx context.Context, snapshots []domain.InventorySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	keys := make([]string, len(snapshots))
	for i, s := range snapshots {
		resourceID, date := s.Key()
		keys[i] = constants.FingerprintKey(resourceID, date)
	}
	return f.store.Invalidate(ctx, keys)
}

// writeBack 写回指纹。idx为nil时写回全部。写失败只告警：
// 最坏情况是下一批次多推一次，不影响正确性。
func (f *ChangeFilter) writeBack(ctx context.Context, keys []string, snapshots []domain.InventorySnapshot, idx []int) {
	entries := make(map[string]string)
	if idx == nil {
		for i, s := range snapshots {
			entries[keys[i]] = s.Fingerprint()
		}
	} else {
		for _, i := range idx {
			entries[keys[i]] = snapshots[i].Fingerprint()
		}
	}
	if err := f.store.SetAll(ctx, entries, f.ttl); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to write back fingerprints")
	}
}

func (f *ChangeFilter) observeRatio(changed, total int) {
	if total == 0 {
		return
	}
	metrics.SyncFilteredRatio.Observe(float64(changed) / float64(total))
}
