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

// fakePusher 记录每个渠道收到的快照，可按渠道名配置失败。
type fakePusher struct {
	mu       sync.Mutex
	received map[string][][]domain.InventorySnapshot
	failFor  map[string]bool
}

func newFakePusher() *fakePusher {
	return &fakePusher{
		received: make(map[string][][]domain.InventorySnapshot),
		failFor:  make(map[string]bool),
	}
}

func (p *fakePusher) Push(ctx context.Context, channel domain.Channel, snapshots []domain.InventorySnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[channel.Name] {
		return errors.Errorf("channel %s rejected the batch", channel.Name)
	}
	p.received[channel.Name] = append(p.received[channel.Name], snapshots)
	return nil
}

func (p *fakePusher) batches(channel string) [][]domain.InventorySnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received[channel]
}

// matchAllRuleEngine 用几条固定的伪规则代替CEL，让断言不依赖表达式引擎。
type matchAllRuleEngine struct{}

func (matchAllRuleEngine) Evaluate(rule string, snapshot domain.InventorySnapshot) (bool, error) {
	switch rule {
	case "", "true":
		return true, nil
	case "tickets-only":
		return snapshot.ResourceType == "TICKET", nil
	case "boom":
		return false, errors.New("bad rule")
	}
	return false, nil
}

// fakeReporter 记录上报的推送失败。
type fakeReporter struct {
	mu      sync.Mutex
	reports []string
}

func (r *fakeReporter) ReportPushFailure(ctx context.Context, channel domain.Channel, snapshots []domain.InventorySnapshot, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, channel.Name)
	return nil
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func newSyncFixture(channels []domain.Channel) (*SyncService, *fakePusher, *fakeFingerprintStore) {
	store := newFakeFingerprintStore()
	filter := NewChangeFilter(store, time.Hour)
	pusher := newFakePusher()
	svc := NewSyncService(filter, matchAllRuleEngine{}, pusher, nil, channels, 4)
	return svc, pusher, store
}

func TestSyncBatchPushesChangedToAllChannels(t *testing.T) {
	svc, pusher, _ := newSyncFixture([]domain.Channel{
		{Name: "ota-a", Endpoint: "http://a"},
		{Name: "ota-b", Endpoint: "http://b"},
	})

	require.NoError(t, svc.SyncBatch(context.Background(), snapshotBatch()))

	for _, ch := range []string{"ota-a", "ota-b"} {
		batches := pusher.batches(ch)
		require.Len(t, batches, 1, "channel %s", ch)
		assert.Len(t, batches[0], 3)
	}

	// 同一批次重放：没有变更，什么都不推
	require.NoError(t, svc.SyncBatch(context.Background(), snapshotBatch()))
	assert.Len(t, pusher.batches("ota-a"), 1)
}

func TestSyncBatchAppliesChannelRules(t *testing.T) {
	svc, pusher, _ := newSyncFixture([]domain.Channel{
		{Name: "tickets", Endpoint: "http://t", Rule: "tickets-only"},
		{Name: "everything", Endpoint: "http://e"},
	})

	require.NoError(t, svc.SyncBatch(context.Background(), snapshotBatch()))

	ticketBatches := pusher.batches("tickets")
	require.Len(t, ticketBatches, 1)
	require.Len(t, ticketBatches[0], 1)
	assert.Equal(t, "park-west", ticketBatches[0][0].ResourceID)

	allBatches := pusher.batches("everything")
	require.Len(t, allBatches, 1)
	assert.Len(t, allBatches[0], 3)
}

func TestSyncBatchFailedChannelGetsRetriedNextBatch(t *testing.T) {
	svc, pusher, _ := newSyncFixture([]domain.Channel{
		{Name: "flaky", Endpoint: "http://f"},
	})
	pusher.failFor["flaky"] = true

	// 第一批推送失败：不返回错误，但指纹被失效
	require.NoError(t, svc.SyncBatch(context.Background(), snapshotBatch()))
	assert.Empty(t, pusher.batches("flaky"))

	// 渠道恢复后，同一批数据被重新判定为有变更并重推
	pusher.failFor["flaky"] = false
	require.NoError(t, svc.SyncBatch(context.Background(), snapshotBatch()))
	batches := pusher.batches("flaky")
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
}

func TestSyncBatchFailedChannelDoesNotBlockOthers(t *testing.T) {
	svc, pusher, _ := newSyncFixture([]domain.Channel{
		{Name: "broken", Endpoint: "http://x"},
		{Name: "healthy", Endpoint: "http://y"},
	})
	pusher.failFor["broken"] = true

	require.NoError(t, svc.SyncBatch(context.Background(), snapshotBatch()))

	require.Len(t, pusher.batches("healthy"), 1)
	assert.Empty(t, pusher.batches("broken"))
}

func TestSyncBatchPushFailureReportsException(t *testing.T) {
	store := newFakeFingerprintStore()
	filter := NewChangeFilter(store, time.Hour)
	pusher := newFakePusher()
	pusher.failFor["flaky"] = true
	reporter := &fakeReporter{}
	svc := NewSyncService(filter, matchAllRuleEngine{}, pusher, reporter, []domain.Channel{
		{Name: "flaky", Endpoint: "http://f"},
		{Name: "healthy", Endpoint: "http://h"},
	}, 4)

	require.NoError(t, svc.SyncBatch(context.Background(), snapshotBatch()))

	// 只有失败渠道上报异常单，成功渠道不上报
	assert.Equal(t, 1, reporter.count())
	assert.Equal(t, []string{"flaky"}, reporter.reports)
	require.Len(t, pusher.batches("healthy"), 1)
}

func TestSyncBatchRuleErrorSkipsSnapshot(t *testing.T) {
	svc, pusher, _ := newSyncFixture([]domain.Channel{
		{Name: "strict", Endpoint: "http://s", Rule: "boom"},
	})

	// 规则求值失败按不匹配处理，不让整个批次失败
	require.NoError(t, svc.SyncBatch(context.Background(), snapshotBatch()))
	assert.Empty(t, pusher.batches("strict"))
}
