package application

import (
	"context"
	"sync"
	"time"

	"tripnexus/internal/service/booking/domain"
	"tripnexus/internal/service/booking/domain/port"

	"github.com/pkg/errors"
)

func ledgerKey(roomTypeID string, date time.Time) string {
	return roomTypeID + "|" + date.Format(domain.DateKey)
}

// fakeLedgerRepo 是内存台账，模拟数据库的读出副本 + 条件更新语义。
type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.InventoryLedgerEntry

	// conflictFirstN 使前 N 次 DecrementStock 制造版本冲突，用于测试重试路径
	conflictFirstN int
	decrementCalls int
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{entries: make(map[string]*domain.InventoryLedgerEntry)}
}

func (r *fakeLedgerRepo) seed(roomTypeID string, date time.Time, available int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[ledgerKey(roomTypeID, date)] = &domain.InventoryLedgerEntry{
		RoomTypeID:        roomTypeID,
		Date:              date,
		TotalQuantity:     available,
		AvailableQuantity: available,
		Source:            domain.SourceManual,
	}
}

func (r *fakeLedgerRepo) get(roomTypeID string, date time.Time) domain.InventoryLedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[ledgerKey(roomTypeID, date)]
}

func (r *fakeLedgerRepo) Find(ctx context.Context, roomTypeID string, date time.Time) (*domain.InventoryLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[ledgerKey(roomTypeID, date)]
	if !ok {
		return nil, errors.Wrapf(domain.ErrLedgerNotFound, "%s on %s", roomTypeID, date.Format(domain.DateKey))
	}
	copied := *e
	return &copied, nil
}

func (r *fakeLedgerRepo) FindDates(ctx context.Context, roomTypeID string, dates []time.Time) ([]*domain.InventoryLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.InventoryLedgerEntry
	for _, d := range dates {
		if e, ok := r.entries[ledgerKey(roomTypeID, d)]; ok {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) SaveAll(ctx context.Context, entries []*domain.InventoryLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		copied := *e
		copied.Version++
		r.entries[ledgerKey(e.RoomTypeID, e.Date)] = &copied
	}
	return nil
}

func (r *fakeLedgerRepo) DecrementStock(ctx context.Context, roomTypeID string, date time.Time, qty int, version int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decrementCalls++
	if r.conflictFirstN > 0 {
		r.conflictFirstN--
		return false, nil
	}
	e, ok := r.entries[ledgerKey(roomTypeID, date)]
	if !ok {
		return false, errors.Wrapf(domain.ErrLedgerNotFound, "%s on %s", roomTypeID, date.Format(domain.DateKey))
	}
	if e.Version != version {
		return false, nil
	}
	e.StockSold += qty
	e.AvailableQuantity -= qty
	e.Version++
	return true, nil
}

// fakeOrderRepo 是内存订单库。
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	items  map[string][]*domain.OrderSubItem
	log    []*domain.StatusChange
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[string]*domain.Order),
		items:  make(map[string][]*domain.OrderSubItem),
	}
}

func (r *fakeOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, errors.Wrap(domain.ErrOrderNotFound, id)
	}
	return order, nil
}

func (r *fakeOrderRepo) Transition(ctx context.Context, order *domain.Order, change *domain.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	r.log = append(r.log, change)
	return nil
}

func (r *fakeOrderRepo) SaveSubItems(ctx context.Context, items []*domain.OrderSubItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		r.items[item.OrderID] = append(r.items[item.OrderID], item)
	}
	return nil
}

func (r *fakeOrderRepo) FindSubItems(ctx context.Context, orderID string) ([]*domain.OrderSubItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[orderID], nil
}

func (r *fakeOrderRepo) UpdateSubItem(ctx context.Context, item *domain.OrderSubItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.items[item.OrderID]
	for i, it := range existing {
		if it.ID == item.ID {
			existing[i] = item
		}
	}
	return nil
}

// fakeExceptionRepo 是内存异常单库。
type fakeExceptionRepo struct {
	mu      sync.Mutex
	records map[string]*domain.ExceptionRecord
}

func newFakeExceptionRepo() *fakeExceptionRepo {
	return &fakeExceptionRepo{records: make(map[string]*domain.ExceptionRecord)}
}

func (r *fakeExceptionRepo) Save(ctx context.Context, record *domain.ExceptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	return nil
}

func (r *fakeExceptionRepo) FindByID(ctx context.Context, id string) (*domain.ExceptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, errors.Wrap(domain.ErrExceptionNotFound, id)
	}
	return record, nil
}

func (r *fakeExceptionRepo) Update(ctx context.Context, record *domain.ExceptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	return nil
}

func (r *fakeExceptionRepo) ListByStatus(ctx context.Context, status domain.ExceptionStatus, limit int) ([]*domain.ExceptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ExceptionRecord
	for _, record := range r.records {
		if record.Status == status && len(out) < limit {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeExceptionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// fakeUpstream 模拟上游资源系统。
type fakeUpstream struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (u *fakeUpstream) ConfirmReservation(ctx context.Context, req port.ConfirmRequest) (port.ConfirmResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.fail {
		return port.ConfirmResult{Success: false, Message: "no allotment left"}, nil
	}
	return port.ConfirmResult{Success: true, ExternalRef: "EXT-12345"}, nil
}

func (u *fakeUpstream) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

// nopFlusher 丢弃指纹失效请求。
type nopFlusher struct{}

func (nopFlusher) Flush(ctx context.Context, resourceID string, dates []time.Time) error {
	return nil
}

// recordFlusher 记录被失效的 (资源, 日期)。
type recordFlusher struct {
	mu      sync.Mutex
	flushed map[string]int
}

func newRecordFlusher() *recordFlusher {
	return &recordFlusher{flushed: make(map[string]int)}
}

func (f *recordFlusher) Flush(ctx context.Context, resourceID string, dates []time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range dates {
		f.flushed[ledgerKey(resourceID, d)]++
	}
	return nil
}
