// internal/service/booking/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"tripnexus/internal/service/booking/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建订单仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines := model.Lines
		model.Lines = nil
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error; err != nil {
			return err
		}
		// 资源行在订单生命周期内不可变，只在首次保存时写入
		var count int64
		if err := tx.Model(&OrderLineModel{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 && len(lines) > 0 {
			if err := tx.Create(&lines).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", id)
		}
		return nil, err
	}
	return toDomainOrder(&model), nil
}

// Transition 在一个事务内同时更新订单状态和写入审计记录，
// 两者要么都成功要么都失败。
func (r *GormOrderRepository) Transition(ctx context.Context, order *domain.Order, change *domain.StatusChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     string(order.Status),
			"updated_at": order.UpdatedAt,
		}
		if order.ConfirmedAt != nil {
			updates["confirmed_at"] = order.ConfirmedAt
		}
		if order.CancelledAt != nil {
			updates["cancelled_at"] = order.CancelledAt
		}
		if order.VerifiedAt != nil {
			updates["verified_at"] = order.VerifiedAt
		}
		res := tx.Model(&OrderModel{}).Where("id = ?", order.ID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(domain.ErrOrderNotFound, "order %s", order.ID)
		}

		log := &StatusLogModel{
			ID:         change.ID,
			OrderID:    change.OrderID,
			FromStatus: string(change.From),
			ToStatus:   string(change.To),
			Actor:      change.Actor,
			Remark:     change.Remark,
			OccurredAt: change.Occurred,
		}
		return tx.Create(log).Error
	})
}

func (r *GormOrderRepository) SaveSubItems(ctx context.Context, items []*domain.OrderSubItem) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]*SubItemModel, 0, len(items))
	for _, item := range items {
		models = append(models, toSubItemModel(item))
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models).Error
}

func (r *GormOrderRepository) FindSubItems(ctx context.Context, orderID string) ([]*domain.OrderSubItem, error) {
	var models []SubItemModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]*domain.OrderSubItem, 0, len(models))
	for i := range models {
		items = append(items, toDomainSubItem(&models[i]))
	}
	return items, nil
}

func (r *GormOrderRepository) UpdateSubItem(ctx context.Context, item *domain.OrderSubItem) error {
	return r.db.WithContext(ctx).Model(&SubItemModel{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"status":       string(item.Status),
		"retry_count":  item.RetryCount,
		"external_ref": item.ExternalRef,
		"error_msg":    item.ErrorMsg,
		"updated_at":   item.UpdatedAt,
	}).Error
}

// GormLedgerRepository 是 domain.LedgerRepository 的 GORM 实现
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository 创建台账仓储实例
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

func (r *GormLedgerRepository) Find(ctx context.Context, roomTypeID string, date time.Time) (*domain.InventoryLedgerEntry, error) {
	var model LedgerModel
	err := r.db.WithContext(ctx).
		Where("room_type_id = ? AND date = ?", roomTypeID, date.Format(domain.DateKey)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrLedgerNotFound, "room type %s on %s", roomTypeID, date.Format(domain.DateKey))
		}
		return nil, err
	}
	return toDomainLedger(&model), nil
}

func (r *GormLedgerRepository) FindDates(ctx context.Context, roomTypeID string, dates []time.Time) ([]*domain.InventoryLedgerEntry, error) {
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, d.Format(domain.DateKey))
	}
	var models []LedgerModel
	err := r.db.WithContext(ctx).
		Where("room_type_id = ? AND date IN ?", roomTypeID, keys).
		Order("date").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*domain.InventoryLedgerEntry, 0, len(models))
	for i := range models {
		entries = append(entries, toDomainLedger(&models[i]))
	}
	return entries, nil
}

// SaveAll 在一个事务内保存一批台账变更。调用方必须持有对应日期的分布式锁，
// 这里只负责原子落库，并顺手推进版本号让乐观读者感知到变化。
func (r *GormLedgerRepository) SaveAll(ctx context.Context, entries []*domain.InventoryLedgerEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			res := tx.Model(&LedgerModel{}).
				Where("room_type_id = ? AND date = ?", e.RoomTypeID, e.Date.Format(domain.DateKey)).
				Updates(map[string]interface{}{
					"total_quantity":     e.TotalQuantity,
					"locked_quantity":    e.LockedQuantity,
					"available_quantity": e.AvailableQuantity,
					"stock_sold":         e.StockSold,
					"is_closed":          e.IsClosed,
					"version":            gorm.Expr("version + 1"),
					"updated_at":         e.UpdatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// 首次出现的 (房型,日期)，建档
				if err := tx.Create(toLedgerModel(e)).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DecrementStock 自营库存的乐观扣减。版本不匹配时影响行数为 0，
// 由调用方重读重试；不在这里循环。
func (r *GormLedgerRepository) DecrementStock(ctx context.Context, roomTypeID string, date time.Time, qty int, version int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&LedgerModel{}).
		Where("room_type_id = ? AND date = ? AND version = ?", roomTypeID, date.Format(domain.DateKey), version).
		Updates(map[string]interface{}{
			"stock_sold":         gorm.Expr("stock_sold + ?", qty),
			"available_quantity": gorm.Expr("available_quantity - ?", qty),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GormExceptionRepository 是 domain.ExceptionRepository 的 GORM 实现
type GormExceptionRepository struct {
	db *gorm.DB
}

// NewGormExceptionRepository 创建异常单仓储实例
func NewGormExceptionRepository(db *gorm.DB) *GormExceptionRepository {
	return &GormExceptionRepository{db: db}
}

func (r *GormExceptionRepository) Save(ctx context.Context, record *domain.ExceptionRecord) error {
	return r.db.WithContext(ctx).Create(toExceptionModel(record)).Error
}

func (r *GormExceptionRepository) FindByID(ctx context.Context, id string) (*domain.ExceptionRecord, error) {
	var model ExceptionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrExceptionNotFound, "exception %s", id)
		}
		return nil, err
	}
	return toDomainException(&model), nil
}

func (r *GormExceptionRepository) Update(ctx context.Context, record *domain.ExceptionRecord) error {
	model := toExceptionModel(record)
	return r.db.WithContext(ctx).Model(&ExceptionModel{}).Where("id = ?", record.ID).Updates(map[string]interface{}{
		"status":      model.Status,
		"handler":     model.Handler,
		"resolved_at": model.ResolvedAt,
		"remark":      model.Remark,
		"updated_at":  model.UpdatedAt,
	}).Error
}

func (r *GormExceptionRepository) ListByStatus(ctx context.Context, status domain.ExceptionStatus, limit int) ([]*domain.ExceptionRecord, error) {
	var models []ExceptionModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]*domain.ExceptionRecord, 0, len(models))
	for i := range models {
		records = append(records, toDomainException(&models[i]))
	}
	return records, nil
}
