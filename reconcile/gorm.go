package reconcile

import (
	"context"
	"errors"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// GormRepository stores the reconciliation data in MySQL.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository uses db, or the shared connection of config when db is
// nil, so the repository can be built before the database is connected.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// conn scopes queries to ctx. Every query below filters store_id itself, so
// the tenant guard is told to stand aside.
func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	db := r.db
	if db == nil {
		db = config.GetDB()
	}
	return db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
}

func (r *GormRepository) LoadOrders(ctx context.Context, storeId string) ([]models.RemovalOrder, error) {
	var orders []models.RemovalOrder
	err := r.conn(ctx).
		Preload("ReceivedUnits", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("store_id = ?", storeId).
		Order("id").
		Find(&orders).Error
	return orders, err
}

func (r *GormRepository) GetOrder(ctx context.Context, storeId string, id int) (*models.RemovalOrder, error) {
	var order models.RemovalOrder
	err := r.conn(ctx).
		Preload("ReceivedUnits", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("store_id = ? AND id = ?", storeId, id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepository) LoadTracking(ctx context.Context, storeId string) ([]models.TrackingEntry, error) {
	var entries []models.TrackingEntry
	err := r.conn(ctx).Where("store_id = ?", storeId).Order("id").Find(&entries).Error
	return entries, err
}

func (r *GormRepository) ListSpreadsheets(ctx context.Context, storeId string) ([]models.Spreadsheet, error) {
	var sheets []models.Spreadsheet
	err := r.conn(ctx).Where("store_id = ?", storeId).Order("uploaded_at DESC").Find(&sheets).Error
	return sheets, err
}

func (r *GormRepository) ListCompleted(ctx context.Context, storeId string) ([]models.CompletedOrder, error) {
	var records []models.CompletedOrder
	err := r.conn(ctx).Where("store_id = ?", storeId).Order("id").Find(&records).Error
	return records, err
}

func (r *GormRepository) InsertRemovalBatch(ctx context.Context, sheet *models.Spreadsheet, orders []models.RemovalOrder) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sheet).Error; err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).CreateInBatches(&orders, insertBatchSize).Error
	})
}

func (r *GormRepository) InsertTrackingBatch(ctx context.Context, sheet *models.Spreadsheet, entries []models.TrackingEntry, matched []models.RemovalOrder) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sheet).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(&entries, insertBatchSize).Error; err != nil {
				return err
			}
		}
		for i := range matched {
			o := &matched[i]
			res := tx.Model(&models.RemovalOrder{}).
				Where("store_id = ? AND id = ?", o.StoreId, o.ID).
				Updates(map[string]interface{}{
					"tracking_number":  o.TrackingNumber,
					"carrier":          o.Carrier,
					"tracking_numbers": o.TrackingNumbers,
					"carriers":         o.Carriers,
					"shipped_quantity": o.ShippedQuantity,
					"version":          o.Version,
				})
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
}

func processingColumns(o *models.RemovalOrder) map[string]interface{} {
	return map[string]interface{}{
		"actual_return_qty": o.ActualReturnQty,
		"processing_status": o.ProcessingStatus,
		"tracking_number":   o.TrackingNumber,
		"carrier":           o.Carrier,
		"tracking_numbers":  o.TrackingNumbers,
		"carriers":          o.Carriers,
		"notes":             o.Notes,
		"shipped_quantity":  o.ShippedQuantity,
		"version":           o.Version,
		"completed_at":      o.CompletedAt,
		"completed_by":      o.CompletedBy,
	}
}

func (r *GormRepository) SaveOrder(ctx context.Context, order *models.RemovalOrder, expectedVersion int) error {
	db := r.conn(ctx)
	query := db.Model(&models.RemovalOrder{}).Where("store_id = ? AND id = ?", order.StoreId, order.ID)
	if expectedVersion > 0 {
		query = query.Where("version = ?", expectedVersion)
	}
	res := query.Updates(processingColumns(order))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// Nothing updated: either the row is gone, another writer moved the
	// version, or this exact write already landed on an earlier attempt.
	var stored models.RemovalOrder
	err := db.Select("id", "version", "processing_status").
		Where("store_id = ? AND id = ?", order.StoreId, order.ID).
		First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if stored.Version == order.Version && stored.ProcessingStatus == order.ProcessingStatus {
		return nil
	}
	return ErrVersionConflict
}

func (r *GormRepository) ReplaceUnits(ctx context.Context, storeId string, orderId int, units []models.ReceivedUnit) ([]models.ReceivedUnit, error) {
	for i := range units {
		units[i].ID = 0
		units[i].StoreId = storeId
		units[i].RemovalOrderId = orderId
	}
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store_id = ? AND removal_order_id = ?", storeId, orderId).
			Delete(&models.ReceivedUnit{}).Error; err != nil {
			return err
		}
		if len(units) == 0 {
			return nil
		}
		return tx.Create(&units).Error
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (r *GormRepository) UpsertCompletedOrder(ctx context.Context, rec *models.CompletedOrder) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "removal_order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"processing_status", "processing_date", "actual_return_qty",
			"tracking_numbers", "carriers", "notes", "processed_by", "updated_at",
		}),
	}).Create(rec).Error
}

func (r *GormRepository) AppendEvent(ctx context.Context, ev *models.ReconciliationEvent) error {
	return r.conn(ctx).Create(ev).Error
}

func (r *GormRepository) ClearStore(ctx context.Context, storeId string) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.ReceivedUnit{},
			&models.CompletedOrder{},
			&models.RemovalOrder{},
			&models.TrackingEntry{},
			&models.Spreadsheet{},
		} {
			if err := tx.Where("store_id = ?", storeId).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
