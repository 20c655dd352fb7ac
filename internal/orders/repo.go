package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/buildrelay/procurement-backend/pkg/db"
	"github.com/buildrelay/procurement-backend/pkg/db/models"
	"github.com/buildrelay/procurement-backend/pkg/enums"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateMaterialOrder(ctx context.Context, order *models.MaterialOrder) (*models.MaterialOrder, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if pkgdb.IsUniqueViolation(err, "ux_purchase_orders_order_retailer") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "duplicate purchase order for retailer")
		}
		return nil, err
	}
	return order, nil
}

func (r *repository) FindMaterialOrder(ctx context.Context, id uuid.UUID) (*models.MaterialOrder, error) {
	var order models.MaterialOrder
	err := r.db.WithContext(ctx).
		Preload("PurchaseOrders.Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) UpdateMaterialOrder(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) error {
	payload := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		payload[k] = v
	}
	payload["version"] = expectedVersion + 1

	result := r.db.WithContext(ctx).
		Model(&models.MaterialOrder{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(payload)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "material order was modified concurrently")
	}
	return nil
}

func (r *repository) UpdatePurchaseOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindStuckPaidOrders(ctx context.Context, cutoff time.Time) ([]models.MaterialOrder, error) {
	var stuck []models.MaterialOrder
	err := r.db.WithContext(ctx).
		Preload("PurchaseOrders.Items").
		Where("status = ? AND updated_at < ?", enums.MaterialOrderStatusPaid, cutoff).
		Order("updated_at ASC").
		Find(&stuck).Error
	if err != nil {
		return nil, err
	}
	return stuck, nil
}
