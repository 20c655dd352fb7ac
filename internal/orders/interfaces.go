package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/buildrelay/procurement-backend/pkg/db/models"
)

// Repository defines persistence operations for material order aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMaterialOrder(ctx context.Context, order *models.MaterialOrder) (*models.MaterialOrder, error)
	FindMaterialOrder(ctx context.Context, id uuid.UUID) (*models.MaterialOrder, error)
	FindPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	// UpdateMaterialOrder applies updates only when the stored version still
	// matches expectedVersion, bumping the version on success.
	UpdateMaterialOrder(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) error
	UpdatePurchaseOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// FindStuckPaidOrders lists orders whose payment captured but whose
	// dispatch never ran, older than the cutoff.
	FindStuckPaidOrders(ctx context.Context, cutoff time.Time) ([]models.MaterialOrder, error)
}
