package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/buildrelay/procurement-backend/pkg/enums"
)

// PurchaseOrder is the retailer-scoped sub-order within a material order.
type PurchaseOrder struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`

	Retailer string `gorm:"column:retailer;not null"`

	SubtotalCents int64 `gorm:"column:subtotal_cents;not null"`
	TaxCents      int64 `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents int64 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int64 `gorm:"column:total_cents;not null"`

	Status enums.PurchaseOrderStatus `gorm:"column:status;type:purchase_order_status;not null;default:'draft'"`

	// Supplier credentials carried for submission; issued elsewhere.
	TaxExemptCertificate string  `gorm:"column:tax_exempt_certificate;not null"`
	ProAccountID         *string `gorm:"column:pro_account_id"`

	OrderNumber       *string    `gorm:"column:order_number"`
	TrackingNumber    *string    `gorm:"column:tracking_number"`
	EstimatedDelivery *time.Time `gorm:"column:estimated_delivery"`
	FailureReason     *string    `gorm:"column:failure_reason"`

	Items []OrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
