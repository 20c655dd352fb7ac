package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem captures the priced snapshot of one line within a purchase order.
// Client-side and purchase-side amounts are both retained for savings
// reporting.
type OrderItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseOrderID uuid.UUID `gorm:"column:purchase_order_id;type:uuid;not null;index"`

	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	Qty       int       `gorm:"column:qty;not null"`

	ClientUnitPriceCents   int64 `gorm:"column:client_unit_price_cents;not null"`
	ClientTotalCents       int64 `gorm:"column:client_total_cents;not null"`
	PurchaseUnitPriceCents int64 `gorm:"column:purchase_unit_price_cents;not null"`
	PurchaseTotalCents     int64 `gorm:"column:purchase_total_cents;not null"`

	TaxSavingsCents      int64 `gorm:"column:tax_savings_cents;not null;default:0"`
	DiscountSavingsCents int64 `gorm:"column:discount_savings_cents;not null;default:0"`
	TotalSavingsCents    int64 `gorm:"column:total_savings_cents;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
