package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buildrelay/procurement-backend/pkg/enums"
	"github.com/buildrelay/procurement-backend/pkg/types"
)

// MaterialOrder is the aggregate record of one client's paid procurement
// request, spanning one or more retailers. Pricing is immutable after
// creation; only status, payment, and procurement-populated fields change.
type MaterialOrder struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EstimateID uuid.UUID `gorm:"column:estimate_id;type:uuid;not null"`
	ProjectID  uuid.UUID `gorm:"column:project_id;type:uuid;not null"`

	Currency enums.Currency  `gorm:"column:currency;type:text;not null;default:'USD'"`
	TaxRate  decimal.Decimal `gorm:"column:tax_rate;type:numeric(6,4);not null"`

	ClientTotalCents      int64 `gorm:"column:client_total_cents;not null"`
	ClientTaxCents        int64 `gorm:"column:client_tax_cents;not null"`
	ClientGrandTotalCents int64 `gorm:"column:client_grand_total_cents;not null"`

	PurchaseCostCents     int64  `gorm:"column:purchase_cost_cents;not null"`
	TaxSavingsCents       int64  `gorm:"column:tax_savings_cents;not null;default:0"`
	DiscountSavingsCents  int64  `gorm:"column:discount_savings_cents;not null;default:0"`
	EstimatedSavingsCents int64  `gorm:"column:estimated_savings_cents;not null;default:0"`
	ActualSavingsCents    *int64 `gorm:"column:actual_savings_cents"`

	Status        enums.MaterialOrderStatus `gorm:"column:status;type:material_order_status;not null;default:'pending_payment'"`
	PaymentStatus enums.PaymentStatus       `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`

	PaymentTransactionID *string `gorm:"column:payment_transaction_id"`
	RefundDueCents       *int64  `gorm:"column:refund_due_cents"`

	DeliveryAddress       types.Address `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	RequestedDeliveryDate *time.Time    `gorm:"column:requested_delivery_date"`
	ActualDeliveryDate    *time.Time    `gorm:"column:actual_delivery_date"`

	Notes *string `gorm:"column:notes"`

	// Version guards concurrent status/payment updates (optimistic lock).
	Version int `gorm:"column:version;not null;default:1"`

	PurchaseOrders []PurchaseOrder `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table to material_orders.
func (MaterialOrder) TableName() string {
	return "material_orders"
}
