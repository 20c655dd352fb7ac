package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buildrelay/procurement-backend/pkg/types"
)

// ItemInput is one line of a requested order, priced at retail.
type ItemInput struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Retailer  string          `json:"retailer" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderInput carries everything needed to price and persist a new
// material order.
type CreateOrderInput struct {
	EstimateID            uuid.UUID       `json:"estimate_id" validate:"required"`
	ProjectID             uuid.UUID       `json:"project_id" validate:"required"`
	TaxRate               decimal.Decimal `json:"tax_rate"`
	Currency              string          `json:"currency"`
	Items                 []ItemInput     `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress       types.Address   `json:"delivery_address"`
	RequestedDeliveryDate *time.Time      `json:"requested_delivery_date,omitempty"`
}

// CancelOrderInput records who asked for the cancellation and why.
type CancelOrderInput struct {
	OrderID uuid.UUID
	Reason  string
}
