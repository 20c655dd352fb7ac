// Package retailers defines the capability contract each retail partner
// integration must satisfy, and the registry the dispatcher resolves
// partners from. Adding a retailer means adding a registry entry, not
// touching the dispatcher.
package retailers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buildrelay/procurement-backend/pkg/types"
)

// Credentials are the supplier-side identifiers used when purchasing. They
// are opaque to this system and carried through to the retailer verbatim.
type Credentials struct {
	TaxExemptCertificate string
	ProAccountID         string
}

// SubmitItem is one line sent to a retailer's ordering API.
type SubmitItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// SubmitRequest is a fully priced purchase order ready for submission.
type SubmitRequest struct {
	PurchaseOrderID uuid.UUID
	OrderID         uuid.UUID
	Items           []SubmitItem
	TotalCents      int64
	DeliveryAddress types.Address
	Credentials     Credentials
}

// SubmitResult carries the retailer's acknowledgement of a placed order.
type SubmitResult struct {
	OrderNumber       string
	TrackingNumber    string
	EstimatedDelivery *time.Time
}

// Retailer is one partner integration.
type Retailer interface {
	ID() string
	Name() string
	DiscountRate() decimal.Decimal
	Credentials() Credentials
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
}
