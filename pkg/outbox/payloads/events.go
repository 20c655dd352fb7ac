package payloads

import (
	"github.com/google/uuid"

	"github.com/buildrelay/procurement-backend/pkg/enums"
)

// OrderCreated is emitted when a material order aggregate is persisted.
type OrderCreated struct {
	OrderID               uuid.UUID `json:"order_id"`
	EstimateID            uuid.UUID `json:"estimate_id"`
	ProjectID             uuid.UUID `json:"project_id"`
	ClientGrandTotalCents int64     `json:"client_grand_total_cents"`
	RetailerCount         int       `json:"retailer_count"`
}

// OrderPaid triggers procurement dispatch in the worker.
type OrderPaid struct {
	OrderID       uuid.UUID `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
}

// OrderDispatched summarizes a completed dispatch pass.
type OrderDispatched struct {
	OrderID        uuid.UUID `json:"order_id"`
	SubmittedCount int       `json:"submitted_count"`
	FailedCount    int       `json:"failed_count"`
}

// OrderCancelled records a cancellation and any refund obligation.
type OrderCancelled struct {
	OrderID        uuid.UUID                 `json:"order_id"`
	FromStatus     enums.MaterialOrderStatus `json:"from_status"`
	RefundDueCents *int64                    `json:"refund_due_cents,omitempty"`
	Reason         string                    `json:"reason,omitempty"`
}

// PaymentFailed records a capture attempt that did not complete.
type PaymentFailed struct {
	OrderID   uuid.UUID `json:"order_id"`
	Reason    string    `json:"reason"`
	Retryable bool      `json:"retryable"`
}

// PurchaseOrderSubmitted records a successful retailer submission.
type PurchaseOrderSubmitted struct {
	OrderID         uuid.UUID `json:"order_id"`
	PurchaseOrderID uuid.UUID `json:"purchase_order_id"`
	Retailer        string    `json:"retailer"`
	OrderNumber     string    `json:"order_number"`
}

// PurchaseOrderFailed records a retailer submission failure left for retry.
type PurchaseOrderFailed struct {
	OrderID         uuid.UUID `json:"order_id"`
	PurchaseOrderID uuid.UUID `json:"purchase_order_id"`
	Retailer        string    `json:"retailer"`
	Reason          string    `json:"reason"`
}
