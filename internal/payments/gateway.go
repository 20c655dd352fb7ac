// Package payments captures client payment for a material order and gates
// the pending_payment to paid transition on the result.
package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/buildrelay/procurement-backend/pkg/enums"
)

// CaptureInput describes one capture attempt. The idempotency key is derived
// from the order id so a retried attempt can never double-charge.
type CaptureInput struct {
	OrderID        uuid.UUID
	AmountCents    int64
	Currency       enums.Currency
	SourceID       string
	IdempotencyKey string
}

// CaptureResult carries the processor-assigned transaction identifier.
type CaptureResult struct {
	TransactionID string
}

// Gateway is the payment processor boundary. Failures are classified via
// error codes: PAYMENT_DECLINED is terminal, DEPENDENCY_ERROR is retryable
// with the same idempotency key.
type Gateway interface {
	Capture(ctx context.Context, input CaptureInput) (*CaptureResult, error)
}
