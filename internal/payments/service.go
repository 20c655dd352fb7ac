package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/buildrelay/procurement-backend/internal/orders"
	"github.com/buildrelay/procurement-backend/pkg/db/models"
	"github.com/buildrelay/procurement-backend/pkg/enums"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/metrics"
	"github.com/buildrelay/procurement-backend/pkg/outbox"
	"github.com/buildrelay/procurement-backend/pkg/outbox/payloads"
	"github.com/buildrelay/procurement-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PayInput identifies the order and the vaulted payment source to charge.
type PayInput struct {
	OrderID  uuid.UUID
	SourceID string
}

// Service captures payment for pending orders.
type Service interface {
	Pay(ctx context.Context, input PayInput) (*models.MaterialOrder, error)
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	outbox  outboxPublisher
	gateway Gateway
	locker  redis.PaymentLocker
	metrics *metrics.DispatchMetrics
	lockTTL time.Duration
}

// NewService wires the payment service.
func NewService(repo orders.Repository, tx txRunner, publisher outboxPublisher, gateway Gateway, locker redis.PaymentLocker, m *metrics.DispatchMetrics, lockTTL time.Duration) (Service, error) {
	if repo == nil || tx == nil || publisher == nil {
		return nil, fmt.Errorf("repository, transaction runner, and outbox publisher required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if locker == nil {
		return nil, fmt.Errorf("payment locker required")
	}
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		gateway: gateway,
		locker:  locker,
		metrics: m,
		lockTTL: lockTTL,
	}, nil
}

// Pay captures the order's grand total. The idempotency key is the order id,
// so a retried call can never charge the client twice; a call against an
// already-completed payment returns the order unchanged.
func (s *service) Pay(ctx context.Context, input PayInput) (*models.MaterialOrder, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}

	acquired, err := s.locker.AcquirePaymentLock(ctx, input.OrderID.String(), s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payment lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a payment attempt is already in flight")
	}
	defer func() { _ = s.locker.ReleasePaymentLock(ctx, input.OrderID.String()) }()

	order, err := s.repo.FindMaterialOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material order")
	}

	if order.PaymentStatus == enums.PaymentStatusCompleted {
		return order, nil
	}
	if order.Status != enums.MaterialOrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot capture payment for order in %s status", order.Status))
	}

	result, captureErr := s.gateway.Capture(ctx, CaptureInput{
		OrderID:        order.ID,
		AmountCents:    order.ClientGrandTotalCents,
		Currency:       order.Currency,
		SourceID:       input.SourceID,
		IdempotencyKey: order.ID.String(),
	})
	if captureErr != nil {
		s.metrics.IncCapture("failed")
		if recordErr := s.recordFailure(ctx, order, captureErr); recordErr != nil {
			return nil, recordErr
		}
		return nil, captureErr
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{
			"status":                 enums.MaterialOrderStatusPaid,
			"payment_status":         enums.PaymentStatusCompleted,
			"payment_transaction_id": result.TransactionID,
		}
		if err := repo.UpdateMaterialOrder(ctx, order.ID, order.Version, updates); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateMaterialOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaid{
				OrderID:       order.ID,
				TransactionID: result.TransactionID,
				AmountCents:   order.ClientGrandTotalCents,
				Currency:      order.Currency.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCapture("completed")
	order.Status = enums.MaterialOrderStatusPaid
	order.PaymentStatus = enums.PaymentStatusCompleted
	order.PaymentTransactionID = &result.TransactionID
	order.Version++
	return order, nil
}

// recordFailure marks the payment failed and leaves the order in
// pending_payment so the client can retry with the same idempotency key.
func (s *service) recordFailure(ctx context.Context, order *models.MaterialOrder, captureErr error) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{
			"payment_status": enums.PaymentStatusFailed,
		}
		if err := repo.UpdateMaterialOrder(ctx, order.ID, order.Version, updates); err != nil {
			return err
		}
		order.PaymentStatus = enums.PaymentStatusFailed
		order.Version++
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateMaterialOrder,
			AggregateID:   order.ID,
			Data: payloads.PaymentFailed{
				OrderID:   order.ID,
				Reason:    captureErr.Error(),
				Retryable: pkgerrors.Retryable(captureErr),
			},
		})
	})
}
