package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/buildrelay/procurement-backend/internal/pricing"
	"github.com/buildrelay/procurement-backend/internal/purchasing"
	"github.com/buildrelay/procurement-backend/internal/retailers"
	"github.com/buildrelay/procurement-backend/pkg/db/models"
	"github.com/buildrelay/procurement-backend/pkg/enums"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/outbox"
	"github.com/buildrelay/procurement-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the material order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.MaterialOrder, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error)
	Cancel(ctx context.Context, input CancelOrderInput) (*models.MaterialOrder, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	calc     *pricing.Calculator
	builder  *purchasing.Builder
	registry *retailers.Registry
	now      func() time.Time
}

// NewService builds the order service with its required collaborators.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, calc *pricing.Calculator, builder *purchasing.Builder, registry *retailers.Registry) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if calc == nil || builder == nil || registry == nil {
		return nil, fmt.Errorf("pricing calculator, builder, and retailer registry required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		calc:     calc,
		builder:  builder,
		registry: registry,
		now:      time.Now,
	}, nil
}

// Create prices the items, splits them into per-retailer purchase orders,
// and persists the aggregate atomically in pending_payment.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.MaterialOrder, error) {
	if input.EstimateID == uuid.Nil || input.ProjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "estimate and project ids required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	if err := input.DeliveryAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}

	currency := enums.CurrencyUSD
	if input.Currency != "" {
		parsed, err := enums.ParseCurrency(input.Currency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
		currency = parsed
	}

	items := make([]pricing.Item, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, pricing.Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			Retailer:  item.Retailer,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	quote, err := s.calc.Quote(items, input.TaxRate, s.registry.DiscountRates())
	if err != nil {
		return nil, err
	}

	// A purchase cost above the client grand total means a retailer's
	// discount or exemption is misconfigured. Surface it, never correct it.
	if quote.PurchaseCost.GreaterThan(quote.ClientGrandTotal) {
		return nil, pkgerrors.New(pkgerrors.CodeInternal,
			"purchase cost exceeds client grand total; retailer pricing configuration is suspect")
	}

	purchaseOrders, err := s.builder.Build(quote)
	if err != nil {
		return nil, err
	}

	order := &models.MaterialOrder{
		EstimateID:            input.EstimateID,
		ProjectID:             input.ProjectID,
		Currency:              currency,
		TaxRate:               input.TaxRate,
		ClientTotalCents:      pricing.ToCents(quote.ClientTotal),
		ClientTaxCents:        pricing.ToCents(quote.ClientTaxAmount),
		ClientGrandTotalCents: pricing.ToCents(quote.ClientGrandTotal),
		PurchaseCostCents:     pricing.ToCents(quote.PurchaseCost),
		TaxSavingsCents:       pricing.ToCents(quote.TaxSavings),
		DiscountSavingsCents:  pricing.ToCents(quote.DiscountSavings),
		EstimatedSavingsCents: pricing.ToCents(quote.EstimatedSavings),
		Status:                enums.MaterialOrderStatusPendingPayment,
		PaymentStatus:         enums.PaymentStatusPending,
		DeliveryAddress:       input.DeliveryAddress,
		RequestedDeliveryDate: input.RequestedDeliveryDate,
		Version:               1,
		PurchaseOrders:        purchaseOrders,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateMaterialOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist material order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateMaterialOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreated{
				OrderID:               order.ID,
				EstimateID:            order.EstimateID,
				ProjectID:             order.ProjectID,
				ClientGrandTotalCents: order.ClientGrandTotalCents,
				RetailerCount:         len(order.PurchaseOrders),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindMaterialOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material order")
	}
	return order, nil
}

// Cancel moves an order to cancelled. Cancellation while a dispatch is in
// flight is refused; the caller retries once the dispatch has converged.
// After payment capture a refund obligation is recorded, not executed.
func (s *service) Cancel(ctx context.Context, input CancelOrderInput) (*models.MaterialOrder, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var cancelled *models.MaterialOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindMaterialOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "material order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material order")
		}

		if order.Status == enums.MaterialOrderStatusPurchasing {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				"dispatch in flight; retry cancellation once it completes")
		}
		if !order.Status.CanTransitionTo(enums.MaterialOrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot cancel order in %s status", order.Status))
		}

		updates := map[string]any{
			"status": enums.MaterialOrderStatusCancelled,
		}

		var refundDue *int64
		if order.PaymentStatus == enums.PaymentStatusCompleted {
			amount := order.ClientGrandTotalCents - committedRetailerCostCents(order)
			if amount < 0 {
				amount = 0
			}
			refundDue = &amount
			updates["refund_due_cents"] = amount
		}

		note := fmt.Sprintf("cancelled: %s", strings.TrimSpace(input.Reason))
		if strings.TrimSpace(input.Reason) == "" {
			note = "cancelled"
		}
		updates["notes"] = appendNote(order.Notes, s.now(), note)

		if err := repo.UpdateMaterialOrder(ctx, order.ID, order.Version, updates); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateMaterialOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCancelled{
				OrderID:        order.ID,
				FromStatus:     order.Status,
				RefundDueCents: refundDue,
				Reason:         input.Reason,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		if refundDue != nil {
			refundEvent := outbox.DomainEvent{
				EventType:     enums.EventRefundObligation,
				AggregateType: enums.AggregateMaterialOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderCancelled{
					OrderID:        order.ID,
					FromStatus:     order.Status,
					RefundDueCents: refundDue,
					Reason:         input.Reason,
				},
			}
			if err := s.outbox.Emit(ctx, tx, refundEvent); err != nil {
				return err
			}
		}

		order.Status = enums.MaterialOrderStatusCancelled
		order.RefundDueCents = refundDue
		order.Version++
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// MarkShipped records the external carrier pickup confirmation.
func (s *service) MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error) {
	return s.transition(ctx, orderID, enums.MaterialOrderStatusShipped, nil)
}

// MarkDelivered records delivery and settles actual savings from the
// sub-orders that actually reached a retailer.
func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error) {
	now := s.now()
	return s.transition(ctx, orderID, enums.MaterialOrderStatusDelivered, func(order *models.MaterialOrder, updates map[string]any) {
		actual := settledSavingsCents(order)
		updates["actual_savings_cents"] = actual
		updates["actual_delivery_date"] = now
		order.ActualSavingsCents = &actual
		order.ActualDeliveryDate = &now
	})
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, next enums.MaterialOrderStatus, mutate func(*models.MaterialOrder, map[string]any)) (*models.MaterialOrder, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var updated *models.MaterialOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindMaterialOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "material order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material order")
		}

		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("illegal transition %s -> %s", order.Status, next))
		}

		updates := map[string]any{"status": next}
		if mutate != nil {
			mutate(order, updates)
		}

		if err := repo.UpdateMaterialOrder(ctx, order.ID, order.Version, updates); err != nil {
			return err
		}

		order.Status = next
		order.Version++
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// committedRetailerCostCents sums the purchase cost of sub-orders already
// handed to a retailer. Those amounts are treated as non-refundable.
func committedRetailerCostCents(order *models.MaterialOrder) int64 {
	var committed int64
	for _, po := range order.PurchaseOrders {
		if po.Status.AtLeastSubmitted() {
			committed += po.TotalCents
		}
	}
	return committed
}

// settledSavingsCents totals the savings on items that were actually
// purchased; failed drafts contribute nothing.
func settledSavingsCents(order *models.MaterialOrder) int64 {
	var total int64
	for _, po := range order.PurchaseOrders {
		if !po.Status.AtLeastSubmitted() {
			continue
		}
		for _, item := range po.Items {
			total += item.TotalSavingsCents
		}
	}
	return total
}

// appendNote adds a timestamped system note to the order's audit trail.
func appendNote(existing *string, at time.Time, note string) string {
	line := fmt.Sprintf("[%s] %s", at.UTC().Format(time.RFC3339), note)
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return line
	}
	return *existing + "\n" + line
}
