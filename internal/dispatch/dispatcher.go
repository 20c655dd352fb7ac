// Package dispatch submits a paid order's purchase orders to their
// retailers. Submission is per retailer and failure tolerant: one
// retailer's outage never blocks the others, and the aggregate converges
// to ordered either way, with failures surfaced on the child records.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/buildrelay/procurement-backend/internal/orders"
	"github.com/buildrelay/procurement-backend/internal/retailers"
	"github.com/buildrelay/procurement-backend/pkg/db/models"
	"github.com/buildrelay/procurement-backend/pkg/enums"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/logger"
	"github.com/buildrelay/procurement-backend/pkg/metrics"
	"github.com/buildrelay/procurement-backend/pkg/outbox"
	"github.com/buildrelay/procurement-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Result summarizes one dispatch pass over an order.
type Result struct {
	OrderID   uuid.UUID
	Submitted []string
	Failed    []string
	// FailureErr rolls up the per-retailer submission errors. It is
	// informational; partial failure is a valid outcome, not an error.
	FailureErr error
}

// FullySubmitted reports whether every sub-order reached its retailer.
func (r *Result) FullySubmitted() bool {
	return len(r.Failed) == 0
}

// Dispatcher drives the paid -> purchasing -> ordered convergence.
type Dispatcher struct {
	repo          orders.Repository
	tx            txRunner
	outbox        outboxPublisher
	registry      *retailers.Registry
	metrics       *metrics.DispatchMetrics
	logg          *logger.Logger
	submitTimeout time.Duration
	now           func() time.Time
}

// New wires a dispatcher. submitTimeout bounds each retailer round-trip so
// one unresponsive retailer cannot stall the rest.
func New(repo orders.Repository, tx txRunner, publisher outboxPublisher, registry *retailers.Registry, m *metrics.DispatchMetrics, logg *logger.Logger, submitTimeout time.Duration) (*Dispatcher, error) {
	if repo == nil || tx == nil || publisher == nil {
		return nil, fmt.Errorf("repository, transaction runner, and outbox publisher required")
	}
	if registry == nil {
		return nil, fmt.Errorf("retailer registry required")
	}
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	return &Dispatcher{
		repo:          repo,
		tx:            tx,
		outbox:        publisher,
		registry:      registry,
		metrics:       m,
		logg:          logg,
		submitTimeout: submitTimeout,
		now:           time.Now,
	}, nil
}

type submissionOutcome struct {
	purchaseOrderID uuid.UUID
	retailer        string
	err             error
}

// Dispatch submits every draft purchase order of a paid order. The order is
// moved to purchasing before the first submission so a crash mid-dispatch is
// observable and resumable; an order already in purchasing is resumed.
func (d *Dispatcher) Dispatch(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := d.repo.FindMaterialOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material order")
	}

	version := order.Version
	switch order.Status {
	case enums.MaterialOrderStatusPaid:
		if err := d.repo.UpdateMaterialOrder(ctx, order.ID, version, map[string]any{
			"status": enums.MaterialOrderStatusPurchasing,
		}); err != nil {
			return nil, err
		}
		version++
	case enums.MaterialOrderStatusPurchasing:
		// Resuming after a crash; drafts below are re-attempted.
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot dispatch order in %s status", order.Status))
	}

	outcomes := d.submitAll(ctx, order)

	result := &Result{OrderID: order.ID}
	var failureNotes []string
	for _, outcome := range outcomes {
		if outcome.err == nil {
			result.Submitted = append(result.Submitted, outcome.retailer)
			continue
		}
		result.Failed = append(result.Failed, outcome.retailer)
		result.FailureErr = multierr.Append(result.FailureErr,
			fmt.Errorf("%s: %w", outcome.retailer, outcome.err))
		failureNotes = append(failureNotes,
			fmt.Sprintf("retailer %s submission failed: %v", outcome.retailer, outcome.err))
	}

	// The aggregate converges to ordered regardless of individual failures;
	// partially fulfilled orders are distinguished by their child statuses.
	err = d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := d.repo.WithTx(tx)
		updates := map[string]any{"status": enums.MaterialOrderStatusOrdered}
		if len(failureNotes) > 0 {
			updates["notes"] = appendNotes(order.Notes, d.now(), failureNotes)
		}
		if err := repo.UpdateMaterialOrder(ctx, order.ID, version, updates); err != nil {
			return err
		}
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDispatched,
			AggregateType: enums.AggregateMaterialOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderDispatched{
				OrderID:        order.ID,
				SubmittedCount: len(result.Submitted),
				FailedCount:    len(result.Failed),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if d.logg != nil {
		fields := map[string]any{
			"order_id":  order.ID.String(),
			"submitted": len(result.Submitted),
			"failed":    len(result.Failed),
		}
		d.logg.Info(d.logg.WithFields(ctx, fields), "dispatch pass completed")
	}
	return result, nil
}

// submitAll runs one submission per draft purchase order concurrently.
// Errors are collected, never propagated; the group always waits for all.
func (d *Dispatcher) submitAll(ctx context.Context, order *models.MaterialOrder) []submissionOutcome {
	var mu sync.Mutex
	var outcomes []submissionOutcome

	g, gctx := errgroup.WithContext(ctx)
	for i := range order.PurchaseOrders {
		po := order.PurchaseOrders[i]
		if po.Status != enums.PurchaseOrderStatusDraft {
			continue
		}
		g.Go(func() error {
			err := d.submitOne(gctx, order, &po)
			mu.Lock()
			outcomes = append(outcomes, submissionOutcome{
				purchaseOrderID: po.ID,
				retailer:        po.Retailer,
				err:             err,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// submitOne performs a single retailer round-trip and persists the outcome
// on the sub-order. A failed sub-order stays in draft for later resubmission.
func (d *Dispatcher) submitOne(ctx context.Context, order *models.MaterialOrder, po *models.PurchaseOrder) error {
	partner, err := d.registry.Get(po.Retailer)
	if err != nil {
		return d.recordFailure(ctx, order, po, err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, d.submitTimeout)
	defer cancel()

	started := d.now()
	result, err := partner.Submit(submitCtx, submitRequestFor(order, po))
	d.metrics.ObserveSubmission(po.Retailer, d.now().Sub(started))
	if err != nil {
		d.metrics.IncFailed(po.Retailer)
		return d.recordFailure(ctx, order, po, err)
	}

	err = d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := d.repo.WithTx(tx)
		updates := map[string]any{
			"status":         enums.PurchaseOrderStatusSubmitted,
			"order_number":   result.OrderNumber,
			"failure_reason": nil,
		}
		if result.TrackingNumber != "" {
			updates["tracking_number"] = result.TrackingNumber
		}
		if result.EstimatedDelivery != nil {
			updates["estimated_delivery"] = *result.EstimatedDelivery
		}
		if err := repo.UpdatePurchaseOrder(ctx, po.ID, updates); err != nil {
			return err
		}
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderSubmitted,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   po.ID,
			Data: payloads.PurchaseOrderSubmitted{
				OrderID:         order.ID,
				PurchaseOrderID: po.ID,
				Retailer:        po.Retailer,
				OrderNumber:     result.OrderNumber,
			},
		})
	})
	if err != nil {
		return err
	}

	d.metrics.IncSubmitted(po.Retailer)
	return nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, order *models.MaterialOrder, po *models.PurchaseOrder, cause error) error {
	persistErr := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := d.repo.WithTx(tx)
		if err := repo.UpdatePurchaseOrder(ctx, po.ID, map[string]any{
			"failure_reason": cause.Error(),
		}); err != nil {
			return err
		}
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderFailed,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   po.ID,
			Data: payloads.PurchaseOrderFailed{
				OrderID:         order.ID,
				PurchaseOrderID: po.ID,
				Retailer:        po.Retailer,
				Reason:          cause.Error(),
			},
		})
	})
	if persistErr != nil {
		return multierr.Append(cause, persistErr)
	}
	if d.logg != nil {
		ctx = d.logg.WithRetailer(d.logg.WithOrderID(ctx, order.ID.String()), po.Retailer)
		d.logg.Warn(ctx, "retailer submission failed; sub-order left in draft")
	}
	return cause
}

// Resubmit retries a single failed sub-order without disturbing its
// siblings. The parent must already have converged to ordered.
func (d *Dispatcher) Resubmit(ctx context.Context, purchaseOrderID uuid.UUID) (*models.PurchaseOrder, error) {
	if purchaseOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase order id required")
	}

	po, err := d.repo.FindPurchaseOrder(ctx, purchaseOrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order")
	}
	if po.Status != enums.PurchaseOrderStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot resubmit purchase order in %s status", po.Status))
	}

	order, err := d.repo.FindMaterialOrder(ctx, po.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent order")
	}
	if order.Status != enums.MaterialOrderStatusOrdered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot resubmit while parent order is %s", order.Status))
	}

	if err := d.submitOne(ctx, order, po); err != nil {
		return nil, err
	}
	return d.repo.FindPurchaseOrder(ctx, purchaseOrderID)
}

func submitRequestFor(order *models.MaterialOrder, po *models.PurchaseOrder) retailers.SubmitRequest {
	items := make([]retailers.SubmitItem, 0, len(po.Items))
	for _, item := range po.Items {
		items = append(items, retailers.SubmitItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Qty,
			UnitPriceCents: item.PurchaseUnitPriceCents,
		})
	}

	creds := retailers.Credentials{TaxExemptCertificate: po.TaxExemptCertificate}
	if po.ProAccountID != nil {
		creds.ProAccountID = *po.ProAccountID
	}

	return retailers.SubmitRequest{
		PurchaseOrderID: po.ID,
		OrderID:         order.ID,
		Items:           items,
		TotalCents:      po.TotalCents,
		DeliveryAddress: order.DeliveryAddress,
		Credentials:     creds,
	}
}

func appendNotes(existing *string, at time.Time, notes []string) string {
	lines := make([]string, 0, len(notes))
	stamp := at.UTC().Format(time.RFC3339)
	for _, note := range notes {
		lines = append(lines, fmt.Sprintf("[%s] %s", stamp, note))
	}
	block := strings.Join(lines, "\n")
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return block
	}
	return *existing + "\n" + block
}
