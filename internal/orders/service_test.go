package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/buildrelay/procurement-backend/internal/pricing"
	"github.com/buildrelay/procurement-backend/internal/purchasing"
	"github.com/buildrelay/procurement-backend/internal/retailers"
	"github.com/buildrelay/procurement-backend/pkg/config"
	"github.com/buildrelay/procurement-backend/pkg/db/models"
	"github.com/buildrelay/procurement-backend/pkg/enums"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/outbox"
	"github.com/buildrelay/procurement-backend/pkg/types"
)

type stubOrdersRepo struct {
	order               *models.MaterialOrder
	purchaseOrder       *models.PurchaseOrder
	materialUpdates     map[string]any
	updatedVersion      int
	createMaterialOrder func(ctx context.Context, order *models.MaterialOrder) (*models.MaterialOrder, error)
	updateMaterialOrder func(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) error
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) CreateMaterialOrder(ctx context.Context, order *models.MaterialOrder) (*models.MaterialOrder, error) {
	if s.createMaterialOrder != nil {
		return s.createMaterialOrder(ctx, order)
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.order = order
	return order, nil
}

func (s *stubOrdersRepo) FindMaterialOrder(ctx context.Context, id uuid.UUID) (*models.MaterialOrder, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	if s.purchaseOrder == nil || s.purchaseOrder.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.purchaseOrder, nil
}

func (s *stubOrdersRepo) UpdateMaterialOrder(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) error {
	if s.updateMaterialOrder != nil {
		return s.updateMaterialOrder(ctx, id, expectedVersion, updates)
	}
	s.materialUpdates = updates
	s.updatedVersion = expectedVersion
	return nil
}

func (s *stubOrdersRepo) UpdatePurchaseOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *stubOrdersRepo) FindStuckPaidOrders(ctx context.Context, cutoff time.Time) ([]models.MaterialOrder, error) {
	return nil, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func serviceRegistry(t *testing.T) *retailers.Registry {
	t.Helper()
	reg, err := retailers.NewRegistryFromConfig(config.RetailerConfig{
		Partners: []config.RetailerPartner{
			{ID: "R1", Name: "Retailer One", BaseURL: "http://r1.test", DiscountRate: 0.15, TaxExemptCertificate: "CERT-R1"},
			{ID: "R2", Name: "Retailer Two", BaseURL: "http://r2.test", DiscountRate: 0.15, TaxExemptCertificate: "CERT-R2"},
		},
	}, nil)
	require.NoError(t, err)
	return reg
}

func newTestService(t *testing.T, repo *stubOrdersRepo, publisher *stubOutbox) Service {
	t.Helper()
	reg := serviceRegistry(t)
	svc, err := NewService(repo, stubTxRunner{}, publisher, pricing.NewCalculator(0.15), purchasing.NewBuilder(reg), reg)
	require.NoError(t, err)
	return svc
}

func validCreateInput() CreateOrderInput {
	return CreateOrderInput{
		EstimateID: uuid.New(),
		ProjectID:  uuid.New(),
		TaxRate:    decimal.RequireFromString("0.08"),
		Items: []ItemInput{
			{ProductID: uuid.New(), Name: "2x4 stud", Retailer: "R1", Quantity: 5, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: uuid.New(), Name: "drywall sheet", Retailer: "R2", Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")},
		},
		DeliveryAddress: types.Address{Line1: "500 Jobsite Rd", City: "Austin", State: "TX", PostalCode: "78701"},
	}
}

func TestCreatePersistsPricedAggregate(t *testing.T) {
	repo := &stubOrdersRepo{}
	publisher := &stubOutbox{}
	svc := newTestService(t, repo, publisher)

	order, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	assert.Equal(t, enums.MaterialOrderStatusPendingPayment, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, int64(9000), order.ClientTotalCents)
	assert.Equal(t, int64(720), order.ClientTaxCents)
	assert.Equal(t, int64(9720), order.ClientGrandTotalCents)
	assert.Equal(t, int64(7650), order.PurchaseCostCents)
	assert.Equal(t, int64(1350), order.DiscountSavingsCents)
	assert.Equal(t, int64(720), order.TaxSavingsCents)
	assert.Equal(t, int64(2070), order.EstimatedSavingsCents)
	assert.Equal(t, 1, order.Version)
	require.Len(t, order.PurchaseOrders, 2)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, enums.EventOrderCreated, publisher.events[0].EventType)
}

func TestCreateValidation(t *testing.T) {
	repo := &stubOrdersRepo{}
	svc := newTestService(t, repo, &stubOutbox{})

	t.Run("no items", func(t *testing.T) {
		input := validCreateInput()
		input.Items = nil
		_, err := svc.Create(context.Background(), input)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})

	t.Run("missing address", func(t *testing.T) {
		input := validCreateInput()
		input.DeliveryAddress = types.Address{}
		_, err := svc.Create(context.Background(), input)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})

	t.Run("unknown retailer", func(t *testing.T) {
		input := validCreateInput()
		input.Items[0].Retailer = "ghost"
		_, err := svc.Create(context.Background(), input)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})

	t.Run("bad currency", func(t *testing.T) {
		input := validCreateInput()
		input.Currency = "EUR"
		_, err := svc.Create(context.Background(), input)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})
}

func TestCancelBeforePaymentIsFree(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.MaterialOrder{
		ID:                    orderID,
		Status:                enums.MaterialOrderStatusPendingPayment,
		PaymentStatus:         enums.PaymentStatusPending,
		ClientGrandTotalCents: 9720,
		Version:               1,
	}}
	publisher := &stubOutbox{}
	svc := newTestService(t, repo, publisher)

	cancelled, err := svc.Cancel(context.Background(), CancelOrderInput{OrderID: orderID, Reason: "client changed scope"})
	require.NoError(t, err)

	assert.Equal(t, enums.MaterialOrderStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.RefundDueCents, "no refund before payment capture")
	assert.Equal(t, 1, repo.updatedVersion)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, enums.EventOrderCancelled, publisher.events[0].EventType)
}

func TestCancelAfterPaymentRecordsRefundObligation(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.MaterialOrder{
		ID:                    orderID,
		Status:                enums.MaterialOrderStatusOrdered,
		PaymentStatus:         enums.PaymentStatusCompleted,
		ClientGrandTotalCents: 9720,
		Version:               3,
		PurchaseOrders: []models.PurchaseOrder{
			{Retailer: "R1", Status: enums.PurchaseOrderStatusSubmitted, TotalCents: 4250},
			{Retailer: "R2", Status: enums.PurchaseOrderStatusDraft, TotalCents: 3400},
		},
	}}
	publisher := &stubOutbox{}
	svc := newTestService(t, repo, publisher)

	cancelled, err := svc.Cancel(context.Background(), CancelOrderInput{OrderID: orderID, Reason: "site shut down"})
	require.NoError(t, err)

	require.NotNil(t, cancelled.RefundDueCents)
	// Grand total less the R1 sub-order already committed to its retailer.
	assert.Equal(t, int64(9720-4250), *cancelled.RefundDueCents)

	require.Len(t, publisher.events, 2)
	assert.Equal(t, enums.EventOrderCancelled, publisher.events[0].EventType)
	assert.Equal(t, enums.EventRefundObligation, publisher.events[1].EventType)
}

func TestCancelDuringDispatchIsDeferred(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.MaterialOrder{
		ID:      orderID,
		Status:  enums.MaterialOrderStatusPurchasing,
		Version: 2,
	}}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.Cancel(context.Background(), CancelOrderInput{OrderID: orderID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCancelTerminalOrderFails(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.MaterialOrder{
		ID:      orderID,
		Status:  enums.MaterialOrderStatusDelivered,
		Version: 5,
	}}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.Cancel(context.Background(), CancelOrderInput{OrderID: orderID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestMarkShippedRequiresOrderedStatus(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.MaterialOrder{
		ID:      orderID,
		Status:  enums.MaterialOrderStatusPaid,
		Version: 2,
	}}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.MarkShipped(context.Background(), orderID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestMarkDeliveredSettlesActualSavings(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.MaterialOrder{
		ID:      orderID,
		Status:  enums.MaterialOrderStatusShipped,
		Version: 4,
		PurchaseOrders: []models.PurchaseOrder{
			{
				Retailer: "R1",
				Status:   enums.PurchaseOrderStatusDelivered,
				Items: []models.OrderItem{
					{TotalSavingsCents: 1150},
				},
			},
			{
				Retailer: "R2",
				Status:   enums.PurchaseOrderStatusDraft,
				Items: []models.OrderItem{
					{TotalSavingsCents: 920},
				},
			},
		},
	}}
	svc := newTestService(t, repo, &stubOutbox{})

	delivered, err := svc.MarkDelivered(context.Background(), orderID)
	require.NoError(t, err)

	assert.Equal(t, enums.MaterialOrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.ActualSavingsCents)
	assert.Equal(t, int64(1150), *delivered.ActualSavingsCents, "failed drafts contribute no savings")
	assert.NotNil(t, delivered.ActualDeliveryDate)
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubOutbox{})

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestAppendNote(t *testing.T) {
	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	first := appendNote(nil, at, "cancelled: test")
	assert.Equal(t, "[2026-09-01T12:00:00Z] cancelled: test", first)

	second := appendNote(&first, at, "another")
	assert.Contains(t, second, "cancelled: test\n[2026-09-01T12:00:00Z] another")
}
