package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/buildrelay/procurement-backend/internal/dispatch"
	"github.com/buildrelay/procurement-backend/internal/orders"
	"github.com/buildrelay/procurement-backend/pkg/config"
	"github.com/buildrelay/procurement-backend/pkg/db/models"
	"github.com/buildrelay/procurement-backend/pkg/enums"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/logger"
)

type stubDispatcher struct {
	dispatched []uuid.UUID
	err        error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, orderID uuid.UUID) (*dispatch.Result, error) {
	s.dispatched = append(s.dispatched, orderID)
	if s.err != nil {
		return nil, s.err
	}
	return &dispatch.Result{OrderID: orderID}, nil
}

type stubWorkerRepo struct {
	stuck []models.MaterialOrder
}

func (s *stubWorkerRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubWorkerRepo) CreateMaterialOrder(ctx context.Context, order *models.MaterialOrder) (*models.MaterialOrder, error) {
	panic("not implemented")
}

func (s *stubWorkerRepo) FindMaterialOrder(ctx context.Context, id uuid.UUID) (*models.MaterialOrder, error) {
	panic("not implemented")
}

func (s *stubWorkerRepo) FindPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	panic("not implemented")
}

func (s *stubWorkerRepo) UpdateMaterialOrder(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) error {
	panic("not implemented")
}

func (s *stubWorkerRepo) UpdatePurchaseOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	panic("not implemented")
}

func (s *stubWorkerRepo) FindStuckPaidOrders(ctx context.Context, cutoff time.Time) ([]models.MaterialOrder, error) {
	return s.stuck, nil
}

type stubConsumer struct{}

func (stubConsumer) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func workerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Dispatch.SweepInterval = time.Minute
	cfg.Dispatch.SweepCutoff = 2 * time.Minute
	return cfg
}

func newWorker(t *testing.T, repo *stubWorkerRepo, d *stubDispatcher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     workerConfig(),
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Consumer:   stubConsumer{},
		Dispatcher: d,
		Repo:       repo,
	})
	require.NoError(t, err)
	return svc
}

func TestSweepDispatchesStuckOrders(t *testing.T) {
	stuck := []models.MaterialOrder{
		{ID: uuid.New(), Status: enums.MaterialOrderStatusPaid},
		{ID: uuid.New(), Status: enums.MaterialOrderStatusPaid},
	}
	repo := &stubWorkerRepo{stuck: stuck}
	d := &stubDispatcher{}
	svc := newWorker(t, repo, d)

	svc.sweepStuckOrders(context.Background())

	require.Len(t, d.dispatched, 2)
	assert.Equal(t, stuck[0].ID, d.dispatched[0])
	assert.Equal(t, stuck[1].ID, d.dispatched[1])
}

func TestSweepNothingStuck(t *testing.T) {
	d := &stubDispatcher{}
	svc := newWorker(t, &stubWorkerRepo{}, d)

	svc.sweepStuckOrders(context.Background())

	assert.Empty(t, d.dispatched)
}

func TestSweepToleratesConflicts(t *testing.T) {
	stuck := []models.MaterialOrder{{ID: uuid.New(), Status: enums.MaterialOrderStatusPaid}}
	repo := &stubWorkerRepo{stuck: stuck}
	d := &stubDispatcher{err: pkgerrors.New(pkgerrors.CodeStateConflict, "cannot dispatch order in ordered status")}
	svc := newWorker(t, repo, d)

	// Conflicts mean another worker won the race; the sweep must not escalate.
	svc.sweepStuckOrders(context.Background())

	assert.Len(t, d.dispatched, 1)
}
