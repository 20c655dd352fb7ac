package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buildrelay/procurement-backend/internal/dispatch"
	"github.com/buildrelay/procurement-backend/internal/orders"
	"github.com/buildrelay/procurement-backend/pkg/config"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/logger"
)

type consumer interface {
	Run(ctx context.Context) error
}

type dispatchRunner interface {
	Dispatch(ctx context.Context, orderID uuid.UUID) (*dispatch.Result, error)
}

type pinger interface {
	Ping(context.Context) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pinger
	Redis      pinger
	PubSub     pinger
	Consumer   consumer
	Dispatcher dispatchRunner
	Repo       orders.Repository
}

// Service runs the dispatch consumer alongside a sweep that rescues orders
// stuck in paid status (payment captured but the order_paid event lost).
type Service struct {
	cfg        *config.Config
	logg       *logger.Logger
	db         pinger
	redis      pinger
	pubsub     pinger
	consumer   consumer
	dispatcher dispatchRunner
	repo       orders.Repository
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("dispatch consumer is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if params.Repo == nil {
		return nil, errors.New("orders repository is required")
	}

	return &Service{
		cfg:        params.Config,
		logg:       params.Logger,
		db:         params.DB,
		redis:      params.Redis,
		pubsub:     params.PubSub,
		consumer:   params.Consumer,
		dispatcher: params.Dispatcher,
		repo:       params.Repo,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	deps := map[string]pinger{
		"database": s.db,
		"redis":    s.redis,
		"pubsub":   s.pubsub,
	}
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.cfg.Dispatch.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.consumer.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "dispatch consumer stopped unexpectedly", err)
				return err
			}
			return nil
		case <-ticker.C:
			s.sweepStuckOrders(ctx)
		}
	}
}

// sweepStuckOrders re-dispatches orders that stayed in paid status past the
// cutoff. Dispatch takes the version-guarded transition itself, so a sweep
// racing a live consumer loses cleanly with a conflict.
func (s *Service) sweepStuckOrders(ctx context.Context) {
	cutoffWindow := s.cfg.Dispatch.SweepCutoff
	if cutoffWindow <= 0 {
		cutoffWindow = 2 * time.Minute
	}
	cutoff := time.Now().Add(-cutoffWindow)

	stuck, err := s.repo.FindStuckPaidOrders(ctx, cutoff)
	if err != nil {
		s.logg.Error(ctx, "stuck order sweep failed", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	logCtx := s.logg.WithField(ctx, "stuck_count", len(stuck))
	s.logg.Warn(logCtx, "re-dispatching orders stuck in paid status")

	for _, order := range stuck {
		orderCtx := s.logg.WithOrderID(ctx, order.ID.String())
		if _, err := s.dispatcher.Dispatch(ctx, order.ID); err != nil {
			if typed := pkgerrors.As(err); typed != nil &&
				(typed.Code() == pkgerrors.CodeStateConflict || typed.Code() == pkgerrors.CodeConflict) {
				s.logg.Info(orderCtx, "order picked up elsewhere, skipping")
				continue
			}
			s.logg.Error(orderCtx, "sweep dispatch failed", err)
		}
	}
}
