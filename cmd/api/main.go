package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/buildrelay/procurement-backend/api/routes"
	"github.com/buildrelay/procurement-backend/internal/dispatch"
	"github.com/buildrelay/procurement-backend/internal/orders"
	"github.com/buildrelay/procurement-backend/internal/payments"
	"github.com/buildrelay/procurement-backend/internal/pricing"
	"github.com/buildrelay/procurement-backend/internal/purchasing"
	"github.com/buildrelay/procurement-backend/internal/retailers"
	"github.com/buildrelay/procurement-backend/pkg/config"
	"github.com/buildrelay/procurement-backend/pkg/db"
	"github.com/buildrelay/procurement-backend/pkg/logger"
	"github.com/buildrelay/procurement-backend/pkg/metrics"
	"github.com/buildrelay/procurement-backend/pkg/migrate"
	"github.com/buildrelay/procurement-backend/pkg/outbox"
	"github.com/buildrelay/procurement-backend/pkg/redis"
)

const shutdownGracePeriod = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := retailers.NewRegistryFromConfig(cfg.Retailers, http.DefaultClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build retailer registry", err)
		os.Exit(1)
	}

	metricsRegistry := prometheus.NewRegistry()
	dispatchMetrics := metrics.NewDispatchMetrics(metricsRegistry)

	repo := orders.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	calculator := pricing.NewCalculator(cfg.Pricing.DefaultDiscountRate)
	builder := purchasing.NewBuilder(registry)

	ordersSvc, err := orders.NewService(repo, dbClient, outboxSvc, calculator, builder, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	gateway, err := payments.NewSquareGateway(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square gateway", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(repo, dbClient, outboxSvc, gateway, redisClient, dispatchMetrics, cfg.Dispatch.PaymentLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	dispatcher, err := dispatch.New(repo, dbClient, outboxSvc, registry, dispatchMetrics, logg, cfg.Retailers.SubmitTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, paymentsSvc, dispatcher, metricsRegistry),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}
