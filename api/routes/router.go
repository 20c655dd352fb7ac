package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buildrelay/procurement-backend/api/controllers"
	"github.com/buildrelay/procurement-backend/api/middleware"
	"github.com/buildrelay/procurement-backend/internal/dispatch"
	"github.com/buildrelay/procurement-backend/internal/orders"
	"github.com/buildrelay/procurement-backend/internal/payments"
	"github.com/buildrelay/procurement-backend/pkg/config"
	"github.com/buildrelay/procurement-backend/pkg/db"
	"github.com/buildrelay/procurement-backend/pkg/logger"
	"github.com/buildrelay/procurement-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	dispatcher *dispatch.Dispatcher,
	metricsRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersSvc, logg))
			r.Get("/{orderId}", controllers.GetOrder(ordersSvc, logg))
			r.Post("/{orderId}/pay", controllers.PayOrder(paymentsSvc, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersSvc, logg))
			r.Post("/{orderId}/dispatch", controllers.DispatchOrder(dispatcher, logg))
			r.Post("/{orderId}/shipped", controllers.MarkOrderShipped(ordersSvc, logg))
			r.Post("/{orderId}/delivered", controllers.MarkOrderDelivered(ordersSvc, logg))
		})
		r.Route("/purchase-orders", func(r chi.Router) {
			r.Post("/{purchaseOrderId}/resubmit", controllers.ResubmitPurchaseOrder(dispatcher, logg))
		})
	})

	return r
}
