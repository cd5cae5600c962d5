package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chopmart/chopmart-backend/api/controllers"
	"github.com/chopmart/chopmart-backend/api/middleware"
	"github.com/chopmart/chopmart-backend/internal/checkout"
	"github.com/chopmart/chopmart-backend/internal/deliveryjobs"
	"github.com/chopmart/chopmart-backend/internal/orders"
	"github.com/chopmart/chopmart-backend/internal/pricing"
	"github.com/chopmart/chopmart-backend/pkg/config"
	"github.com/chopmart/chopmart-backend/pkg/db"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	pkgredis "github.com/chopmart/chopmart-backend/pkg/redis"
)

// Store combines the redis surface the router needs: readiness and idempotency.
type Store interface {
	db.Pinger
	pkgredis.IdempotencyStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store Store,
	metricsHandler http.Handler,
	checkoutService checkout.Service,
	ordersService orders.Service,
	jobsService deliveryjobs.Service,
	feeSource pricing.Source,
	feeWriter controllers.FeeWriter,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Actor(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    store,
		}))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	idempotent := middleware.Idempotency(store, logg, middleware.InFlightTTL(cfg.Paystack.Timeout))
	customers := middleware.RequireRole(logg, enums.ActorRoleCustomer, enums.ActorRoleDispatch, enums.ActorRoleAdmin)
	staff := middleware.RequireRole(logg, enums.ActorRoleDispatch, enums.ActorRoleAdmin)
	anyone := middleware.RequireRole(logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/delivery-fees", controllers.DeliveryFeesList(feeSource, logg))
		r.With(staff).Post("/delivery-fees/refresh", controllers.DeliveryFeesRefresh(feeSource, logg))
		r.With(middleware.RequireRole(logg, enums.ActorRoleAdmin), idempotent).
			Put("/admin/delivery-fees", controllers.DeliveryFeesUpsert(feeWriter, feeSource, logg))

		r.Group(func(r chi.Router) {
			r.Use(customers)
			r.Post("/checkout/preview", controllers.CheckoutPreview(checkoutService, logg))
			r.With(idempotent).Post("/checkout/rider-quote", controllers.CheckoutRiderQuote(checkoutService, logg))
			r.With(idempotent).Post("/checkout", controllers.CheckoutSubmit(checkoutService, logg))

			r.Get("/orders", controllers.OrdersList(ordersService, logg))
			r.Get("/orders/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.With(idempotent).Post("/orders/{orderId}/confirm-payment", controllers.OrderConfirmPayment(ordersService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(anyone)
			r.With(middleware.RequireRole(logg, enums.ActorRoleRider, enums.ActorRoleDispatch, enums.ActorRoleAdmin)).
				Get("/delivery-jobs", controllers.DeliveryJobsOpen(jobsService, logg))
			r.Get("/delivery-jobs/{jobId}", controllers.DeliveryJobGet(jobsService, logg))
			r.Get("/delivery-jobs/{jobId}/events", controllers.DeliveryJobEvents(jobsService, logg))
			// Role checks per action live in the state machine.
			r.With(idempotent).Post("/delivery-jobs/{jobId}/{action}", controllers.DeliveryJobTransition(jobsService, logg))
		})
	})

	return r
}
