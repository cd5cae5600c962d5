package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chopmart/chopmart-backend/api/routes"
	"github.com/chopmart/chopmart-backend/internal/cart"
	"github.com/chopmart/chopmart-backend/internal/checkout"
	"github.com/chopmart/chopmart-backend/internal/deliveryjobs"
	"github.com/chopmart/chopmart-backend/internal/notifications"
	"github.com/chopmart/chopmart-backend/internal/orders"
	"github.com/chopmart/chopmart-backend/internal/pricing"
	"github.com/chopmart/chopmart-backend/internal/zones"
	"github.com/chopmart/chopmart-backend/pkg/config"
	"github.com/chopmart/chopmart-backend/pkg/db"
	"github.com/chopmart/chopmart-backend/pkg/instance"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	"github.com/chopmart/chopmart-backend/pkg/metrics"
	"github.com/chopmart/chopmart-backend/pkg/migrate"
	"github.com/chopmart/chopmart-backend/pkg/paystack"
	"github.com/chopmart/chopmart-backend/pkg/pubsub"
	"github.com/chopmart/chopmart-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.Open(ctx, cfg, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	norm, err := zones.Default().WithDefault(cfg.Pricing.DefaultZone)
	requireResource(ctx, logg, "zone normalizer", err)

	feeRepo := pricing.NewRepository(dbClient.DB(), norm)
	feeSource, err := pricing.NewCachedSource(feeRepo, redisClient, redis.FeeTableKey(), cfg.Pricing.FeeTableCacheTTL, logg)
	requireResource(ctx, logg, "fee table cache", err)

	notifier, closeNotifier := buildNotifier(ctx, cfg, logg)
	defer closeNotifier()

	machine, err := deliveryjobs.NewMachine(cfg.Delivery.QuoteTTL, cfg.Delivery.RiderCutPercent)
	requireResource(ctx, logg, "delivery job machine", err)

	jobsService, err := deliveryjobs.NewService(deliveryjobs.ServiceParams{
		Repo:     deliveryjobs.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Machine:  machine,
		Notifier: notifier,
		Metrics:  metrics.NewDeliveryJobMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
		PageSize: cfg.Delivery.OpenJobsPageSize,
	})
	requireResource(ctx, logg, "delivery job service", err)

	paystackClient, err := paystack.NewClient(cfg.Paystack.SecretKey,
		paystack.WithBaseURL(cfg.Paystack.BaseURL),
		paystack.WithCallbackURL(cfg.Paystack.CallbackURL),
		paystack.WithHTTPClient(&http.Client{Timeout: cfg.Paystack.Timeout}),
	)
	requireResource(ctx, logg, "paystack client", err)

	verifier, err := orders.NewPaystackVerifier(paystackClient)
	requireResource(ctx, logg, "paystack verifier", err)
	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, verifier, logg)
	requireResource(ctx, logg, "orders service", err)

	gateway, err := checkout.NewPaystackGateway(paystackClient)
	requireResource(ctx, logg, "paystack gateway", err)
	mode, err := checkout.ParseAdminFeeMode(cfg.Pricing.AdminFeeMode)
	requireResource(ctx, logg, "admin fee mode", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Fees:       feeSource,
		Normalizer: norm,
		Policy: checkout.AdminFeePolicy{
			StandardPercent:  cfg.Pricing.StandardAdminFeePercent,
			TopVendorPercent: cfg.Pricing.TopVendorAdminFeePercent,
			Mode:             mode,
		},
		Selection: cart.SelectionPolicy{ImplicitSingleVendor: cfg.Pricing.ImplicitSingleVendor},
		Orders:    ordersService,
		Payments:  gateway,
		Jobs:      jobsService,
		Logger:    logg,
		Currency:  cfg.Pricing.Currency,
	})
	requireResource(ctx, logg, "checkout service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, promhttp.Handler(),
			checkoutService, ordersService, jobsService, feeSource, feeRepo),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

// buildNotifier publishes to Pub/Sub when a project is configured and logs otherwise.
func buildNotifier(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notifications.Notifier, func()) {
	if !cfg.PubSub.Enabled(cfg.GCP) {
		logg.Warn(ctx, "pubsub not configured; delivery notifications will only be logged")
		return notifications.NewLogNotifier(logg), func() {}
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	notifier, err := notifications.NewPubSubNotifier(client, logg)
	requireResource(ctx, logg, "pubsub notifier", err)
	return notifier, func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
