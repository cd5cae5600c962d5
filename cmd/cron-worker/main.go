package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chopmart/chopmart-backend/internal/cron"
	"github.com/chopmart/chopmart-backend/internal/deliveryjobs"
	"github.com/chopmart/chopmart-backend/internal/notifications"
	"github.com/chopmart/chopmart-backend/internal/orders"
	"github.com/chopmart/chopmart-backend/pkg/config"
	"github.com/chopmart/chopmart-backend/pkg/db"
	"github.com/chopmart/chopmart-backend/pkg/instance"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	"github.com/chopmart/chopmart-backend/pkg/metrics"
	"github.com/chopmart/chopmart-backend/pkg/migrate"
	"github.com/chopmart/chopmart-backend/pkg/pubsub"
	"github.com/chopmart/chopmart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	var notifier notifications.Notifier = notifications.NewLogNotifier(logg)
	if cfg.PubSub.Enabled(cfg.GCP) {
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer client.Close()
		notifier, err = notifications.NewPubSubNotifier(client, logg)
		requireResource(ctx, logg, "pubsub notifier", err)
	}

	machine, err := deliveryjobs.NewMachine(cfg.Delivery.QuoteTTL, cfg.Delivery.RiderCutPercent)
	requireResource(ctx, logg, "delivery job machine", err)
	jobsService, err := deliveryjobs.NewService(deliveryjobs.ServiceParams{
		Repo:     deliveryjobs.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Machine:  machine,
		Notifier: notifier,
		Metrics:  metrics.NewDeliveryJobMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
	})
	requireResource(ctx, logg, "delivery job service", err)

	// The sweep never verifies payments, so no gateway is wired here.
	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, nil, logg)
	requireResource(ctx, logg, "orders service", err)

	expiryJob, err := cron.NewQuoteExpiryJob(jobsService, cfg.Cron.ExpiryBatchSize, logg)
	requireResource(ctx, logg, "quote expiry job", err)
	timeoutJob, err := cron.NewPaymentTimeoutJob(ordersService, cfg.Cron.PendingPaymentTTL)
	requireResource(ctx, logg, "payment timeout job", err)
	registry, err := cron.NewRegistry(expiryJob, timeoutJob)
	requireResource(ctx, logg, "cron registry", err)

	lock, err := cron.NewRedisLock(redisClient, redis.LockKey("cron-worker"), cfg.Cron.LockTTL)
	requireResource(ctx, logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
