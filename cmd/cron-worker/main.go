package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/harvest-fulfillment/internal/cron"
	"github.com/angelmondragon/harvest-fulfillment/internal/notifications"
	"github.com/angelmondragon/harvest-fulfillment/internal/orders"
	"github.com/angelmondragon/harvest-fulfillment/internal/tracking"
	paymentwebhook "github.com/angelmondragon/harvest-fulfillment/internal/webhooks/payment"
	"github.com/angelmondragon/harvest-fulfillment/pkg/config"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/metrics"
	"github.com/angelmondragon/harvest-fulfillment/pkg/migrate"
	"github.com/angelmondragon/harvest-fulfillment/pkg/redis"
)

const reconcileBatchSize = 200

func main() {
	once := flag.Bool("once", false, "run one cycle and exit")
	var jobNames jobList
	flag.Var(&jobNames, "job", "run only this job once (repeatable)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
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

	gormDB := dbClient.DB()
	deliveriesRepo := tracking.NewRepository(gormDB)
	ordersService, err := orders.NewService(orders.ServiceParams{
		Logger:     logg,
		Repo:       orders.NewRepository(gormDB),
		Deliveries: deliveriesRepo,
		Cache:      redisClient,
		CacheTTL:   cfg.Tracking.OrderCacheTTL,
	})
	exitOnErr(logg, "orders service", err)

	// the repair job forward-maps even when request-time reconciliation is off
	trackingService, err := tracking.NewService(tracking.ServiceParams{
		Logger:    logg,
		DB:        dbClient,
		Repo:      deliveriesRepo,
		Orders:    ordersService,
		Cache:     ordersService,
		Reconcile: true,
	})
	exitOnErr(logg, "tracking service", err)

	notificationCleanup, err := cron.NewNotificationCleanupJob(dbClient, notifications.NewRepository(gormDB), cfg.Notifications.RetentionDays)
	exitOnErr(logg, "notification cleanup job", err)
	deliveryReconcile, err := cron.NewDeliveryReconcileJob(trackingService, reconcileBatchSize)
	exitOnErr(logg, "delivery reconcile job", err)

	registry, err := cron.NewRegistry(notificationCleanup, deliveryReconcile)
	exitOnErr(logg, "cron registry", err)
	if cfg.Webhook.UsesDatabaseIdempotency() {
		retention, err := cron.NewProcessedEventRetentionJob(dbClient, paymentwebhook.NewDBStore(gormDB), cfg.Webhook.IdempotencyTTL)
		exitOnErr(logg, "processed event retention job", err)
		exitOnErr(logg, "cron registry", registry.Register(retention))
	}

	holder, _ := os.Hostname()
	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL, holder)
	exitOnErr(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	exitOnErr(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
		"jobs":     len(registry.Jobs()),
	})

	if *once || len(jobNames) > 0 {
		report, err := service.RunCycle(ctx, jobNames...)
		if err == nil {
			err = report.Err()
		}
		if err != nil {
			logg.Error(ctx, "maintenance cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func exitOnErr(logg *logger.Logger, component string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+component, err)
	os.Exit(1)
}

type jobList []string

func (j *jobList) String() string { return strings.Join(*j, ",") }

func (j *jobList) Set(value string) error {
	*j = append(*j, value)
	return nil
}
