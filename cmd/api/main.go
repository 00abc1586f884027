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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/harvest-fulfillment/api/routes"
	"github.com/angelmondragon/harvest-fulfillment/internal/cart"
	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/internal/checkout"
	"github.com/angelmondragon/harvest-fulfillment/internal/fulfillment"
	"github.com/angelmondragon/harvest-fulfillment/internal/inventory"
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
	"github.com/angelmondragon/harvest-fulfillment/pkg/square"
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

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(registry)
	trackingMetrics := metrics.NewTrackingMetrics(registry)

	var paymentLinks checkout.PaymentLinker
	if cfg.Square.Enabled() {
		squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create square client", err)
			os.Exit(1)
		}
		paymentLinks = squareClient
	} else {
		logg.Warn(context.Background(), "square credentials missing; card checkout disabled")
	}

	gormDB := dbClient.DB()
	cartRepo := cart.NewRepository(gormDB)
	resolver := catalog.NewResolver(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	deliveriesRepo := tracking.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Repository: notificationsRepo,
		Timeout:    cfg.Notifications.Timeout,
		SellerLink: cfg.Notifications.SellerLink,
		BuyerLink:  cfg.Notifications.BuyerLink,
	})
	exitOnErr(logg, "notification dispatcher", err)

	notificationsService, err := notifications.NewService(notificationsRepo)
	exitOnErr(logg, "notifications service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Logger:     logg,
		Repo:       ordersRepo,
		Deliveries: deliveriesRepo,
		Cache:      redisClient,
		CacheTTL:   cfg.Tracking.OrderCacheTTL,
	})
	exitOnErr(logg, "orders service", err)

	trackingService, err := tracking.NewService(tracking.ServiceParams{
		Logger:       logg,
		DB:           dbClient,
		Repo:         deliveriesRepo,
		Orders:       ordersService,
		Cache:        ordersService,
		Notifier:     dispatcher,
		Metrics:      trackingMetrics,
		Reconcile:    cfg.FeatureFlags.ReconcileDeliveryStatus,
		HistoryLimit: cfg.Tracking.HistoryLimit,
	})
	exitOnErr(logg, "tracking service", err)

	fulfillmentService, err := fulfillment.NewService(fulfillment.ServiceParams{
		Logger:    logg,
		DB:        dbClient,
		Resolver:  resolver,
		Orders:    ordersRepo,
		Inventory: inventory.NewRepository(),
		Cart:      cartRepo,
		Notifier:  dispatcher,
		Metrics:   fulfillmentMetrics,
		Currency:  cfg.Fulfillment.Currency,
	})
	exitOnErr(logg, "fulfillment service", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Logger:      logg,
		Cart:        cartRepo,
		Resolver:    resolver,
		Fulfillment: fulfillmentService,
		Payments:    paymentLinks,
		Currency:    cfg.Fulfillment.Currency,
	})
	exitOnErr(logg, "checkout service", err)

	var processedStore redis.IdempotencyStore = redisClient
	if cfg.Webhook.UsesDatabaseIdempotency() {
		processedStore = paymentwebhook.NewDBStore(gormDB)
	}
	claims, err := paymentwebhook.NewEventClaims(processedStore, cfg.Webhook.IdempotencyTTL, paymentwebhook.DefaultScope)
	exitOnErr(logg, "payment event claims", err)

	secret := cfg.PaymentSigningSecret()
	if secret == "" {
		logg.Warn(context.Background(), "payment signing secret missing; every webhook will be rejected")
	}
	processor, err := paymentwebhook.NewProcessor(paymentwebhook.ProcessorParams{
		Logger:      logg,
		Claims:      claims,
		Fulfillment: fulfillmentService,
		Cart:        cartRepo,
		Secret:      secret,
		Metrics:     fulfillmentMetrics,
	})
	exitOnErr(logg, "payment webhook processor", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":                  cfg.App.Env,
		"addr":                 addr,
		"idempotency_backend":  cfg.Webhook.IdempotencyBackend,
		"reconcile_deliveries": cfg.FeatureFlags.ReconcileDeliveryStatus,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, redisClient, registry, routes.Services{
			Payments:      processor,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Tracking:      trackingService,
			Notifications: notificationsService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func exitOnErr(logg *logger.Logger, component string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+component, err)
	os.Exit(1)
}
