package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/harvest-fulfillment/api/controllers"
	webhookcontrollers "github.com/angelmondragon/harvest-fulfillment/api/controllers/webhooks"
	"github.com/angelmondragon/harvest-fulfillment/api/middleware"
	"github.com/angelmondragon/harvest-fulfillment/internal/notifications"
	"github.com/angelmondragon/harvest-fulfillment/pkg/config"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

// Services groups the handlers' collaborators. Nil services answer 500 on
// their routes instead of panicking.
type Services struct {
	Payments      webhookcontrollers.PaymentProcessor
	Checkout      controllers.CheckoutService
	Orders        controllers.OrdersService
	Tracking      controllers.TrackingService
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	responseStore middleware.ResponseStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if cfg.Metrics.Enabled && gatherer != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(webhookcontrollers.PaymentWebhookParams{
			Processor:       svc.Payments,
			SignatureHeader: cfg.Webhook.SignatureHeader,
			MaxBodyBytes:    cfg.Webhook.MaxBodyBytes,
			Logger:          logg,
		}))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if responseStore != nil {
			r.Use(middleware.Idempotency(responseStore, logg))
		}

		r.Post("/checkout", controllers.Checkout(svc.Checkout, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", controllers.OrderDetail(svc.Orders, logg))
			r.Put("/status", controllers.OrderUpdateStatus(svc.Orders, logg))
			r.Post("/delivery", controllers.AssignDriver(svc.Tracking, logg))
		})

		r.Route("/deliveries/{deliveryId}", func(r chi.Router) {
			r.Post("/location", controllers.RecordLocation(svc.Tracking, logg))
			r.Get("/locations", controllers.LocationHistory(svc.Tracking, logg))
			r.Put("/status", controllers.UpdateDeliveryStatus(svc.Tracking, logg))
		})

		inboxes := map[string]notifications.Audience{
			"/sellers/{sellerId}/notifications": notifications.AudienceSeller,
			"/buyers/{buyerId}/notifications":   notifications.AudienceBuyer,
		}
		for pattern, audience := range inboxes {
			r.Route(pattern, func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svc.Notifications, audience, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, audience, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, audience, logg))
			})
		}
	})

	return r
}
