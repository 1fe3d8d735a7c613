package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/posterloft/posterloft-backend/api/controllers"
	webhookcontrollers "github.com/posterloft/posterloft-backend/api/controllers/webhooks"
	"github.com/posterloft/posterloft-backend/api/middleware"
	checkoutsvc "github.com/posterloft/posterloft-backend/internal/checkout"
	"github.com/posterloft/posterloft-backend/internal/orders"
	"github.com/posterloft/posterloft-backend/internal/payments"
	prodigiwebhook "github.com/posterloft/posterloft-backend/internal/webhooks/prodigi"
	stripewebhook "github.com/posterloft/posterloft-backend/internal/webhooks/stripe"
	"github.com/posterloft/posterloft-backend/pkg/config"
	"github.com/posterloft/posterloft-backend/pkg/db"
	"github.com/posterloft/posterloft-backend/pkg/logger"
	"github.com/posterloft/posterloft-backend/pkg/metrics"
	"github.com/posterloft/posterloft-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	orderMetrics *metrics.OrderMetrics,
	tokenVerifier middleware.TokenVerifier,
	checkoutService checkoutsvc.Service,
	lifecycle orders.Lifecycle,
	paymentGateway *payments.Gateway,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	prodigiWebhookService *prodigiwebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var cachePinger controllers.Pinger
	if redisClient != nil {
		cachePinger = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})

	if cfg.FeatureFlags.Metrics && gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	paymentWebhook := paymentWebhookHandler(paymentGateway, stripeWebhookService, stripeWebhookGuard, orderMetrics, logg)
	fulfillmentWebhook := fulfillmentWebhookHandler(prodigiWebhookService, orderMetrics, logg)

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/payment", paymentWebhook)
		r.Post("/fulfillment", fulfillmentWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", paymentWebhook)
			r.Post("/prodigi", fulfillmentWebhook)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(tokenVerifier, logg))
			r.Post("/checkout/sessions", controllers.CreateCheckoutSession(checkoutService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(tokenVerifier, logg))
		r.Use(middleware.RequireRole(cfg.Auth.AdminRole, logg))
		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/{orderId}/retry-fulfillment", controllers.AdminRetryFulfillment(lifecycle, logg))
		})
	})

	return r
}

// The helpers below keep typed nil pointers out of the controllers' interfaces.

func paymentWebhookHandler(
	gateway *payments.Gateway,
	svc *stripewebhook.Service,
	guard *stripewebhook.IdempotencyGuard,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
) http.HandlerFunc {
	var (
		service  webhookcontrollers.StripeWebhookService
		verifier webhookcontrollers.SignatureVerifier
		events   webhookcontrollers.EventGuard
	)
	if svc != nil {
		service = svc
	}
	if gateway != nil {
		verifier = gateway
	}
	if guard != nil {
		events = guard
	}
	return webhookcontrollers.PaymentWebhook(service, verifier, events, orderMetrics, logg)
}

func fulfillmentWebhookHandler(svc *prodigiwebhook.Service, orderMetrics *metrics.OrderMetrics, logg *logger.Logger) http.HandlerFunc {
	var service webhookcontrollers.FulfillmentWebhookService
	if svc != nil {
		service = svc
	}
	return webhookcontrollers.FulfillmentWebhook(service, orderMetrics, logg)
}
