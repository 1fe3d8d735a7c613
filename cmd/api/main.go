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

	"github.com/posterloft/posterloft-backend/api/routes"
	"github.com/posterloft/posterloft-backend/internal/catalog"
	"github.com/posterloft/posterloft-backend/internal/checkout"
	"github.com/posterloft/posterloft-backend/internal/fulfillment"
	"github.com/posterloft/posterloft-backend/internal/notifications"
	"github.com/posterloft/posterloft-backend/internal/orders"
	"github.com/posterloft/posterloft-backend/internal/payments"
	prodigiwebhook "github.com/posterloft/posterloft-backend/internal/webhooks/prodigi"
	stripewebhook "github.com/posterloft/posterloft-backend/internal/webhooks/stripe"
	"github.com/posterloft/posterloft-backend/pkg/auth"
	"github.com/posterloft/posterloft-backend/pkg/config"
	"github.com/posterloft/posterloft-backend/pkg/db"
	"github.com/posterloft/posterloft-backend/pkg/logger"
	"github.com/posterloft/posterloft-backend/pkg/metrics"
	"github.com/posterloft/posterloft-backend/pkg/migrate"
	"github.com/posterloft/posterloft-backend/pkg/prodigi"
	"github.com/posterloft/posterloft-backend/pkg/redis"
	"github.com/posterloft/posterloft-backend/pkg/sendgrid"
	"github.com/posterloft/posterloft-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(runCtx, cfg.DB, logg)
	requireResource(runCtx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(runCtx, cfg, logg, dbClient); err != nil {
		logg.Error(runCtx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var (
		redisClient *redis.Client
		eventGuard  *stripewebhook.IdempotencyGuard
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(runCtx, cfg.Redis, logg)
		requireResource(runCtx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		eventGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.EventGuardTTL, "stripe-webhook")
		requireResource(runCtx, logg, "stripe event guard", err)
	} else {
		logg.Warn(runCtx, "redis not configured; stripe event guard disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	prodigiClient, err := prodigi.NewClient(
		cfg.Fulfillment.APIKey,
		prodigi.WithBaseURL(cfg.Fulfillment.BaseURL),
		prodigi.WithTimeout(cfg.Fulfillment.Timeout),
	)
	requireResource(runCtx, logg, "prodigi client", err)

	skuOverrides, err := cfg.Fulfillment.SKUOverrides()
	requireResource(runCtx, logg, "sku overrides", err)
	fulfillmentGateway, err := fulfillment.NewGateway(prodigiClient, fulfillment.NewSkuResolver(skuOverrides), cfg.Fulfillment.ShippingMethod)
	requireResource(runCtx, logg, "fulfillment gateway", err)

	var mailer notifications.Mailer
	if cfg.Sendgrid.Enabled() {
		sendgridClient, err := sendgrid.NewClient(cfg.Sendgrid)
		requireResource(runCtx, logg, "sendgrid client", err)
		mailer = sendgridClient
	} else {
		logg.Warn(runCtx, "sendgrid not configured; customer emails will be skipped")
	}
	dispatcher, err := notifications.NewDispatcher(mailer, logg)
	requireResource(runCtx, logg, "notification dispatcher", err)

	lifecycle, err := orders.NewLifecycle(orders.LifecycleParams{
		Repo:              orders.NewRepository(dbClient.DB()),
		Gateway:           fulfillmentGateway,
		Notifier:          dispatcher,
		Metrics:           orderMetrics,
		Logger:            logg,
		MerchantRefPrefix: cfg.Fulfillment.MerchantRefPrefix,
	})
	requireResource(runCtx, logg, "order lifecycle", err)

	stripeClient, err := stripe.NewClient(runCtx, cfg.Stripe, logg)
	requireResource(runCtx, logg, "stripe client", err)
	paymentGateway, err := payments.NewGateway(payments.GatewayParams{
		API:               stripeClient,
		SigningSecret:     stripeClient.SigningSecret(),
		SuccessURL:        cfg.Stripe.SuccessURL,
		CancelURL:         cfg.Stripe.CancelURL,
		ShippingCountries: cfg.Stripe.ShippingCountries,
	})
	requireResource(runCtx, logg, "payment gateway", err)

	catalogReader, err := catalog.Load(cfg.Catalog.Path)
	requireResource(runCtx, logg, "catalog", err)

	checkoutService, err := checkout.NewService(catalogReader, paymentGateway, fulfillmentGateway)
	requireResource(runCtx, logg, "checkout service", err)

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Sessions:  paymentGateway,
		Catalog:   catalogReader,
		Lifecycle: lifecycle,
		Logger:    logg,
	})
	requireResource(runCtx, logg, "stripe webhook service", err)

	prodigiWebhookService, err := prodigiwebhook.NewService(prodigiwebhook.ServiceParams{
		Lifecycle: lifecycle,
		Verifier:  prodigiwebhook.NewSignatureVerifier(cfg.Fulfillment.WebhookSecret, cfg.Fulfillment.RequireSignature),
		Logger:    logg,
	})
	requireResource(runCtx, logg, "prodigi webhook service", err)

	tokenVerifier, err := auth.NewVerifier(cfg.Auth)
	requireResource(runCtx, logg, "auth verifier", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"stripe_env":   stripeClient.Environment(),
		"catalog_size": catalogReader.Len(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			orderMetrics,
			tokenVerifier,
			checkoutService,
			lifecycle,
			paymentGateway,
			stripeWebhookService,
			eventGuard,
			prodigiWebhookService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(ctx, "failed to initialize "+name, err)
		os.Exit(1)
	}
}
