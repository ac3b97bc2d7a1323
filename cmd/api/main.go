package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wardstudio/detailflow-backend/api/routes"
	"github.com/wardstudio/detailflow-backend/internal/checkout"
	"github.com/wardstudio/detailflow-backend/internal/email"
	"github.com/wardstudio/detailflow-backend/internal/onboarding"
	"github.com/wardstudio/detailflow-backend/internal/orders"
	stripewebhook "github.com/wardstudio/detailflow-backend/internal/webhooks/stripe"
	"github.com/wardstudio/detailflow-backend/pkg/config"
	"github.com/wardstudio/detailflow-backend/pkg/db"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
	"github.com/wardstudio/detailflow-backend/pkg/metrics"
	"github.com/wardstudio/detailflow-backend/pkg/migrate"
	"github.com/wardstudio/detailflow-backend/pkg/redis"
	pkgstripe "github.com/wardstudio/detailflow-backend/pkg/stripe"
)

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	var stripeClient *pkgstripe.Client
	if cfg.Stripe.Configured() {
		stripeClient, err = pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			// Boot anyway: checkout create reports the misconfiguration as a
			// 503 with per-key diagnostics instead of taking the API down.
			logg.Error(context.Background(), "stripe client not usable, running degraded", err)
			stripeClient = nil
		}
	} else {
		logg.Warn(context.Background(), "stripe api key absent: placeholder checkout sessions in effect")
	}

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), checkoutMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	mailer, err := email.NewService(
		email.NewSendgridSender(cfg.Sendgrid.APIKey),
		redisClient,
		ordersService,
		cfg.Sendgrid,
		cfg.Email,
		checkoutMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create email service", err)
		os.Exit(1)
	}

	sessionClient := checkout.NewStripeSessionClient(stripeClient)
	var verifier checkout.Verifier
	if sessionClient != nil {
		verifier = checkout.NewLiveVerifier(sessionClient)
	} else {
		verifier = checkout.NewPlaceholderVerifier(logg)
	}

	checkoutService, err := checkout.NewService(
		sessionClient, verifier, ordersService, mailer, cfg.Checkout, checkoutMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:  ordersService,
		Mailer:  mailer,
		Metrics: checkoutMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Email.DedupTTL, "stripe_webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	onboardingService, err := onboarding.NewService(
		onboarding.NewRepository(dbClient.DB()), ordersService, mailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create onboarding service", err)
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
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:            cfg,
			Logger:            logg,
			Metrics:           checkoutMetrics,
			DBPinger:          dbClient,
			RedisClient:       redisClient,
			OrdersService:     ordersService,
			CheckoutService:   checkoutService,
			OnboardingService: onboardingService,
			StripeClient:      stripeClient,
			WebhookService:    webhookService,
			WebhookGuard:      webhookGuard,
			MetricsGatherer:   registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
