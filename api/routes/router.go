package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wardstudio/detailflow-backend/api/controllers"
	webhookcontrollers "github.com/wardstudio/detailflow-backend/api/controllers/webhooks"
	"github.com/wardstudio/detailflow-backend/api/middleware"
	checkoutsvc "github.com/wardstudio/detailflow-backend/internal/checkout"
	"github.com/wardstudio/detailflow-backend/internal/onboarding"
	"github.com/wardstudio/detailflow-backend/internal/orders"
	stripewebhook "github.com/wardstudio/detailflow-backend/internal/webhooks/stripe"
	"github.com/wardstudio/detailflow-backend/pkg/config"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
	"github.com/wardstudio/detailflow-backend/pkg/metrics"
	"github.com/wardstudio/detailflow-backend/pkg/redis"
	"github.com/wardstudio/detailflow-backend/pkg/stripe"
)

type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.CheckoutMetrics

	DBPinger    controllers.Pinger
	RedisClient *redis.Client

	OrdersService     orders.Service
	CheckoutService   checkoutsvc.Service
	OnboardingService onboarding.Service
	StripeClient      *stripe.Client
	WebhookService    *stripewebhook.Service
	WebhookGuard      *stripewebhook.IdempotencyGuard
	MetricsGatherer   prometheus.Gatherer
}

// NewRouter wires the public checkout surface. Every endpoint here is
// reachable without authentication; abuse control is the rate limiter's job.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	rateLimit := func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
		if deps.RedisClient == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(policy, deps.RedisClient, logg)
	}

	ordersPolicy := middleware.NewRateLimitPolicy(
		"orders", cfg.RateLimit.Window, cfg.RateLimit.OrdersLimit, cfg.RateLimit.OrdersLimit)
	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutLimit, cfg.RateLimit.CheckoutLimit)
	onboardingPolicy := middleware.NewRateLimitPolicy(
		"onboarding", cfg.RateLimit.Window, cfg.RateLimit.OnboardingLimit, 0)

	var redisPinger controllers.Pinger
	if deps.RedisClient != nil {
		redisPinger = deps.RedisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DBPinger, redisPinger, logg))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.With(rateLimit(ordersPolicy)).
			Post("/orders/create", controllers.CreateOrder(deps.OrdersService, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.With(rateLimit(checkoutPolicy)).
				Post("/create", controllers.CreateCheckoutSession(deps.CheckoutService, cfg.Stripe, logg))
			r.Get("/verify", controllers.VerifyCheckoutSession(deps.CheckoutService, logg))
		})

		r.Post("/stripe/webhook", webhookcontrollers.StripeWebhook(
			deps.WebhookService, deps.StripeClient, deps.WebhookGuard, deps.Metrics, logg))

		r.With(rateLimit(onboardingPolicy)).
			Post("/onboarding/submit", controllers.SubmitOnboarding(deps.OnboardingService, logg))
	})

	return r
}
