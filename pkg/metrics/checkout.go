package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records counters for the purchase pipeline.
type CheckoutMetrics struct {
	ordersCreated   prometheus.Counter
	sessionsCreated *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	emailSends      *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders inserted with status=created.",
	})
	sessionsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_created_total",
		Help: "Payment provider sessions created, by mode.",
	}, []string{"mode"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_verifications_total",
		Help: "Session verification results.",
	}, []string{"result"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_total",
		Help: "Stripe webhook events, by outcome.",
	}, []string{"outcome"})
	emailSends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "confirmation_emails_total",
		Help: "Confirmation email dispatch outcomes.",
	}, []string{"outcome"})
	providerLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Duration of outbound provider calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	reg.MustRegister(ordersCreated, sessionsCreated, verifications, webhookEvents, emailSends, providerLatency)
	return &CheckoutMetrics{
		ordersCreated:   ordersCreated,
		sessionsCreated: sessionsCreated,
		verifications:   verifications,
		webhookEvents:   webhookEvents,
		emailSends:      emailSends,
		providerLatency: providerLatency,
	}
}

// IncOrderCreated counts a new order row.
func (m *CheckoutMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// IncSessionCreated counts a provider session, labelled redirect/embedded/placeholder.
func (m *CheckoutMetrics) IncSessionCreated(mode string) {
	if m == nil || m.sessionsCreated == nil {
		return
	}
	m.sessionsCreated.WithLabelValues(normalizeLabel(mode)).Inc()
}

// IncVerification counts a verification outcome (paid/unpaid/error).
func (m *CheckoutMetrics) IncVerification(result string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncWebhookEvent counts a webhook outcome (processed/deduped/error).
func (m *CheckoutMetrics) IncWebhookEvent(outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncEmailSend counts an email dispatch outcome (sent/deduped/failed).
func (m *CheckoutMetrics) IncEmailSend(outcome string) {
	if m == nil || m.emailSends == nil {
		return
	}
	m.emailSends.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveProviderCall records the duration of one outbound provider call.
func (m *CheckoutMetrics) ObserveProviderCall(provider, operation string, duration time.Duration) {
	if m == nil || m.providerLatency == nil {
		return
	}
	m.providerLatency.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
