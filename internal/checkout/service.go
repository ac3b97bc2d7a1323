package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/internal/flow"
	"github.com/wardstudio/detailflow-backend/internal/orders"
	"github.com/wardstudio/detailflow-backend/internal/pricing"
	"github.com/wardstudio/detailflow-backend/internal/rules"
	"github.com/wardstudio/detailflow-backend/pkg/config"
	"github.com/wardstudio/detailflow-backend/pkg/db/models"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
	"github.com/wardstudio/detailflow-backend/pkg/metrics"
)

const (
	placeholderSessionPrefix = "cs_placeholder_"
	sessionIDTemplate        = "{CHECKOUT_SESSION_ID}"
)

// ConfirmationMailer sends the post-payment confirmation bundle for an order.
type ConfirmationMailer interface {
	SendOrderConfirmed(ctx context.Context, order *models.Order) error
}

// Service creates and verifies checkout sessions. It satisfies the drawer's
// flow.SessionCreator and flow.SessionVerifier ports.
type Service interface {
	CreateSession(ctx context.Context, input flow.SessionInput) (flow.SessionResult, error)
	Verify(ctx context.Context, sessionID string) (flow.VerifyResult, error)
}

type service struct {
	sessions StripeSessionClient
	verifier Verifier
	orders   orders.Service
	mailer   ConfirmationMailer
	cfg      config.CheckoutConfig
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewService builds the checkout service. A nil sessions client selects the
// placeholder path: sessions are fabricated locally and the paired verifier
// should be the placeholder one.
func NewService(sessions StripeSessionClient, verifier Verifier, orderSvc orders.Service, mailer ConfirmationMailer, cfg config.CheckoutConfig, checkoutMetrics *metrics.CheckoutMetrics, logg *logger.Logger) (Service, error) {
	if verifier == nil {
		return nil, fmt.Errorf("session verifier required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &service{
		sessions: sessions,
		verifier: verifier,
		orders:   orderSvc,
		mailer:   mailer,
		cfg:      cfg,
		metrics:  checkoutMetrics,
		logg:     logg,
	}, nil
}

// CreateSession revalidates the selection, reprices it server-side, and opens
// a Stripe checkout session for the deposit. Client-supplied amounts are
// never trusted; the deposit is always recomputed from the catalog.
func (s *service) CreateSession(ctx context.Context, input flow.SessionInput) (flow.SessionResult, error) {
	if result := rules.ValidateSelection(input.ProductID, input.TierID, input.AddonIDs); !result.Valid {
		return flow.SessionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout selection rejected").
			WithDetails(map[string]any{"errors": result.Errors})
	}

	quote, err := pricing.Compute(input.TierID, input.AddonIDs)
	if err != nil {
		return flow.SessionResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "price selection")
	}

	if s.sessions == nil {
		return s.createPlaceholderSession(ctx, input)
	}
	return s.createLiveSession(ctx, input, quote)
}

func (s *service) createLiveSession(ctx context.Context, input flow.SessionInput, quote pricing.Quote) (flow.SessionResult, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(input.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(int64(quote.DepositTodayCents)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name:        stripe.String(lineItemName(input)),
						Description: stripe.String(fmt.Sprintf("Deposit for order %s", input.OrderID)),
					},
				},
			},
		},
		Metadata: sessionMetadata(input),
	}

	if input.Embedded {
		params.UIMode = stripe.String("embedded")
		params.ReturnURL = stripe.String(withSessionIDParam(s.cfg.ReturnURL))
	} else {
		params.SuccessURL = stripe.String(withSessionIDParam(s.cfg.SuccessURL))
		params.CancelURL = stripe.String(s.cfg.CancelURL)
	}

	start := time.Now()
	session, err := s.sessions.Create(ctx, params)
	s.metrics.ObserveProviderCall("stripe", "checkout_session_create", time.Since(start))
	if err != nil {
		return flow.SessionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	mode := "redirect"
	if input.Embedded {
		mode = "embedded"
	}
	s.metrics.IncSessionCreated(mode)

	result := flow.SessionResult{
		URL:          session.URL,
		ClientSecret: session.ClientSecret,
		SessionID:    session.ID,
		OrderID:      input.OrderID,
		LiveCheckout: true,
	}
	result.Warning = s.persistSessionID(ctx, input, session.ID)
	return result, nil
}

// createPlaceholderSession fabricates a local session when no Stripe key is
// configured, so the rest of the flow stays exercisable in development.
func (s *service) createPlaceholderSession(ctx context.Context, input flow.SessionInput) (flow.SessionResult, error) {
	sessionID := placeholderSessionPrefix + uuid.NewString()
	if s.logg != nil {
		s.logg.Warn(s.logg.WithSessionID(ctx, sessionID),
			"stripe not configured: issuing placeholder checkout session")
	}
	s.metrics.IncSessionCreated("placeholder")

	result := flow.SessionResult{
		SessionID:    sessionID,
		OrderID:      input.OrderID,
		LiveCheckout: false,
		Warning:      "payment provider not configured; placeholder checkout in effect",
	}
	if warning := s.persistSessionID(ctx, input, sessionID); warning != "" {
		result.Warning = warning
	}
	return result, nil
}

// persistSessionID attaches the session to the order row. The attach is best
// effort: the webhook can still reconcile via metadata, so a failed write
// degrades to a warning instead of aborting the checkout.
func (s *service) persistSessionID(ctx context.Context, input flow.SessionInput, sessionID string) string {
	orderUUID, err := uuid.Parse(input.OrderUUID)
	if err != nil {
		return "order reference malformed; session not linked to order"
	}
	if err := s.orders.AttachSession(ctx, orderUUID, sessionID); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithSessionID(ctx, sessionID), "attach session to order", err)
		}
		return "session created but not linked to order; webhook will reconcile"
	}
	return ""
}

// Verify checks the session's payment status and, on payment, marks the
// order paid and dispatches the confirmation email bundle. Repeated calls are
// safe: the email path carries its own idempotency guard.
func (s *service) Verify(ctx context.Context, sessionID string) (flow.VerifyResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return flow.VerifyResult{}, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required")
	}

	result, err := s.verifier.Verify(ctx, sessionID)
	if err != nil {
		s.metrics.IncVerification("error")
		return flow.VerifyResult{}, err
	}
	if !result.Paid {
		s.metrics.IncVerification("unpaid")
		return result, nil
	}
	s.metrics.IncVerification("paid")

	order, err := s.resolveOrder(ctx, result.OrderID, sessionID)
	if err != nil {
		return flow.VerifyResult{}, err
	}
	if order == nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSessionID(ctx, sessionID),
				"paid session has no matching order; leaving recovery to the webhook")
		}
		result.Reason = "paid, but no matching order was found"
		return result, nil
	}

	if order.Status != enums.OrderStatusPaid {
		if err := s.orders.MarkPaid(ctx, order.OrderUUID); err != nil {
			return flow.VerifyResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		order.Status = enums.OrderStatusPaid
	}

	if s.mailer != nil {
		if err := s.mailer.SendOrderConfirmed(ctx, order); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.OrderID), "send confirmation bundle", err)
		}
	}

	result.OrderID = order.OrderID
	result.OrderUUID = order.OrderUUID.String()
	return result, nil
}

func (s *service) resolveOrder(ctx context.Context, orderID, sessionID string) (*models.Order, error) {
	if orderID != "" {
		order, err := s.orders.FindByOrderID(ctx, orderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order by id")
		}
		if order != nil {
			return order, nil
		}
	}
	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order by session")
	}
	return order, nil
}

func lineItemName(input flow.SessionInput) string {
	tier, err := catalog.TierByID(input.TierID)
	if err != nil {
		return "Ward Studio site detailing deposit"
	}
	return fmt.Sprintf("Ward Studio site detailing (%s) deposit", tier.Name)
}

func sessionMetadata(input flow.SessionInput) map[string]string {
	addonIDs := make([]string, 0, len(input.AddonIDs))
	for _, id := range input.AddonIDs {
		addonIDs = append(addonIDs, string(id))
	}
	return map[string]string{
		"order_id":   input.OrderID,
		"order_uuid": input.OrderUUID,
		"product_id": input.ProductID,
		"tier_id":    string(input.TierID),
		"addon_ids":  strings.Join(addonIDs, ","),
	}
}

func withSessionIDParam(base string) string {
	if strings.Contains(base, "?") {
		return base + "&session_id=" + sessionIDTemplate
	}
	return base + "?session_id=" + sessionIDTemplate
}
