package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/internal/orders"
	"github.com/wardstudio/detailflow-backend/internal/pricing"
	"github.com/wardstudio/detailflow-backend/pkg/db/models"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
	"github.com/wardstudio/detailflow-backend/pkg/metrics"
)

// ConfirmationMailer sends the guarded confirmation bundle for a paid order.
type ConfirmationMailer interface {
	SendOrderConfirmed(ctx context.Context, order *models.Order) error
}

type ServiceParams struct {
	Orders  orders.Service
	Mailer  ConfirmationMailer
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

// Service reconciles Stripe checkout events against the orders table. The
// webhook is the safety net behind the verify endpoint: it fills whatever the
// synchronous path missed, and never overwrites what is already recorded.
type Service struct {
	orders  orders.Service
	mailer  ConfirmationMailer
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	return &Service{
		orders:  params.Orders,
		mailer:  params.Mailer,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			s.metrics.IncWebhookEvent("error")
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		if err := s.reconcileSession(ctx, &session); err != nil {
			s.metrics.IncWebhookEvent("error")
			return err
		}
		s.metrics.IncWebhookEvent("processed")
		return nil
	default:
		s.metrics.IncWebhookEvent("ignored")
		return nil
	}
}

func (s *Service) reconcileSession(ctx context.Context, session *stripe.CheckoutSession) error {
	if session == nil || session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithSessionID(ctx, session.ID)
	}

	paid := session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid

	order, err := s.resolveOrder(ctx, session)
	if err != nil {
		return err
	}

	if order == nil {
		if !paid {
			// Nothing to record yet; the completed-and-paid event will follow.
			if s.logg != nil {
				s.logg.Warn(logCtx, "unpaid session with no order row, skipping")
			}
			return nil
		}
		order, err = s.orders.RecordRecovered(ctx, recoveredFromSession(session))
		if err != nil {
			return err
		}
	} else {
		order, err = s.orders.FillMissing(ctx, order, backfillFromSession(session, paid))
		if err != nil {
			return err
		}
	}

	s.auditAmount(logCtx, session, order)

	if paid && s.mailer != nil {
		if err := s.mailer.SendOrderConfirmed(ctx, order); err != nil && s.logg != nil {
			s.logg.Error(logCtx, "send confirmation bundle from webhook", err)
		}
	}
	return nil
}

func (s *Service) resolveOrder(ctx context.Context, session *stripe.CheckoutSession) (*models.Order, error) {
	if orderID := session.Metadata["order_id"]; orderID != "" {
		order, err := s.orders.FindByOrderID(ctx, orderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order by metadata id")
		}
		if order != nil {
			return order, nil
		}
	}
	order, err := s.orders.FindBySessionID(ctx, session.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order by session id")
	}
	return order, nil
}

// auditAmount compares the charged amount against the canonical catalog
// price. A recovered order with an unknown tier cannot be repriced, so the
// provider's raw amount stands; any other mismatch is logged for follow-up.
func (s *Service) auditAmount(logCtx context.Context, session *stripe.CheckoutSession, order *models.Order) {
	if s.logg == nil || session.AmountTotal == 0 {
		return
	}
	quote, err := quoteForOrder(order)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "amount_total_cents", session.AmountTotal),
			"order not priceable from catalog, keeping provider amount")
		return
	}
	if int64(quote.DepositTodayCents) != session.AmountTotal {
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"expected_cents": quote.DepositTodayCents,
			"charged_cents":  session.AmountTotal,
		}), "charged amount differs from catalog deposit")
	}
}

func recoveredFromSession(session *stripe.CheckoutSession) orders.RecoveredInput {
	return orders.RecoveredInput{
		OrderID:       session.Metadata["order_id"],
		SessionID:     session.ID,
		ProductID:     session.Metadata["product_id"],
		TierID:        session.Metadata["tier_id"],
		AddonIDs:      splitAddonIDs(session.Metadata["addon_ids"]),
		CustomerEmail: sessionEmail(session),
	}
}

func backfillFromSession(session *stripe.CheckoutSession, paid bool) orders.Backfill {
	return orders.Backfill{
		CustomerEmail: sessionEmail(session),
		TierID:        session.Metadata["tier_id"],
		AddonIDs:      splitAddonIDs(session.Metadata["addon_ids"]),
		SessionID:     session.ID,
		MarkPaid:      paid,
	}
}

func sessionEmail(session *stripe.CheckoutSession) string {
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}
	return session.CustomerEmail
}

func splitAddonIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func quoteForOrder(order *models.Order) (pricing.Quote, error) {
	if order == nil {
		return pricing.Quote{}, fmt.Errorf("no order")
	}
	addonIDs := make([]catalog.AddonID, 0, len(order.AddonIDs))
	for _, id := range order.AddonIDs {
		addonIDs = append(addonIDs, catalog.AddonID(id))
	}
	return pricing.Compute(catalog.TierID(order.TierID), addonIDs)
}
