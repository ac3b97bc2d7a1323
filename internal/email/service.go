package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/wardstudio/detailflow-backend/pkg/config"
	"github.com/wardstudio/detailflow-backend/pkg/db/models"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
	"github.com/wardstudio/detailflow-backend/pkg/metrics"
	"github.com/wardstudio/detailflow-backend/pkg/redis"
)

const confirmationScope = "order_confirmed"

// EmailStamper records the authoritative email-sent marker on the order row.
// The write is conditional on the column still being null.
type EmailStamper interface {
	StampEmailSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// BookingConfirmedInput carries the booking-time confirmation payload.
type BookingConfirmedInput struct {
	OrderID       string
	CustomerEmail string
	BusinessName  string
	BookingTime   string
}

// OnboardingSummaryInput carries the generated handoff artifacts forwarded
// to the internal inbox after the buyer submits their configuration.
type OnboardingSummaryInput struct {
	OrderID      string
	ProjectEmail string
	Sentence     string
	ConfigJSON   string
	SendNow      []string
	DuringCall   []string
	CallRequired bool
	StrippedKeys []string
}

// BundleResult reports what a confirmation bundle call actually did, so a
// replayed call is distinguishable from a fresh send.
type BundleResult struct {
	Deduped      bool
	SentClient   bool
	SentInternal bool
}

// Service dispatches the transactional email bundles of the purchase flow.
type Service interface {
	SendOrderConfirmed(ctx context.Context, order *models.Order) error
	SendOrderConfirmedBundle(ctx context.Context, order *models.Order, force bool) (BundleResult, error)
	SendBookingConfirmedBundle(ctx context.Context, input BookingConfirmedInput) error
	SendOnboardingSummary(ctx context.Context, input OnboardingSummaryInput) error
}

type service struct {
	sender   Sender
	idem     redis.IdempotencyStore
	stamper  EmailStamper
	sendgrid config.SendgridConfig
	email    config.EmailConfig
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the email service. The idempotency store may be nil in
// tests; the DB stamp then remains the only dedup layer.
func NewService(sender Sender, idem redis.IdempotencyStore, stamper EmailStamper, sendgridCfg config.SendgridConfig, emailCfg config.EmailConfig, checkoutMetrics *metrics.CheckoutMetrics, logg *logger.Logger) (Service, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if stamper == nil {
		return nil, fmt.Errorf("email stamper required")
	}
	return &service{
		sender:   sender,
		idem:     idem,
		stamper:  stamper,
		sendgrid: sendgridCfg,
		email:    emailCfg,
		metrics:  checkoutMetrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// SendOrderConfirmed is the guarded entry point used after verification and
// webhook reconciliation.
func (s *service) SendOrderConfirmed(ctx context.Context, order *models.Order) error {
	_, err := s.SendOrderConfirmedBundle(ctx, order, false)
	return err
}

// SendOrderConfirmedBundle sends the buyer confirmation and the internal
// notification for a paid order. The bundle is sent at most once per order:
// a redis mark is taken before sending and the order row is stamped after.
// force bypasses the dedup checks for operator-driven resends.
func (s *service) SendOrderConfirmedBundle(ctx context.Context, order *models.Order, force bool) (BundleResult, error) {
	if order == nil {
		return BundleResult{}, pkgerrors.New(pkgerrors.CodeInternal, "confirmation bundle: nil order")
	}
	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithOrderID(ctx, order.OrderID)
	}

	var guardKey string
	if !force {
		if order.EmailSentAt != nil {
			s.metrics.IncEmailSend("deduped")
			return BundleResult{Deduped: true}, nil
		}
		if s.idem != nil {
			guardKey = s.idem.IdempotencyKey(confirmationScope, order.OrderID)
			won, err := s.idem.SetNX(ctx, guardKey, s.now().Unix(), s.email.DedupTTL)
			if err != nil {
				// Redis being down must not block the email; the DB stamp
				// still dedupes across retries.
				if s.logg != nil {
					s.logg.Warn(logCtx, "email dedup mark failed, relying on db stamp")
				}
			} else if !won {
				s.metrics.IncEmailSend("deduped")
				return BundleResult{Deduped: true}, nil
			}
		}
	}

	buyerErr := s.sendBuyerConfirmation(ctx, order)
	internalErr := s.send(ctx, internalNotification(order, s.sendgrid))

	if buyerErr != nil && internalErr != nil {
		// Total failure re-arms the guard so a retry can send again.
		if guardKey != "" && s.idem != nil {
			if delErr := s.idem.Del(ctx, guardKey); delErr != nil && s.logg != nil {
				s.logg.Warn(logCtx, "email dedup mark not released after failed bundle")
			}
		}
		s.metrics.IncEmailSend("failed")
		return BundleResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, multierr.Append(buyerErr, internalErr),
			"confirmation bundle failed")
	}

	if buyerErr != nil && s.logg != nil {
		s.logg.Error(logCtx, "buyer confirmation failed, internal notification sent", buyerErr)
	}
	if internalErr != nil && s.logg != nil {
		s.logg.Error(logCtx, "internal notification failed, buyer confirmation sent", internalErr)
	}

	won, err := s.stamper.StampEmailSent(ctx, order.OrderUUID, s.now())
	if err != nil {
		if s.logg != nil {
			s.logg.Error(logCtx, "stamp email_sent_at", err)
		}
	} else if !won && !force && s.logg != nil {
		s.logg.Warn(logCtx, "email stamp lost a race; a parallel path sent the bundle too")
	}

	s.metrics.IncEmailSend("sent")
	return BundleResult{
		SentClient:   buyerErr == nil,
		SentInternal: internalErr == nil,
	}, nil
}

// SendBookingConfirmedBundle notifies buyer and studio of a scheduled kickoff
// call. Booking confirmations deliberately carry no dedup guard: rescheduling
// the call legitimately produces a fresh bundle.
func (s *service) SendBookingConfirmedBundle(ctx context.Context, input BookingConfirmedInput) error {
	buyerErr := s.deliver(ctx, buyerBookingConfirmation(input, s.sendgrid))
	internalErr := s.send(ctx, internalBookingNotification(input, s.sendgrid))

	if buyerErr != nil && internalErr != nil {
		s.metrics.IncEmailSend("failed")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, multierr.Append(buyerErr, internalErr),
			"booking bundle failed")
	}
	s.metrics.IncEmailSend("sent")
	return nil
}

// SendOnboardingSummary forwards the handoff artifacts to the studio inbox.
// Internal-only mail, so no dedup guard and no test-mode redirect needed.
func (s *service) SendOnboardingSummary(ctx context.Context, input OnboardingSummaryInput) error {
	if err := s.send(ctx, onboardingSummary(input, s.sendgrid)); err != nil {
		s.metrics.IncEmailSend("failed")
		return err
	}
	s.metrics.IncEmailSend("sent")
	return nil
}

func (s *service) sendBuyerConfirmation(ctx context.Context, order *models.Order) error {
	if order.CustomerEmail == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "order has no customer email")
	}
	return s.deliver(ctx, buyerConfirmation(order, s.sendgrid))
}

// deliver sends one buyer-facing message, absorbing the two provider
// rejections that have a recovery path. An unverified from address is retried
// once from the fallback sender; a sandboxed account is handled by resending
// to its one allowed recipient, with the subject annotating who the message
// was meant for.
func (s *service) deliver(ctx context.Context, msg Message) error {
	err := s.send(ctx, msg)
	if err == nil {
		return nil
	}

	if isSenderRejected(err) {
		if fallback := s.sendgrid.FallbackFrom; fallback != "" && fallback != msg.FromEmail {
			retry := msg
			retry.FromEmail = fallback
			retryErr := s.send(ctx, retry)
			if retryErr == nil {
				if s.logg != nil {
					s.logg.Warn(ctx, "primary sender rejected, delivered from fallback address")
				}
				return nil
			}
			err = multierr.Append(err, retryErr)
		}
	}

	if allowed, ok := sandboxAllowedRecipient(err); ok && allowed != normalizeRecipient(msg.ToEmail) {
		redirected := redirectToAllowed(msg, allowed)
		if redirectErr := s.send(ctx, redirected); redirectErr != nil {
			return multierr.Append(err, redirectErr)
		}
		if s.logg != nil {
			s.logg.Warn(ctx, "account sandboxed to a single recipient, message redirected")
		}
		return nil
	}

	return err
}

func (s *service) send(ctx context.Context, msg Message) error {
	start := s.now()
	err := s.sender.Send(ctx, msg)
	s.metrics.ObserveProviderCall("sendgrid", "send", time.Since(start))
	return err
}

// redirectToAllowed retargets a sandboxed message to the provider's single
// allowed recipient, keeping the intended address visible in the subject.
func redirectToAllowed(msg Message, allowed string) Message {
	intended := msg.ToEmail
	msg.ToEmail = allowed
	msg.Subject = "[TEST MODE REDIRECT] " + msg.Subject + " (intended for " + intended + ")"
	return msg
}

func normalizeRecipient(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
