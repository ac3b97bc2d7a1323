package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/wardstudio/detailflow-backend/internal/flow"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
)

// Verifier answers whether a checkout session has been paid. Implementations
// are read-only against provider state and safe to call repeatedly.
type Verifier interface {
	Verify(ctx context.Context, sessionID string) (flow.VerifyResult, error)
}

// LiveVerifier checks payment status against the Stripe API.
type LiveVerifier struct {
	sessions StripeSessionClient
}

// NewLiveVerifier builds a verifier backed by the Stripe API.
func NewLiveVerifier(sessions StripeSessionClient) *LiveVerifier {
	return &LiveVerifier{sessions: sessions}
}

func (v *LiveVerifier) Verify(ctx context.Context, sessionID string) (flow.VerifyResult, error) {
	session, err := v.sessions.Retrieve(ctx, sessionID, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return flow.VerifyResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}

	result := flow.VerifyResult{
		Paid:      session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Status:    string(session.PaymentStatus),
		OrderID:   session.Metadata["order_id"],
		OrderUUID: session.Metadata["order_uuid"],
	}
	if !result.Paid {
		result.Reason = fmt.Sprintf("payment status is %s", session.PaymentStatus)
	}
	return result, nil
}

// PlaceholderVerifier reports every session as paid. It backs local
// development and demo environments where no Stripe key is configured, and it
// logs loudly so the mode is never mistaken for a real verification.
type PlaceholderVerifier struct {
	logg *logger.Logger
}

// NewPlaceholderVerifier builds the always-paid verifier.
func NewPlaceholderVerifier(logg *logger.Logger) *PlaceholderVerifier {
	return &PlaceholderVerifier{logg: logg}
}

func (v *PlaceholderVerifier) Verify(ctx context.Context, sessionID string) (flow.VerifyResult, error) {
	if v.logg != nil {
		v.logg.Warn(v.logg.WithSessionID(ctx, sessionID),
			"placeholder verification: reporting session as paid without checking any provider")
	}
	return flow.VerifyResult{
		Paid:   true,
		Status: "paid",
	}, nil
}
