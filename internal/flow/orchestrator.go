package flow

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
)

// CreatedOrder is the result of the order-create port.
type CreatedOrder struct {
	OrderID   string
	OrderUUID string
}

// CreateOrderInput is the payload for the order-create port.
type CreateOrderInput struct {
	ProductID     string
	TierID        catalog.TierID
	AddonIDs      []catalog.AddonID
	CustomerEmail string
}

// SessionInput is the payload for the session-create port.
type SessionInput struct {
	ProductID     string
	TierID        catalog.TierID
	AddonIDs      []catalog.AddonID
	CustomerEmail string
	OrderID       string
	OrderUUID     string
	Embedded      bool
}

// SessionResult is the provider session handed back to the drawer.
type SessionResult struct {
	URL          string
	ClientSecret string
	SessionID    string
	OrderID      string
	LiveCheckout bool
	Warning      string
}

// VerifyResult is the verification outcome for a session.
type VerifyResult struct {
	Paid      bool
	Status    string
	OrderID   string
	OrderUUID string
	Reason    string
}

// OrderCreator creates the order row before any payment session exists.
type OrderCreator interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (CreatedOrder, error)
}

// SessionCreator creates a payment provider session for an existing order.
type SessionCreator interface {
	CreateSession(ctx context.Context, input SessionInput) (SessionResult, error)
}

// SessionVerifier checks whether a session has been paid. Verification is
// read-only against provider state and safe to repeat.
type SessionVerifier interface {
	Verify(ctx context.Context, sessionID string) (VerifyResult, error)
}

// Navigator is the browser-redirect side effect, injected by the UI layer.
type Navigator interface {
	Navigate(url string)
}

// Intent carries the buyer's identity and selection at "pay deposit" time.
type Intent struct {
	Name         string
	Email        string
	TierID       catalog.TierID
	AddonIDs     []catalog.AddonID
	EmbeddedMode bool
}

// Orchestrator drives a single drawer session through the purchase pipeline:
// create order, create session, redirect or verify in process, retry
// verification. Ordering is strict: the order id must exist before session
// creation, and the session id before verification.
type Orchestrator struct {
	machine  *Machine
	orders   OrderCreator
	sessions SessionCreator
	verifier SessionVerifier
	nav      Navigator
	logg     *logger.Logger

	// stepTimeout bounds each provider round-trip so a hung call surfaces
	// as verification_error instead of a stuck checkout_started drawer.
	stepTimeout time.Duration

	orderID   string
	orderUUID string
	sessionID string
	warning   string
}

// NewOrchestrator wires the drawer ports. A zero stepTimeout disables the
// per-call deadline.
func NewOrchestrator(machine *Machine, orders OrderCreator, sessions SessionCreator, verifier SessionVerifier, nav Navigator, stepTimeout time.Duration, logg *logger.Logger) (*Orchestrator, error) {
	if machine == nil {
		return nil, errors.New("machine is required")
	}
	if orders == nil {
		return nil, errors.New("order creator is required")
	}
	if sessions == nil {
		return nil, errors.New("session creator is required")
	}
	if verifier == nil {
		return nil, errors.New("session verifier is required")
	}
	return &Orchestrator{
		machine:     machine,
		orders:      orders,
		sessions:    sessions,
		verifier:    verifier,
		nav:         nav,
		logg:        logg,
		stepTimeout: stepTimeout,
	}, nil
}

// Machine exposes the drawer context for rendering.
func (o *Orchestrator) Machine() *Machine {
	return o.machine
}

// SessionID returns the active provider session id, if any.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Warning returns the soft warning from the last session creation, if any.
func (o *Orchestrator) Warning() string {
	return o.warning
}

// StartCheckout runs the end-to-end "pay deposit" intent. Repeated calls
// while a checkout is in flight are idempotent no-ops.
func (o *Orchestrator) StartCheckout(ctx context.Context, intent Intent) error {
	if o.machine.TransitionLocked() {
		return nil
	}

	if err := validateIdentity(intent); err != nil {
		return err
	}

	if err := o.machine.Dispatch(Action{Type: ActionStartCheckout}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "start checkout")
	}

	if o.orderID == "" {
		created, err := o.createOrder(ctx, intent)
		if err != nil {
			// No partial state is kept: the drawer returns to selecting so
			// the buyer can retry from scratch.
			_ = o.machine.Dispatch(Action{Type: ActionOpenDrawer})
			return err
		}
		o.orderID = created.OrderID
		o.orderUUID = created.OrderUUID
	}

	session, err := o.createSession(ctx, intent)
	if err != nil {
		_ = o.machine.Dispatch(Action{Type: ActionVerificationError, Message: err.Error()})
		return err
	}
	o.sessionID = session.SessionID
	o.warning = session.Warning

	if err := o.machine.Dispatch(Action{Type: ActionRedirectToStripe}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "redirect")
	}

	if session.LiveCheckout && session.URL != "" {
		if o.nav != nil {
			o.nav.Navigate(session.URL)
		}
		// Terminal for this in-process flow; the buyer returns later via
		// the return URL carrying the session id.
		return nil
	}

	return o.confirmReturn(ctx)
}

// ResumeReturn continues a redirect flow when the buyer lands back on the
// return URL with the provider session id.
func (o *Orchestrator) ResumeReturn(ctx context.Context, sessionID string) error {
	if sessionID != "" {
		o.sessionID = sessionID
	}
	return o.confirmReturn(ctx)
}

// RetryVerification re-runs verification only, against the already created
// session. It never recreates the order or the session, so repeated retries
// cannot produce duplicate orders.
func (o *Orchestrator) RetryVerification(ctx context.Context) error {
	if err := o.machine.Dispatch(Action{Type: ActionRetryVerification}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "retry verification")
	}
	return o.runVerification(ctx)
}

func (o *Orchestrator) confirmReturn(ctx context.Context) error {
	if err := o.machine.Dispatch(Action{Type: ActionStartReturn}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "confirm return")
	}
	return o.runVerification(ctx)
}

func (o *Orchestrator) runVerification(ctx context.Context) error {
	if o.sessionID == "" {
		msg := "no checkout session to verify"
		_ = o.machine.Dispatch(Action{Type: ActionVerificationError, Message: msg})
		return pkgerrors.New(pkgerrors.CodeStateConflict, msg)
	}

	stepCtx, cancel := o.withStepTimeout(ctx)
	defer cancel()

	result, err := o.verifier.Verify(stepCtx, o.sessionID)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "verification timed out"
		}
		_ = o.machine.Dispatch(Action{Type: ActionVerificationError, Message: msg})
		return err
	}

	if !result.Paid {
		reason := result.Reason
		if reason == "" {
			reason = "payment not completed"
		}
		_ = o.machine.Dispatch(Action{Type: ActionPaymentFailed, Message: reason})
		return nil
	}

	orderID := result.OrderID
	if orderID == "" {
		orderID = o.orderID
	}
	return o.machine.Dispatch(Action{Type: ActionPaymentConfirmed, OrderID: orderID})
}

func (o *Orchestrator) createOrder(ctx context.Context, intent Intent) (CreatedOrder, error) {
	stepCtx, cancel := o.withStepTimeout(ctx)
	defer cancel()
	return o.orders.CreateOrder(stepCtx, CreateOrderInput{
		ProductID:     catalog.ProductID,
		TierID:        intent.TierID,
		AddonIDs:      intent.AddonIDs,
		CustomerEmail: intent.Email,
	})
}

func (o *Orchestrator) createSession(ctx context.Context, intent Intent) (SessionResult, error) {
	stepCtx, cancel := o.withStepTimeout(ctx)
	defer cancel()
	return o.sessions.CreateSession(stepCtx, SessionInput{
		ProductID:     catalog.ProductID,
		TierID:        intent.TierID,
		AddonIDs:      intent.AddonIDs,
		CustomerEmail: intent.Email,
		OrderID:       o.orderID,
		OrderUUID:     o.orderUUID,
		Embedded:      intent.EmbeddedMode,
	})
}

func (o *Orchestrator) withStepTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.stepTimeout)
}

func validateIdentity(intent Intent) error {
	fields := map[string]string{}
	if strings.TrimSpace(intent.Name) == "" {
		fields["name"] = "is required"
	}
	email := strings.TrimSpace(intent.Email)
	if email == "" {
		fields["email"] = "is required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "must be a valid email"
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer identity incomplete").WithDetails(fields)
	}
	return nil
}
