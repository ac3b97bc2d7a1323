// Package flow models the purchase drawer lifecycle as an explicit finite
// state machine plus an orchestrator that drives order creation, payment
// session creation, and verification against the backend services.
package flow

import (
	"fmt"
)

// State is the primary state of the checkout drawer.
type State string

const (
	StateIdle                 State = "idle"
	StateSelecting            State = "selecting"
	StateCheckoutStarted      State = "checkout_started"
	StateRedirectingToStripe  State = "redirecting_to_stripe"
	StateReturnSuccessLoading State = "return_success_loading"
	StatePaymentConfirmed     State = "payment_confirmed"
	StatePaymentFailed        State = "payment_failed"
	StateVerificationError    State = "verification_error"
)

// ActionType enumerates the reducer actions.
type ActionType string

const (
	ActionOpenDrawer        ActionType = "OPEN_DRAWER"
	ActionStartCheckout     ActionType = "START_CHECKOUT"
	ActionRedirectToStripe  ActionType = "REDIRECT_TO_STRIPE"
	ActionStartReturn       ActionType = "START_RETURN_CONFIRM"
	ActionPaymentConfirmed  ActionType = "PAYMENT_CONFIRMED"
	ActionPaymentFailed     ActionType = "PAYMENT_FAILED"
	ActionVerificationError ActionType = "VERIFICATION_ERROR"
	ActionRetryVerification ActionType = "RETRY_VERIFICATION"
	ActionMarkInteraction   ActionType = "MARK_INTERACTION"
	ActionReset             ActionType = "RESET"
)

// Action is a dispatched event with its optional payload.
type Action struct {
	Type        ActionType
	OrderID     string
	Message     string
	Interaction string
}

// transition describes one row of the transition table: the states the action
// may fire from (nil means any) and the resulting state.
type transition struct {
	from []State
	to   State
}

// transitions is the table form of the drawer lifecycle. Side effects on the
// context (lock, error message, order id) live in Dispatch.
var transitions = map[ActionType]transition{
	ActionOpenDrawer:       {from: nil, to: StateSelecting},
	ActionStartCheckout:    {from: []State{StateSelecting}, to: StateCheckoutStarted},
	ActionRedirectToStripe: {from: []State{StateCheckoutStarted}, to: StateRedirectingToStripe},
	ActionStartReturn:      {from: []State{StateRedirectingToStripe}, to: StateReturnSuccessLoading},
	ActionPaymentConfirmed: {from: []State{StateReturnSuccessLoading}, to: StatePaymentConfirmed},
	ActionPaymentFailed:    {from: []State{StateReturnSuccessLoading}, to: StatePaymentFailed},
	ActionVerificationError: {
		from: []State{StateReturnSuccessLoading, StateCheckoutStarted, StateRedirectingToStripe},
		to:   StateVerificationError,
	},
	ActionRetryVerification: {
		from: []State{StatePaymentFailed, StateVerificationError},
		to:   StateReturnSuccessLoading,
	},
	ActionReset: {from: nil, to: StateIdle},
}

// Machine holds the per-drawer checkout context. It is not safe for
// concurrent use; the drawer dispatches from a single event loop.
type Machine struct {
	state        State
	interactions map[string]bool
	orderID      string
	errorMessage string
	locked       bool
}

// NewMachine returns a fresh context in the idle state.
func NewMachine() *Machine {
	return &Machine{
		state:        StateIdle,
		interactions: make(map[string]bool),
	}
}

// State returns the primary state.
func (m *Machine) State() State {
	return m.state
}

// OrderID returns the confirmed order id, set on PAYMENT_CONFIRMED.
func (m *Machine) OrderID() string {
	return m.orderID
}

// ErrorMessage returns the stored failure message, if any.
func (m *Machine) ErrorMessage() string {
	return m.errorMessage
}

// TransitionLocked reports whether a checkout attempt is in flight. While
// true, a second START_CHECKOUT must be refused.
func (m *Machine) TransitionLocked() bool {
	return m.locked
}

// Interactions returns the recorded post-purchase interaction flags.
func (m *Machine) Interactions() []string {
	out := make([]string, 0, len(m.interactions))
	for flag := range m.interactions {
		out = append(out, flag)
	}
	return out
}

// HasInteraction reports whether the flag was recorded.
func (m *Machine) HasInteraction(flag string) bool {
	return m.interactions[flag]
}

// Dispatch applies an action. Disallowed transitions return an error and
// leave the context untouched.
func (m *Machine) Dispatch(action Action) error {
	if action.Type == ActionMarkInteraction {
		if action.Interaction != "" {
			m.interactions[action.Interaction] = true
		}
		return nil
	}

	rule, ok := transitions[action.Type]
	if !ok {
		return fmt.Errorf("unknown action %q", action.Type)
	}
	if !rule.allows(m.state) {
		return fmt.Errorf("action %s not allowed in state %s", action.Type, m.state)
	}

	switch action.Type {
	case ActionOpenDrawer:
		// Clears only the error. The lock belongs to the in-flight checkout
		// attempt and is released on its terminal outcome or RESET.
		m.errorMessage = ""
	case ActionStartCheckout:
		m.locked = true
	case ActionRedirectToStripe:
		// lock stays held across the redirect
	case ActionStartReturn:
		m.errorMessage = ""
	case ActionPaymentConfirmed:
		m.locked = false
		m.orderID = action.OrderID
		m.errorMessage = ""
	case ActionPaymentFailed:
		m.locked = false
		m.errorMessage = action.Message
	case ActionVerificationError:
		m.locked = false
		m.errorMessage = action.Message
	case ActionRetryVerification:
		m.locked = true
		m.errorMessage = ""
	case ActionReset:
		m.interactions = make(map[string]bool)
		m.orderID = ""
		m.errorMessage = ""
		m.locked = false
	}

	m.state = rule.to
	return nil
}

func (t transition) allows(current State) bool {
	if t.from == nil {
		return true
	}
	for _, s := range t.from {
		if s == current {
			return true
		}
	}
	return false
}
