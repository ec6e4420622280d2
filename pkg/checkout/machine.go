package checkout

import (
	"context"

	"github.com/dmitrymomot/checkoutkit/pkg/statemachine"
)

// State is a purchase flow state.
type State string

const (
	StateIdle          State = "idle"
	StateCouponPending State = "coupon_pending"
	StateCouponApplied State = "coupon_applied"
	StateOrderPending  State = "order_pending"
	StateCollecting    State = "collecting"
	StateVerifying     State = "verifying"
	StateActivated     State = "activated"
	StateCancelled     State = "cancelled"
	StateFailed        State = "failed"
)

func (s State) String() string { return string(s) }

// Name implements statemachine.State.
func (s State) Name() string { return string(s) }

// InFlight reports whether a purchase attempt is running in s.
func (s State) InFlight() bool {
	return s == StateOrderPending || s == StateCollecting || s == StateVerifying
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	return s == StateActivated || s == StateCancelled || s == StateFailed
}

// Event drives a state change.
type Event string

const (
	EventValidateCoupon     Event = "validate_coupon"
	EventCouponAccepted     Event = "coupon_accepted"
	EventCouponRejected     Event = "coupon_rejected"
	EventRemoveCoupon       Event = "remove_coupon"
	EventPurchase           Event = "purchase"
	EventOrderCreated       Event = "order_created"
	EventOrderFailed        Event = "order_failed"
	EventCollected          Event = "collected"
	EventDismissed          Event = "dismissed"
	EventGatewayFailed      Event = "gateway_failed"
	EventVerified           Event = "verified"
	EventVerificationFailed Event = "verification_failed"
	EventReset              Event = "reset"
)

func (e Event) String() string { return string(e) }

// Name implements statemachine.Event.
func (e Event) Name() string { return string(e) }

// IsTransitionError reports whether err means the event is not allowed in
// the current state.
func IsTransitionError(err error) bool {
	return statemachine.IsNoTransitionAvailableError(err) || statemachine.IsTransitionRejectedError(err)
}

// flowFacts are the facts guards decide on.
type flowFacts struct {
	couponApplied bool
}

func withCoupon(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	f, ok := data.(flowFacts)
	return ok && f.couponApplied
}

func withoutCoupon(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	f, ok := data.(flowFacts)
	return ok && !f.couponApplied
}

// backToSelection returns to coupon_applied when a coupon survives, idle
// otherwise.
func backToSelection(from State, evt Event) []statemachine.Option {
	return []statemachine.Option{
		statemachine.WithTransition(from, StateCouponApplied, evt, statemachine.WithGuard(withCoupon)),
		statemachine.WithTransition(from, StateIdle, evt, statemachine.WithGuard(withoutCoupon)),
	}
}

// newMachine builds the purchase flow transition table. Fire it with
// flowFacts as data.
func newMachine(observers ...statemachine.Observer) *statemachine.Machine {
	opts := []statemachine.Option{
		statemachine.WithTransition(StateIdle, StateCouponPending, EventValidateCoupon, statemachine.WithGuard(withoutCoupon)),
		statemachine.WithTransition(StateCouponPending, StateCouponApplied, EventCouponAccepted),
		statemachine.WithTransition(StateCouponPending, StateIdle, EventCouponRejected),
		statemachine.WithTransition(StateCouponApplied, StateIdle, EventRemoveCoupon),

		statemachine.WithTransition(StateIdle, StateOrderPending, EventPurchase),
		statemachine.WithTransition(StateCouponApplied, StateOrderPending, EventPurchase),
		statemachine.WithTransition(StateOrderPending, StateCollecting, EventOrderCreated),
		statemachine.WithTransition(StateCollecting, StateVerifying, EventCollected),
		statemachine.WithTransition(StateCollecting, StateCancelled, EventDismissed),
		statemachine.WithTransition(StateCollecting, StateFailed, EventGatewayFailed),
		statemachine.WithTransition(StateVerifying, StateActivated, EventVerified),
		statemachine.WithTransition(StateVerifying, StateFailed, EventVerificationFailed),
	}
	opts = append(opts, backToSelection(StateOrderPending, EventOrderFailed)...)
	opts = append(opts, backToSelection(StateCancelled, EventReset)...)
	opts = append(opts, backToSelection(StateFailed, EventReset)...)
	for _, o := range observers {
		opts = append(opts, statemachine.WithObserver(o))
	}
	return statemachine.MustNew(StateIdle, opts...)
}
