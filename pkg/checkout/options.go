package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultVerifyTimeout bounds the verification call once a payment was collected.
const DefaultVerifyTimeout = 30 * time.Second

// TransitionHook observes state changes. It runs while the orchestrator is
// locked and must not call back into it.
type TransitionHook func(from, to State, evt Event)

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	log           *slog.Logger
	now           func() time.Time
	verifyTimeout time.Duration
	hooks         []TransitionHook
	plan          Plan
	newID         func() string
	lookupGate    func(ctx context.Context, code string) error
}

func defaultOptions() options {
	return options{
		log:           slog.New(slog.DiscardHandler),
		now:           time.Now,
		verifyTimeout: DefaultVerifyTimeout,
		plan:          DefaultPlan,
		newID:         uuid.NewString,
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the clock used for coupon expiry and attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithVerifyTimeout bounds the verification call. Non-positive values are ignored.
func WithVerifyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.verifyTimeout = d
		}
	}
}

// WithTransitionHook registers a state change observer.
func WithTransitionHook(h TransitionHook) Option {
	return func(o *options) {
		if h != nil {
			o.hooks = append(o.hooks, h)
		}
	}
}

// WithInitialPlan selects the plan the flow starts with. Invalid plans are ignored.
func WithInitialPlan(p Plan) Option {
	return func(o *options) {
		if p.Valid() {
			o.plan = p
		}
	}
}

// WithAttemptIDGenerator overrides how attempt ids are generated.
func WithAttemptIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithCouponLookupGate registers a check run right before a coupon code is
// sent to the backend, after all local checks passed. An error aborts
// ApplyCoupon with that error and leaves the selection unchanged.
func WithCouponLookupGate(fn func(ctx context.Context, code string) error) Option {
	return func(o *options) {
		o.lookupGate = fn
	}
}
