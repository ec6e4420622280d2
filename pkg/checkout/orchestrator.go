package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/checkoutkit/pkg/logger"
	"github.com/dmitrymomot/checkoutkit/pkg/statemachine"
)

var errOrderMismatch = errors.New("collected payment belongs to a different order")

// Dependencies are the remote collaborators of an Orchestrator.
// Profile is optional.
type Dependencies struct {
	Coupons   CouponSource
	Orders    OrderCreator
	Payments  PaymentConfirmer
	Collector PaymentCollector
	Profile   ProfileRefresher
}

// Orchestrator owns the selection (plan and coupon) for one category and
// runs purchase attempts through the state machine.
//
// It is safe for concurrent use. The lock is released during network calls;
// overlapping operations are rejected by state instead.
type Orchestrator struct {
	mu       sync.Mutex
	pricing  CategoryPricing
	prefill  Prefill
	plan     Plan
	coupon   *Coupon
	attempt  *Attempt
	attempts int
	lastErr  error

	fsm       *statemachine.Machine
	validator *CouponValidator
	initiator *OrderInitiator
	verifier  *PaymentVerifier
	collector PaymentCollector
	profile   ProfileRefresher

	log  *slog.Logger
	opts options
}

// NewOrchestrator creates a purchase flow for the category.
// Panics if a required dependency is missing.
func NewOrchestrator(pricing CategoryPricing, prefill Prefill, deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if deps.Coupons == nil {
		panic("checkout: coupon source cannot be nil")
	}
	if deps.Orders == nil {
		panic("checkout: order creator cannot be nil")
	}
	if deps.Payments == nil {
		panic("checkout: payment confirmer cannot be nil")
	}
	if deps.Collector == nil {
		panic("checkout: payment collector cannot be nil")
	}
	if err := pricing.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With(logger.Component("checkout"), logger.CategoryID(pricing.CategoryID))

	orch := &Orchestrator{
		pricing:   pricing,
		prefill:   prefill,
		plan:      o.plan,
		validator: NewCouponValidator(deps.Coupons, WithValidatorClock(o.now), WithValidatorLogger(log)),
		initiator: NewOrderInitiator(deps.Orders, log),
		verifier:  NewPaymentVerifier(deps.Payments, log),
		collector: deps.Collector,
		profile:   deps.Profile,
		log:       log,
		opts:      o,
	}
	orch.fsm = newMachine(orch.observe)
	return orch, nil
}

// State returns the current flow state.
func (o *Orchestrator) State() State {
	return o.fsm.Current().(State)
}

// Pricing returns the category pricing the flow was created for.
func (o *Orchestrator) Pricing() CategoryPricing {
	return o.pricing
}

// Prefill returns the customer details passed to the payment widget.
func (o *Orchestrator) Prefill() Prefill {
	return o.prefill
}

// Plan returns the selected plan.
func (o *Orchestrator) Plan() Plan {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.plan
}

// AppliedCoupon returns a copy of the applied coupon, or nil.
func (o *Orchestrator) AppliedCoupon() *Coupon {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.coupon == nil {
		return nil
	}
	return o.coupon.clone()
}

// Quote computes the price for the current selection.
func (o *Orchestrator) Quote() PriceQuote {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.quoteLocked()
}

func (o *Orchestrator) quoteLocked() PriceQuote {
	return Quote(o.pricing.BasePrice(o.plan), o.coupon)
}

// DisplayAmount is the amount to show to the user: the server order amount
// while an order is being paid or after activation, the quote otherwise.
func (o *Orchestrator) DisplayAmount() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.State() {
	case StateCollecting, StateVerifying, StateActivated:
		if o.attempt != nil && o.attempt.Order != nil {
			return o.attempt.Order.Amount
		}
	}
	return o.quoteLocked().FinalPrice
}

// Attempt returns a snapshot of the latest purchase attempt.
func (o *Orchestrator) Attempt() (Attempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt == nil {
		return Attempt{}, false
	}
	a := *o.attempt
	if a.Order != nil {
		order := *a.Order
		a.Order = &order
	}
	return a, true
}

// LastError returns the error of the latest failed operation, or nil.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// SelectPlan changes the billing plan. An applied coupon stays applied and
// is not validated again.
func (o *Orchestrator) SelectPlan(ctx context.Context, plan Plan) error {
	if !plan.Valid() {
		return ErrInvalidPlan
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.enterSelectionLocked(ctx); err != nil {
		return err
	}
	if o.plan != plan {
		o.plan = plan
		o.log.DebugContext(ctx, "plan selected", logger.Plan(plan.String()))
	}
	o.lastErr = nil
	return nil
}

// ApplyCoupon validates code and applies it to the selection.
// When a coupon is already applied nothing happens and ErrCouponAlreadyApplied
// is returned together with the applied coupon.
func (o *Orchestrator) ApplyCoupon(ctx context.Context, code string) (*Coupon, error) {
	o.mu.Lock()
	if err := o.enterSelectionLocked(ctx); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if o.coupon != nil {
		applied := o.coupon.clone()
		o.mu.Unlock()
		return applied, ErrCouponAlreadyApplied
	}
	if NormalizeCouponCode(code) == "" {
		o.mu.Unlock()
		return nil, ErrEmptyCouponCode
	}

	if o.opts.lookupGate != nil {
		if err := o.opts.lookupGate(ctx, NormalizeCouponCode(code)); err != nil {
			o.mu.Unlock()
			return nil, err
		}
	}

	cc := CouponContext{
		CategoryID: o.pricing.CategoryID,
		BasePrice:  o.pricing.BasePrice(o.plan),
		Currency:   o.pricing.Currency,
	}
	if err := o.fireLocked(ctx, EventValidateCoupon); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.lastErr = nil
	o.mu.Unlock()

	coupon, verr := o.validator.Validate(ctx, code, cc)

	o.mu.Lock()
	defer o.mu.Unlock()

	if verr != nil {
		o.lastErr = verr
		if err := o.fireLocked(ctx, EventCouponRejected); err != nil {
			return nil, errors.Join(verr, err)
		}
		return nil, verr
	}

	o.coupon = coupon
	if err := o.fireLocked(ctx, EventCouponAccepted); err != nil {
		o.coupon = nil
		return nil, err
	}
	o.log.InfoContext(ctx, "coupon applied",
		logger.CouponCode(coupon.Code),
		logger.Amount(o.quoteLocked().DiscountAmount, o.pricing.Currency),
	)
	return coupon.clone(), nil
}

// RemoveCoupon clears the applied coupon.
func (o *Orchestrator) RemoveCoupon(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.enterSelectionLocked(ctx); err != nil {
		return err
	}
	if o.coupon == nil {
		return ErrNoCouponApplied
	}

	code := o.coupon.Code
	if err := o.fireLocked(ctx, EventRemoveCoupon); err != nil {
		return err
	}
	o.coupon = nil
	o.lastErr = nil
	o.log.InfoContext(ctx, "coupon removed", logger.CouponCode(code))
	return nil
}

// Reset returns a cancelled or failed flow to plan selection. It does
// nothing when the flow is already selecting.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enterSelectionLocked(ctx)
}

// enterSelectionLocked checks that the selection may change, leaving a
// terminal cancelled or failed state first.
func (o *Orchestrator) enterSelectionLocked(ctx context.Context) error {
	switch s := o.State(); {
	case s == StateCouponPending:
		return ErrCouponValidationPending
	case s.InFlight():
		return ErrSelectionLocked
	case s == StateActivated:
		return ErrAlreadyActivated
	case s == StateCancelled, s == StateFailed:
		return o.fireLocked(ctx, EventReset)
	}
	return nil
}

// Purchase runs one purchase attempt: create order, collect payment, verify.
// It blocks until the widget reports back; there is no collection timeout.
// A cancelled or failed attempt may be followed by a new one, which always
// gets a fresh order.
func (o *Orchestrator) Purchase(ctx context.Context) (*Receipt, error) {
	o.mu.Lock()
	switch s := o.State(); {
	case s == StateCouponPending:
		o.mu.Unlock()
		return nil, ErrCouponValidationPending
	case s.InFlight():
		o.mu.Unlock()
		return nil, ErrAttemptInFlight
	case s == StateActivated:
		o.mu.Unlock()
		return nil, ErrAlreadyActivated
	case s == StateCancelled, s == StateFailed:
		if err := o.fireLocked(ctx, EventReset); err != nil {
			o.mu.Unlock()
			return nil, err
		}
	}

	req := OrderRequest{CategoryID: o.pricing.CategoryID, Plan: o.plan}
	if o.coupon != nil {
		req.CouponCode = o.coupon.Code
	}
	quote := o.quoteLocked()

	o.attempts++
	attempt := &Attempt{
		ID:         o.opts.newID(),
		Number:     o.attempts,
		Plan:       req.Plan,
		CouponCode: req.CouponCode,
		StartedAt:  o.opts.now(),
	}
	o.attempt = attempt
	o.lastErr = nil
	if err := o.fireLocked(ctx, EventPurchase); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	log := o.log.With(logger.AttemptID(attempt.ID), logger.Plan(req.Plan.String()))
	o.mu.Unlock()

	log.InfoContext(ctx, "purchase started", logger.CouponCode(req.CouponCode), logger.Amount(quote.FinalPrice, o.pricing.Currency))

	order, err := o.initiator.CreateOrder(ctx, req)
	if err != nil {
		return nil, o.finish(ctx, attempt, EventOrderFailed, err)
	}

	o.mu.Lock()
	attempt.Order = order
	ferr := o.fireLocked(ctx, EventOrderCreated)
	o.mu.Unlock()
	if ferr != nil {
		return nil, ferr
	}
	if order.Amount != quote.FinalPrice {
		log.WarnContext(ctx, "order amount differs from quote, using order amount",
			logger.OrderID(order.OrderID),
			logger.Amount(order.Amount, order.Currency),
		)
	}

	collected, err := o.collector.Collect(ctx, *order, o.prefill)
	if err != nil {
		if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			log.InfoContext(ctx, "payment dismissed", logger.OrderID(order.OrderID))
			return nil, o.finish(ctx, attempt, EventDismissed, classify(ErrCancelled, err))
		}
		log.ErrorContext(ctx, "payment collection failed", logger.OrderID(order.OrderID), logger.Error(err))
		return nil, o.finish(ctx, attempt, EventGatewayFailed, classify(ErrGatewayUnavailable, err))
	}

	o.mu.Lock()
	ferr = o.fireLocked(ctx, EventCollected)
	o.mu.Unlock()
	if ferr != nil {
		return nil, ferr
	}

	// The money is captured at this point; the caller going away must not
	// abort verification.
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.verifyTimeout)
	defer cancel()

	var verr error
	if collected.GatewayOrderID != order.OrderID {
		verr = newError(ErrVerificationFailed, errOrderMismatch)
	} else {
		verr = o.verifier.Verify(vctx, *collected, order.TransactionID)
	}
	if verr != nil {
		log.ErrorContext(ctx, "purchase failed verification",
			logger.OrderID(order.OrderID),
			logger.TransactionID(order.TransactionID),
			logger.Error(verr),
		)
		return nil, o.finish(ctx, attempt, EventVerificationFailed, verr)
	}

	if err := o.finish(ctx, attempt, EventVerified, nil); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "subscription activated",
		logger.OrderID(order.OrderID),
		logger.TransactionID(order.TransactionID),
		logger.Amount(order.Amount, order.Currency),
	)

	if o.profile != nil {
		if err := o.profile.RefreshProfile(vctx); err != nil {
			log.WarnContext(ctx, "profile refresh failed", logger.Error(err))
		}
	}

	return &Receipt{
		AttemptID:     attempt.ID,
		OrderID:       order.OrderID,
		TransactionID: order.TransactionID,
		PaymentID:     collected.GatewayPaymentID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		Plan:          req.Plan,
		CouponCode:    req.CouponCode,
	}, nil
}

// finish records the outcome of an attempt and returns cause.
func (o *Orchestrator) finish(ctx context.Context, a *Attempt, evt Event, cause error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.fireLocked(ctx, evt); err != nil {
		return errors.Join(cause, err)
	}
	a.FinishedAt = o.opts.now()
	a.Outcome = o.State()
	a.Err = cause
	o.lastErr = cause
	return cause
}

func (o *Orchestrator) fireLocked(ctx context.Context, evt Event) error {
	if err := o.fsm.Fire(ctx, evt, flowFacts{couponApplied: o.coupon != nil}); err != nil {
		o.log.ErrorContext(ctx, "illegal state transition", logger.Event(evt.String()), logger.State(o.State().String()), logger.Error(err))
		return err
	}
	return nil
}

// observe runs after every transition, while o.mu is held by the caller of
// fireLocked.
func (o *Orchestrator) observe(ctx context.Context, from, to statemachine.State, evt statemachine.Event) {
	o.log.DebugContext(ctx, "state changed", logger.Event(evt.Name()), logger.Transition(from.Name(), to.Name()))
	for _, h := range o.opts.hooks {
		h(from.(State), to.(State), evt.(Event))
	}
}

// classify returns err as an *Error of kind, keeping an existing
// classification of the same kind.
func classify(kind, err error) error {
	var e *Error
	if errors.As(err, &e) && errors.Is(e.Kind, kind) {
		return e
	}
	return newError(kind, err)
}
