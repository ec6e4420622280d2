package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/checkoutkit/pkg/async"
	"github.com/dmitrymomot/checkoutkit/pkg/attemptlock"
	"github.com/dmitrymomot/checkoutkit/pkg/backend"
	purchase "github.com/dmitrymomot/checkoutkit/pkg/checkout"
	"github.com/dmitrymomot/checkoutkit/pkg/gateway"
	"github.com/dmitrymomot/checkoutkit/pkg/logger"
	"github.com/dmitrymomot/checkoutkit/pkg/ratelimiter"
)

var (
	ErrNoOpenCheckout  = errors.New("no checkout is open for this session")
	ErrTooManyAttempts = errors.New("too many coupon attempts")
)

// ThrottledError is ErrTooManyAttempts with the time until the next attempt
// is allowed.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string { return ErrTooManyAttempts.Error() }
func (e *ThrottledError) Unwrap() error { return ErrTooManyAttempts }

const releaseTimeout = 5 * time.Second

// Deps are the collaborators of a Service. Catalog and Backend are
// required; the rest default to in-process implementations.
type Deps struct {
	Catalog Catalog
	Backend *backend.Client
	Loader  *gateway.Loader
	Relay   *gateway.Relay
	Locks   attemptlock.Locker
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Service hosts checkout sessions for browser clients. The payment widget
// runs in the browser; its callbacks reach the service over HTTP and are
// routed to the waiting purchase through the relay.
type Service struct {
	cfg      Config
	catalog  Catalog
	api      *backend.Client
	loader   *gateway.Loader
	relay    *gateway.Relay
	locks    attemptlock.Locker
	coupons  *ratelimiter.Limiter
	sessions *SessionStore
	log      *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Catalog == nil {
		return nil, errors.New("checkout service: catalog is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("checkout service: backend client is required")
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("checkout service: max sessions must be positive, got %d", cfg.MaxSessions)
	}

	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With(logger.Component("checkout_service"))

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	loader := deps.Loader
	if loader == nil {
		loader = gateway.NewLoader(
			gateway.WithScriptURL(cfg.ScriptURL),
			gateway.WithLoaderTimeout(cfg.ScriptTimeout),
			gateway.WithLoaderLogger(log),
		)
	}
	relay := deps.Relay
	if relay == nil {
		relay = gateway.NewRelay(log)
	}
	locks := deps.Locks
	if locks == nil {
		locks = attemptlock.NewMemory()
	}

	coupons, err := ratelimiter.New(ratelimiter.Config{
		Capacity:       cfg.CouponAttempts,
		RefillInterval: cfg.CouponRefill,
	}, ratelimiter.WithClock(now))
	if err != nil {
		return nil, fmt.Errorf("checkout service: coupon throttle: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:      cfg,
		catalog:  deps.Catalog,
		api:      deps.Backend,
		loader:   loader,
		relay:    relay,
		locks:    locks,
		coupons:  coupons,
		sessions: NewSessionStoreWithClock(cfg.MaxSessions, cfg.SessionTTL, now),
		log:      log,
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Sessions exposes the session store.
func (svc *Service) Sessions() *SessionStore { return svc.sessions }

// Close closes all sessions. Open checkouts are dismissed and running
// attempts end as cancelled.
func (svc *Service) Close() {
	svc.cancel()
	svc.sessions.Close()
}

// RunSweeper removes idle sessions every interval until ctx is done.
func (svc *Service) RunSweeper(ctx context.Context) error {
	interval := svc.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := svc.sessions.Sweep(); n > 0 {
				svc.log.DebugContext(ctx, "idle sessions removed", slog.Int("count", n), slog.Int("active", svc.sessions.Len()))
			}
			svc.coupons.Prune(svc.cfg.SessionTTL + svc.cfg.CouponRefill)
		}
	}
}

// NewSessionParams describe a checkout screen being opened.
type NewSessionParams struct {
	CategoryID string
	UserID     string
	Token      string
	Prefill    purchase.Prefill
	Plan       purchase.Plan
}

// CreateSession opens a checkout for a category. Backend calls made on the
// session's behalf authenticate with p.Token.
func (svc *Service) CreateSession(ctx context.Context, p NewSessionParams) (*Session, error) {
	pricing, err := svc.catalog.Pricing(ctx, p.CategoryID)
	if err != nil {
		return nil, err
	}

	s := newSession(svc.ctx, uuid.NewString(), p.UserID, pricing.CategoryID, p.Token, svc.now())
	s.log = svc.log.With(logger.SessionID(s.ID), logger.CategoryID(pricing.CategoryID))

	api := svc.api.WithToken(p.Token)
	orch, err := purchase.NewOrchestrator(pricing, p.Prefill, purchase.Dependencies{
		Coupons:   api,
		Orders:    api,
		Payments:  api,
		Profile:   api,
		Collector: svc.collector(s, pricing),
	},
		purchase.WithLogger(s.log),
		purchase.WithClock(svc.now),
		purchase.WithVerifyTimeout(svc.cfg.VerifyTimeout),
		purchase.WithInitialPlan(p.Plan),
		purchase.WithTransitionHook(func(_, _ purchase.State, _ purchase.Event) { s.notify() }),
		purchase.WithCouponLookupGate(func(ctx context.Context, _ string) error { return svc.allowCouponLookup(ctx, s) }),
	)
	if err != nil {
		return nil, err
	}
	s.orch = orch

	if err := svc.sessions.Put(s); err != nil {
		s.close()
		return nil, err
	}
	s.log.InfoContext(ctx, "session created", logger.Plan(orch.Plan().String()))
	return s, nil
}

// Session returns the session with the given id if token matches the one it
// was created with. A mismatch is reported as ErrSessionNotFound.
func (svc *Service) Session(id, token string) (*Session, error) {
	s, err := svc.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if !s.authorized(token) {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// SelectPlan switches the plan and recomputes the quote.
func (svc *Service) SelectPlan(ctx context.Context, s *Session, plan purchase.Plan) error {
	if err := s.orch.SelectPlan(ctx, plan); err != nil {
		return err
	}
	s.setNotice("")
	return nil
}

// ApplyCoupon validates and applies a coupon. Backend lookups are throttled
// per user, or per session for anonymous users; codes rejected locally do
// not count.
func (svc *Service) ApplyCoupon(ctx context.Context, s *Session, code string) error {
	if _, err := s.orch.ApplyCoupon(ctx, code); err != nil {
		s.setNotice("")
		return err
	}
	s.setNotice(purchase.MessageCouponApplied)
	return nil
}

func (svc *Service) allowCouponLookup(ctx context.Context, s *Session) error {
	res := svc.coupons.Allow(s.lockKey())
	if !res.Allowed {
		s.log.WarnContext(ctx, "coupon attempts throttled", logger.Duration(res.RetryAfter))
		return &ThrottledError{RetryAfter: res.RetryAfter}
	}
	return nil
}

// RemoveCoupon drops the applied coupon.
func (svc *Service) RemoveCoupon(ctx context.Context, s *Session) error {
	if err := s.orch.RemoveCoupon(ctx); err != nil {
		return err
	}
	s.setNotice(purchase.MessageCouponRemoved)
	return nil
}

// Reset discards the outcome of a cancelled or failed attempt.
func (svc *Service) Reset(ctx context.Context, s *Session) error {
	if err := s.orch.Reset(ctx); err != nil {
		return err
	}
	s.setNotice("")
	return nil
}

// StartPurchase starts a purchase attempt in the background. Only one
// attempt per user runs at a time, across all sessions and replicas
// sharing the locker.
func (svc *Service) StartPurchase(ctx context.Context, s *Session) (*async.Future[*purchase.Receipt], error) {
	switch st := s.orch.State(); {
	case st == purchase.StateCouponPending:
		return nil, purchase.ErrCouponValidationPending
	case st.InFlight():
		return nil, purchase.ErrAttemptInFlight
	case st == purchase.StateActivated:
		return nil, purchase.ErrAlreadyActivated
	}

	if s.ctx.Err() != nil {
		return nil, ErrSessionNotFound
	}

	lease, err := svc.locks.Acquire(ctx, s.lockKey(), svc.cfg.AttemptLockTTL)
	if err != nil {
		if errors.Is(err, attemptlock.ErrLocked) {
			return nil, errors.Join(purchase.ErrAttemptInFlight, err)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	run := async.Go(s.ctx, s.orch.Purchase)
	s.run = run
	s.runDone = false
	s.notice = ""

	// Completes even if the session closed before the attempt started.
	go func() {
		receipt, err := run.Await(context.Background())
		svc.release(s, lease)
		s.finishRun(receipt, err)
	}()
	return run, nil
}

// CloseSession removes the session and dismisses its open checkout, if any.
// It returns once the dismissed attempt has ended or ctx is done. Sessions
// waiting on the backend for an order or a verification cannot be closed.
func (svc *Service) CloseSession(ctx context.Context, s *Session) error {
	if st := s.orch.State(); st == purchase.StateOrderPending || st == purchase.StateVerifying {
		return purchase.ErrAttemptInFlight
	}
	svc.sessions.Delete(s.ID)
	if s.currentRun() == nil {
		return nil
	}
	return s.waitFor(ctx, s.runFinished)
}

func (svc *Service) release(s *Session, lease *attemptlock.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := svc.locks.Release(ctx, lease); err != nil {
		s.log.WarnContext(ctx, "attempt lease release failed", logger.Error(err))
	}
}

// CheckoutOptions returns the widget options of the session's open
// checkout.
func (svc *Service) CheckoutOptions(s *Session) (gateway.Options, bool) {
	if s.orch.State() != purchase.StateCollecting {
		return gateway.Options{}, false
	}
	attempt, ok := s.orch.Attempt()
	if !ok || attempt.Order == nil {
		return gateway.Options{}, false
	}
	return svc.relay.Options(attempt.Order.OrderID)
}

// CompletePayment delivers the widget's success payload to the session's
// open checkout. The payload's order id is checked by the verifier, not here.
func (svc *Service) CompletePayment(s *Session, payload gateway.SuccessPayload) error {
	opts, ok := svc.CheckoutOptions(s)
	if !ok {
		return ErrNoOpenCheckout
	}
	return svc.relay.Succeed(opts.OrderID, payload)
}

// DismissPayment reports that the user closed the widget.
func (svc *Service) DismissPayment(s *Session) error {
	opts, ok := svc.CheckoutOptions(s)
	if !ok {
		return ErrNoOpenCheckout
	}
	return svc.relay.Dismiss(opts.OrderID)
}

// collector opens the relay-backed widget for one collection, describing
// the plan of the running attempt.
func (svc *Service) collector(s *Session, pricing purchase.CategoryPricing) purchase.PaymentCollector {
	widget := notifyingWidget{Widget: svc.relay, opened: s.notify}
	return purchase.PaymentCollectorFunc(func(ctx context.Context, order purchase.PaymentOrder, prefill purchase.Prefill) (*purchase.CollectedPayment, error) {
		plan := s.orch.Plan()
		if attempt, ok := s.orch.Attempt(); ok {
			plan = attempt.Plan
		}
		bridge := gateway.NewBridge(svc.loader, widget,
			gateway.WithMerchantName(svc.cfg.MerchantName),
			gateway.WithDescription(Description(pricing, plan)),
			gateway.WithThemeColor(svc.cfg.ThemeColor),
			gateway.WithBridgeLogger(s.log),
		)
		return bridge.Collect(ctx, order, prefill)
	})
}

// Description is the purchase description shown in the payment widget.
func Description(pricing purchase.CategoryPricing, plan purchase.Plan) string {
	return fmt.Sprintf("Subscription for %s (%s)", strings.TrimSpace(pricing.DisplayName()), plan)
}

// notifyingWidget reports a successful Open so waiters see the checkout.
type notifyingWidget struct {
	gateway.Widget
	opened func()
}

func (w notifyingWidget) Open(ctx context.Context, opts gateway.Options, cb gateway.Callbacks) error {
	if err := w.Widget.Open(ctx, opts, cb); err != nil {
		return err
	}
	w.opened()
	return nil
}
