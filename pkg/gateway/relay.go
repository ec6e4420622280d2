package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/checkoutkit/pkg/logger"
)

// Relay is a Widget whose outcome is reported from outside, typically by
// HTTP handlers receiving the browser's widget callbacks. Open checkouts are
// keyed by order id and forgotten when their context ends.
type Relay struct {
	mu   sync.Mutex
	open map[string]*parked
	log  *slog.Logger
}

type parked struct {
	opts     Options
	cb       Callbacks
	openedAt time.Time
}

var _ Widget = (*Relay)(nil)

// NewRelay creates an empty relay.
func NewRelay(log *slog.Logger) *Relay {
	if log == nil {
		log = logger.Discard()
	}
	return &Relay{open: make(map[string]*parked), log: log}
}

// Open parks the checkout until Succeed or Dismiss is called for its order.
func (r *Relay) Open(ctx context.Context, opts Options, cb Callbacks) error {
	p := &parked{opts: opts, cb: cb, openedAt: time.Now()}

	r.mu.Lock()
	if _, exists := r.open[opts.OrderID]; exists {
		r.mu.Unlock()
		return ErrCheckoutOpen
	}
	r.open[opts.OrderID] = p
	r.mu.Unlock()

	context.AfterFunc(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.open[opts.OrderID] == p {
			delete(r.open, opts.OrderID)
		}
	})
	return nil
}

// Options returns the widget options of an open checkout.
func (r *Relay) Options(orderID string) (Options, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.open[orderID]
	if !ok {
		return Options{}, false
	}
	return p.opts, true
}

// Len returns the number of open checkouts.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// Succeed delivers the success payload for an open checkout.
func (r *Relay) Succeed(orderID string, payload SuccessPayload) error {
	p, err := r.take(orderID)
	if err != nil {
		return err
	}
	r.log.Info("checkout completed", logger.OrderID(orderID), logger.Duration(time.Since(p.openedAt)))
	if p.cb.OnSuccess != nil {
		p.cb.OnSuccess(payload)
	}
	return nil
}

// Dismiss reports that the user closed the widget.
func (r *Relay) Dismiss(orderID string) error {
	p, err := r.take(orderID)
	if err != nil {
		return err
	}
	r.log.Info("checkout dismissed", logger.OrderID(orderID), logger.Duration(time.Since(p.openedAt)))
	if p.cb.OnDismiss != nil {
		p.cb.OnDismiss()
	}
	return nil
}

func (r *Relay) take(orderID string) (*parked, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.open[orderID]
	if !ok {
		return nil, ErrUnknownCheckout
	}
	delete(r.open, orderID)
	return p, nil
}
