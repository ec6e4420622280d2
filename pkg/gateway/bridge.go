package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/checkoutkit/pkg/checkout"
	"github.com/dmitrymomot/checkoutkit/pkg/logger"
)

// Bridge collects payments through a Widget.
type Bridge struct {
	loader      ScriptLoader
	widget      Widget
	name        string
	description string
	themeColor  string
	log         *slog.Logger
}

var _ checkout.PaymentCollector = (*Bridge)(nil)

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithMerchantName sets the name shown in the widget header.
func WithMerchantName(name string) BridgeOption {
	return func(b *Bridge) { b.name = name }
}

// WithDescription sets the purchase description shown in the widget.
func WithDescription(desc string) BridgeOption {
	return func(b *Bridge) { b.description = desc }
}

// WithThemeColor sets the widget accent color, e.g. "#2563eb".
func WithThemeColor(color string) BridgeOption {
	return func(b *Bridge) { b.themeColor = color }
}

// WithBridgeLogger sets the logger. Nil is ignored.
func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBridge creates a collector. Panics if loader or widget is nil.
func NewBridge(loader ScriptLoader, widget Widget, opts ...BridgeOption) *Bridge {
	if loader == nil {
		panic("gateway: script loader cannot be nil")
	}
	if widget == nil {
		panic("gateway: widget cannot be nil")
	}
	b := &Bridge{loader: loader, widget: widget, log: logger.Discard()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OptionsFor builds the widget options for an order.
func (b *Bridge) OptionsFor(order checkout.PaymentOrder, prefill checkout.Prefill) Options {
	return Options{
		Key:         order.GatewayKey,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        b.name,
		Description: b.description,
		OrderID:     order.OrderID,
		Prefill:     Prefill{Name: prefill.Name, Email: prefill.Email},
		Theme:       Theme{Color: b.themeColor},
	}
}

type outcome struct {
	payment   *SuccessPayload
	dismissed bool
}

// Collect opens the widget for order and blocks until it reports an outcome
// or ctx is done. There is no internal timeout.
func (b *Bridge) Collect(ctx context.Context, order checkout.PaymentOrder, prefill checkout.Prefill) (*checkout.CollectedPayment, error) {
	if err := b.loader.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Join(checkout.ErrCancelled, err)
		}
		return nil, errors.Join(checkout.ErrGatewayUnavailable, err)
	}

	result := make(chan outcome, 1)
	var once sync.Once
	deliver := func(o outcome) {
		once.Do(func() { result <- o })
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := b.widget.Open(wctx, b.OptionsFor(order, prefill), Callbacks{
		OnSuccess: func(p SuccessPayload) { deliver(outcome{payment: &p}) },
		OnDismiss: func() { deliver(outcome{dismissed: true}) },
	})
	if err != nil {
		b.log.ErrorContext(ctx, "widget open failed", logger.OrderID(order.OrderID), logger.Error(err))
		return nil, errors.Join(checkout.ErrGatewayUnavailable, ErrWidgetOpenFailed, err)
	}
	b.log.DebugContext(ctx, "widget opened", logger.OrderID(order.OrderID))

	var o outcome
	select {
	case o = <-result:
	case <-ctx.Done():
		// A success already delivered means the payment was captured and
		// still has to be verified.
		select {
		case o = <-result:
		default:
			return nil, errors.Join(checkout.ErrCancelled, ctx.Err())
		}
	}
	if o.dismissed {
		return nil, checkout.ErrCancelled
	}
	return &checkout.CollectedPayment{
		GatewayPaymentID: o.payment.PaymentID,
		GatewayOrderID:   o.payment.OrderID,
		GatewaySignature: o.payment.Signature,
	}, nil
}
