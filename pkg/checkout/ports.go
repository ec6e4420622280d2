package checkout

import "context"

// CouponSource looks up a coupon policy by its normalized code.
type CouponSource interface {
	ValidateCoupon(ctx context.Context, code string) (*Coupon, error)
}

// OrderRequest asks the backend for a new payment order.
type OrderRequest struct {
	CategoryID string
	Plan       Plan
	CouponCode string
}

// OrderCreator creates server-side payment orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*PaymentOrder, error)
}

// VerifyRequest carries the widget payload for server-side signature verification.
type VerifyRequest struct {
	GatewayPaymentID string
	GatewayOrderID   string
	GatewaySignature string
	TransactionID    string
}

// PaymentConfirmer verifies a collected payment and activates the subscription.
type PaymentConfirmer interface {
	VerifyPayment(ctx context.Context, req VerifyRequest) error
}

// PaymentCollector hands a created order to the external payment widget and
// blocks until the user completes or dismisses it. A dismissal is reported as
// ErrCancelled, a widget that cannot be started as ErrGatewayUnavailable.
type PaymentCollector interface {
	Collect(ctx context.Context, order PaymentOrder, prefill Prefill) (*CollectedPayment, error)
}

// ProfileRefresher reloads the current user's profile after activation.
type ProfileRefresher interface {
	RefreshProfile(ctx context.Context) error
}

// ProfileRefresherFunc adapts a function to ProfileRefresher.
type ProfileRefresherFunc func(ctx context.Context) error

func (f ProfileRefresherFunc) RefreshProfile(ctx context.Context) error { return f(ctx) }

// PaymentCollectorFunc adapts a function to PaymentCollector.
type PaymentCollectorFunc func(ctx context.Context, order PaymentOrder, prefill Prefill) (*CollectedPayment, error)

func (f PaymentCollectorFunc) Collect(ctx context.Context, order PaymentOrder, prefill Prefill) (*CollectedPayment, error) {
	return f(ctx, order, prefill)
}
