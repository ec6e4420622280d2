package gateway

import "context"

// Options is the configuration handed to the payment widget.
type Options struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

// Prefill fills the customer fields of the widget form.
type Prefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Theme is the widget color scheme.
type Theme struct {
	Color string `json:"color,omitempty"`
}

// SuccessPayload is what the widget reports after a successful payment.
type SuccessPayload struct {
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// Callbacks receive the widget outcome. At most one of them is honored.
type Callbacks struct {
	OnSuccess func(SuccessPayload)
	OnDismiss func()
}

// Widget opens the external payment UI. Open returns once the widget is
// shown; the outcome arrives later through the callbacks. The widget should
// be torn down when ctx is done.
type Widget interface {
	Open(ctx context.Context, opts Options, cb Callbacks) error
}
