package checkout

import (
	"errors"
	"strings"
)

// Failure kinds. Remote failures are returned as *Error with one of these as Kind.
var (
	ErrInvalidCoupon       = errors.New("invalid coupon")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrCancelled           = errors.New("payment cancelled")
	ErrVerificationFailed  = errors.New("payment verification failed")
)

// Local rejections, returned without any network call.
var (
	ErrEmptyCouponCode         = errors.New("coupon code is empty")
	ErrNoCouponApplied         = errors.New("no coupon applied")
	ErrCouponAlreadyApplied    = errors.New("a coupon is already applied")
	ErrCouponValidationPending = errors.New("coupon validation in progress")
	ErrSelectionLocked         = errors.New("selection is locked while a purchase is in progress")
	ErrAttemptInFlight         = errors.New("a purchase attempt is already in progress")
	ErrAlreadyActivated        = errors.New("subscription already activated")
	ErrInvalidPlan             = errors.New("invalid billing plan")
	ErrInvalidPricing          = errors.New("invalid category pricing")
)

// Fallback messages shown when the backend gives no usable text.
const (
	MessageInvalidCoupon       = "Invalid or expired coupon code."
	MessageOrderCreationFailed = "Could not initiate purchase."
	MessageGatewayUnavailable  = "Payment gateway is unavailable. Please try again."
	MessageCancelled           = "Payment was cancelled."
	MessageVerificationFailed  = "Payment verification failed."
	MessageCouponApplied       = "Coupon applied successfully!"
	MessageCouponRemoved       = "Coupon removed."
	MessageActivated           = "Subscription activated successfully!"
)

var fallbackMessages = map[error]string{
	ErrInvalidCoupon:       MessageInvalidCoupon,
	ErrOrderCreationFailed: MessageOrderCreationFailed,
	ErrGatewayUnavailable:  MessageGatewayUnavailable,
	ErrCancelled:           MessageCancelled,
	ErrVerificationFailed:  MessageVerificationFailed,
}

// Error is a classified purchase failure with a message safe to show to the user.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fallbackMessages[e.Kind]
	}
	if e.Err != nil {
		return e.Kind.Error() + ": " + msg + ": " + e.Err.Error()
	}
	return e.Kind.Error() + ": " + msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UpstreamMessager is implemented by remote errors that carry a message
// written for end users, e.g. the backend's "message" field.
type UpstreamMessager interface {
	UpstreamMessage() string
}

// newError classifies cause under kind. The user message is taken from the
// cause when it carries one, otherwise the kind's fallback is used.
func newError(kind error, cause error) *Error {
	e := &Error{Kind: kind, Err: cause}
	var um UpstreamMessager
	if errors.As(cause, &um) {
		e.Message = strings.TrimSpace(um.UpstreamMessage())
	}
	if e.Message == "" {
		e.Message = fallbackMessages[kind]
	}
	return e
}

func rejectCoupon(msg string) *Error {
	return &Error{Kind: ErrInvalidCoupon, Message: msg}
}

// UserMessage returns a message suitable for display. Raw transport errors are
// never exposed; unclassified errors yield a generic text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if msg, ok := fallbackMessages[e.Kind]; ok {
			return msg
		}
	}
	for kind, msg := range fallbackMessages {
		if errors.Is(err, kind) {
			return msg
		}
	}
	switch {
	case errors.Is(err, ErrEmptyCouponCode):
		return "Please enter a coupon code."
	case errors.Is(err, ErrCouponAlreadyApplied):
		return "A coupon is already applied. Remove it to use another one."
	case errors.Is(err, ErrNoCouponApplied):
		return "No coupon is applied."
	case errors.Is(err, ErrCouponValidationPending):
		return "Please wait while the coupon is being checked."
	case errors.Is(err, ErrSelectionLocked), errors.Is(err, ErrAttemptInFlight):
		return "A payment is already in progress."
	case errors.Is(err, ErrAlreadyActivated):
		return "Your subscription is already active."
	case errors.Is(err, ErrInvalidPlan):
		return "Please choose a monthly or yearly plan."
	}
	return "Something went wrong. Please try again."
}

// IsTerminal reports whether err ended a purchase attempt, after which a new
// attempt with a fresh order may be started.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrGatewayUnavailable) || errors.Is(err, ErrVerificationFailed)
}
