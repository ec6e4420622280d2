package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/checkoutkit/pkg/attemptlock"
	purchase "github.com/dmitrymomot/checkoutkit/pkg/checkout"
	"github.com/dmitrymomot/checkoutkit/pkg/gateway"
)

var ErrInvalidRequest = errors.New("invalid request body")

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Session *SessionView `json:"session,omitempty"`
}

// errorStatus maps an error to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUnknownCategory):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, purchase.ErrInvalidPlan), errors.Is(err, purchase.ErrEmptyCouponCode):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, purchase.ErrInvalidCoupon):
		return http.StatusUnprocessableEntity, "invalid_coupon"
	case errors.Is(err, purchase.ErrCouponAlreadyApplied):
		return http.StatusConflict, "coupon_already_applied"
	case errors.Is(err, purchase.ErrNoCouponApplied):
		return http.StatusConflict, "no_coupon_applied"
	case errors.Is(err, purchase.ErrCouponValidationPending):
		return http.StatusConflict, "coupon_validation_pending"
	case errors.Is(err, purchase.ErrSelectionLocked),
		errors.Is(err, purchase.ErrAttemptInFlight),
		errors.Is(err, attemptlock.ErrLocked):
		return http.StatusConflict, "attempt_in_flight"
	case errors.Is(err, purchase.ErrAlreadyActivated):
		return http.StatusConflict, "already_activated"
	case errors.Is(err, ErrNoOpenCheckout), errors.Is(err, gateway.ErrUnknownCheckout):
		return http.StatusConflict, "no_open_checkout"
	case errors.Is(err, purchase.ErrOrderCreationFailed):
		return http.StatusBadGateway, "order_creation_failed"
	case errors.Is(err, purchase.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "gateway_unavailable"
	case errors.Is(err, purchase.ErrVerificationFailed):
		return http.StatusPaymentRequired, "verification_failed"
	case errors.Is(err, ErrSessionLimit):
		return http.StatusServiceUnavailable, "session_limit"
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too_many_attempts"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

// errorMessage returns text safe to show to the user.
func errorMessage(err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "Checkout session not found."
	case errors.Is(err, ErrUnknownCategory):
		return "Unknown subscription category."
	case errors.Is(err, ErrInvalidRequest):
		return "Malformed request."
	case errors.As(err, &verrs):
		return validationMessage(verrs)
	case errors.Is(err, ErrNoOpenCheckout), errors.Is(err, gateway.ErrUnknownCheckout):
		return "No payment is waiting for this checkout."
	case errors.Is(err, ErrSessionLimit):
		return "The service is busy. Please try again shortly."
	case errors.Is(err, ErrTooManyAttempts):
		return "Too many coupon attempts. Please wait a moment and try again."
	}
	return purchase.UserMessage(err)
}

func validationMessage(verrs validator.ValidationErrors) string {
	if len(verrs) == 0 {
		return "Invalid request."
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required."
	case "email":
		return fe.Field() + " must be a valid email address."
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param() + "."
	case "max":
		return fe.Field() + " is too long."
	}
	return fe.Field() + " is invalid."
}
