package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/checkoutkit/pkg/logger"
	"github.com/dmitrymomot/checkoutkit/pkg/money"
)

// Eligibility messages, checked in this order.
const (
	MessageCouponExpired   = "This coupon has expired."
	MessageCouponExhausted = "This coupon has reached its usage limit."
	MessageCouponMalformed = "This coupon cannot be applied."
)

// CouponContext is the selection a coupon is validated against.
type CouponContext struct {
	CategoryID string
	BasePrice  int64
	Currency   string
}

// NormalizeCouponCode trims and upper-cases a user supplied code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckEligibility applies the local coupon rules. The first failing rule
// wins: expiry, usage cap, category, minimum amount.
func CheckEligibility(c Coupon, cc CouponContext, now time.Time) error {
	if !now.Before(c.ExpiryDate) {
		return rejectCoupon(MessageCouponExpired)
	}
	if c.Exhausted() {
		return rejectCoupon(MessageCouponExhausted)
	}
	if !c.AppliesTo(cc.CategoryID) {
		return rejectCoupon(fmt.Sprintf("This coupon is not valid for the %q category.", categoryDisplayName(cc.CategoryID)))
	}
	if c.MinAmount > 0 && cc.BasePrice < c.MinAmount {
		return rejectCoupon(fmt.Sprintf("This coupon requires a minimum purchase of %s.", money.Format(c.MinAmount, cc.Currency)))
	}
	return nil
}

// CouponValidator resolves a code with the coupon service and checks it
// against the current selection.
type CouponValidator struct {
	source CouponSource
	now    func() time.Time
	log    *slog.Logger
}

// ValidatorOption configures a CouponValidator.
type ValidatorOption func(*CouponValidator)

// WithValidatorClock overrides the clock used for the expiry check.
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *CouponValidator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(l *slog.Logger) ValidatorOption {
	return func(v *CouponValidator) {
		if l != nil {
			v.log = l
		}
	}
}

// NewCouponValidator creates a validator. Panics if source is nil.
func NewCouponValidator(source CouponSource, opts ...ValidatorOption) *CouponValidator {
	if source == nil {
		panic("checkout: coupon source cannot be nil")
	}
	v := &CouponValidator{
		source: source,
		now:    time.Now,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate normalizes code, fetches the policy and applies the local checks.
// An empty code is rejected with ErrEmptyCouponCode without a network call.
func (v *CouponValidator) Validate(ctx context.Context, code string, cc CouponContext) (*Coupon, error) {
	code = NormalizeCouponCode(code)
	if code == "" {
		return nil, ErrEmptyCouponCode
	}

	coupon, err := v.source.ValidateCoupon(ctx, code)
	if err != nil {
		v.log.WarnContext(ctx, "coupon lookup failed", logger.CouponCode(code), logger.Error(err))
		return nil, newError(ErrInvalidCoupon, err)
	}
	if coupon == nil || !coupon.DiscountType.Valid() || coupon.DiscountValue < 0 {
		v.log.WarnContext(ctx, "coupon policy malformed", logger.CouponCode(code))
		return nil, rejectCoupon(MessageCouponMalformed)
	}

	if err := CheckEligibility(*coupon, cc, v.now()); err != nil {
		v.log.InfoContext(ctx, "coupon not eligible", logger.CouponCode(code), logger.Error(err))
		return nil, err
	}

	out := coupon.clone()
	if out.Code == "" {
		out.Code = code
	}
	return out, nil
}
