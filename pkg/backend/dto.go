package backend

import (
	"time"

	"github.com/dmitrymomot/checkoutkit/pkg/checkout"
)

type validateCouponRequest struct {
	Code string `json:"code"`
}

type couponDiscount struct {
	Type  string  `json:"type" validate:"required,oneof=fixed percent"`
	Value float64 `json:"value" validate:"gte=0"`
}

// couponPayload accepts the discount either flat (discountType,
// discountValue) or nested under "discount".
type couponPayload struct {
	Code                 string          `json:"code"`
	DiscountType         string          `json:"discountType"`
	DiscountValue        float64         `json:"discountValue"`
	Discount             *couponDiscount `json:"discount"`
	ExpiryDate           time.Time       `json:"expiryDate" validate:"required"`
	MaxUses              *int            `json:"maxUses" validate:"omitempty,gte=0"`
	TimesUsed            int             `json:"timesUsed" validate:"gte=0"`
	MinAmount            int64           `json:"minAmount" validate:"gte=0"`
	ApplicableCategories []string        `json:"applicableCategories"`
}

func (p couponPayload) discount() couponDiscount {
	if p.Discount != nil {
		return *p.Discount
	}
	return couponDiscount{Type: p.DiscountType, Value: p.DiscountValue}
}

// couponEnvelope accepts the coupon wrapped in "data" or at the top level.
type couponEnvelope struct {
	Data *couponPayload `json:"data"`
	couponPayload
}

func (p couponPayload) toCoupon() *checkout.Coupon {
	d := p.discount()
	c := &checkout.Coupon{
		Code:                 checkout.NormalizeCouponCode(p.Code),
		DiscountType:         checkout.DiscountType(d.Type),
		DiscountValue:        d.Value,
		ExpiryDate:           p.ExpiryDate,
		TimesUsed:            p.TimesUsed,
		MinAmount:            p.MinAmount,
		ApplicableCategories: p.ApplicableCategories,
	}
	// The backend stores 0 for "no cap".
	if p.MaxUses != nil && *p.MaxUses > 0 {
		n := *p.MaxUses
		c.MaxUses = &n
	}
	return c
}

type createOrderRequest struct {
	CategoryID string `json:"categoryId"`
	Plan       string `json:"plan"`
	CouponCode string `json:"couponCode,omitempty"`
}

type gatewayOrder struct {
	ID       string `json:"id" validate:"required"`
	Amount   int64  `json:"amount" validate:"gte=0"`
	Currency string `json:"currency" validate:"required"`
}

type createOrderResponse struct {
	Order         gatewayOrder `json:"order"`
	KeyID         string       `json:"key_id" validate:"required"`
	TransactionID string       `json:"transactionId" validate:"required"`
}

type verifyPaymentRequest struct {
	PaymentID     string `json:"gatewayPaymentId"`
	OrderID       string `json:"gatewayOrderId"`
	Signature     string `json:"gatewaySignature"`
	TransactionID string `json:"transactionId"`
}

type verifyPaymentResponse struct {
	Success   *bool  `json:"success"`
	Activated *bool  `json:"activated"`
	Message   string `json:"message"`
}

func (r verifyPaymentResponse) rejected() bool {
	return (r.Success != nil && !*r.Success) || (r.Activated != nil && !*r.Activated)
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
