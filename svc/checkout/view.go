package checkout

import (
	"errors"
	"time"

	purchase "github.com/dmitrymomot/checkoutkit/pkg/checkout"
	"github.com/dmitrymomot/checkoutkit/pkg/gateway"
	"github.com/dmitrymomot/checkoutkit/pkg/money"
)

// SessionView is everything the checkout screen renders.
type SessionView struct {
	ID        string           `json:"id"`
	State     purchase.State   `json:"state"`
	Category  CategoryView     `json:"category"`
	Plan      purchase.Plan    `json:"plan"`
	Coupon    *CouponView      `json:"coupon,omitempty"`
	Quote     QuoteView        `json:"quote"`
	ScriptURL string           `json:"script_url"`
	Checkout  *gateway.Options `json:"checkout,omitempty"`
	Attempt   *AttemptView     `json:"attempt,omitempty"`
	Receipt   *ReceiptView     `json:"receipt,omitempty"`
	Notice    string           `json:"notice,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type CategoryView struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Currency             string `json:"currency"`
	MonthlyPrice         int64  `json:"monthly_price"`
	MonthlyPriceText     string `json:"monthly_price_text"`
	YearlyPrice          int64  `json:"yearly_price"`
	YearlyPriceText      string `json:"yearly_price_text"`
	YearlySavingsPercent int    `json:"yearly_savings_percent"`
}

type CouponView struct {
	Code          string                `json:"code"`
	DiscountType  purchase.DiscountType `json:"discount_type"`
	DiscountValue float64               `json:"discount_value"`
	ExpiresAt     *time.Time            `json:"expires_at,omitempty"`
}

// QuoteView carries amounts in minor units alongside their formatted text.
// DisplayAmount is the order amount once an order exists.
type QuoteView struct {
	BasePrice         int64  `json:"base_price"`
	BasePriceText     string `json:"base_price_text"`
	DiscountAmount    int64  `json:"discount_amount"`
	DiscountText      string `json:"discount_text"`
	FinalPrice        int64  `json:"final_price"`
	FinalPriceText    string `json:"final_price_text"`
	DisplayAmount     int64  `json:"display_amount"`
	DisplayAmountText string `json:"display_amount_text"`
}

type AttemptView struct {
	ID            string         `json:"id"`
	Number        int            `json:"number"`
	Plan          purchase.Plan  `json:"plan"`
	CouponCode    string         `json:"coupon_code,omitempty"`
	OrderID       string         `json:"order_id,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Outcome       purchase.State `json:"outcome,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}

type ReceiptView struct {
	OrderID       string        `json:"order_id"`
	PaymentID     string        `json:"payment_id"`
	TransactionID string        `json:"transaction_id"`
	Amount        int64         `json:"amount"`
	AmountText    string        `json:"amount_text"`
	Currency      string        `json:"currency"`
	Plan          purchase.Plan `json:"plan"`
	CouponCode    string        `json:"coupon_code,omitempty"`
}

// View renders the current state of a session.
func (svc *Service) View(s *Session) SessionView {
	o := s.orch
	pricing := o.Pricing()
	cur := pricing.Currency
	quote := o.Quote()
	display := o.DisplayAmount()

	v := SessionView{
		ID:       s.ID,
		State:    o.State(),
		Category: categoryView(pricing),
		Plan:     o.Plan(),
		Quote: QuoteView{
			BasePrice:         quote.BasePrice,
			BasePriceText:     money.Format(quote.BasePrice, cur),
			DiscountAmount:    quote.DiscountAmount,
			DiscountText:      money.Format(quote.DiscountAmount, cur),
			FinalPrice:        quote.FinalPrice,
			FinalPriceText:    money.Format(quote.FinalPrice, cur),
			DisplayAmount:     display,
			DisplayAmountText: money.Format(display, cur),
		},
		ScriptURL: svc.loader.URL(),
	}

	if c := o.AppliedCoupon(); c != nil {
		cv := &CouponView{Code: c.Code, DiscountType: c.DiscountType, DiscountValue: c.DiscountValue}
		if !c.ExpiryDate.IsZero() {
			exp := c.ExpiryDate
			cv.ExpiresAt = &exp
		}
		v.Coupon = cv
	}

	if opts, ok := svc.CheckoutOptions(s); ok {
		v.Checkout = &opts
	}

	if a, ok := o.Attempt(); ok {
		av := &AttemptView{
			ID:         a.ID,
			Number:     a.Number,
			Plan:       a.Plan,
			CouponCode: a.CouponCode,
			Outcome:    a.Outcome,
			StartedAt:  a.StartedAt,
		}
		if a.Order != nil {
			av.OrderID = a.Order.OrderID
			av.TransactionID = a.Order.TransactionID
		}
		if a.Finished() {
			fin := a.FinishedAt
			av.FinishedAt = &fin
		}
		v.Attempt = av
	}

	notice, receipt := s.snapshot()
	v.Notice = notice
	if receipt != nil && v.State == purchase.StateActivated {
		v.Receipt = &ReceiptView{
			OrderID:       receipt.OrderID,
			PaymentID:     receipt.PaymentID,
			TransactionID: receipt.TransactionID,
			Amount:        receipt.Amount,
			AmountText:    money.Format(receipt.Amount, receipt.Currency),
			Currency:      receipt.Currency,
			Plan:          receipt.Plan,
			CouponCode:    receipt.CouponCode,
		}
	}
	if err := o.LastError(); err != nil && !errors.Is(err, purchase.ErrCancelled) {
		v.Error = purchase.UserMessage(err)
	}
	return v
}

func categoryView(p purchase.CategoryPricing) CategoryView {
	return CategoryView{
		ID:                   p.CategoryID,
		Name:                 p.DisplayName(),
		Currency:             p.Currency,
		MonthlyPrice:         p.MonthlyPrice,
		MonthlyPriceText:     money.Format(p.MonthlyPrice, p.Currency),
		YearlyPrice:          p.YearlyPrice,
		YearlyPriceText:      money.Format(p.YearlyPrice, p.Currency),
		YearlySavingsPercent: p.YearlySavingsPercent(),
	}
}
