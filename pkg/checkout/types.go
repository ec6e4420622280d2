package checkout

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Plan is the billing period of a subscription.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// DefaultPlan is the plan selected when a purchase flow starts.
const DefaultPlan = PlanMonthly

func (p Plan) String() string { return string(p) }

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanMonthly || p == PlanYearly
}

// ParsePlan parses a plan name, ignoring case and surrounding spaces.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", ErrInvalidPlan
	}
	return p, nil
}

// CategoryPricing is the immutable price list of a catalog category.
type CategoryPricing struct {
	CategoryID   string
	MonthlyPrice int64
	YearlyPrice  int64
	Currency     string
}

// Validate checks the pricing before a purchase flow is started for it.
func (c CategoryPricing) Validate() error {
	if strings.TrimSpace(c.CategoryID) == "" {
		return ErrInvalidPricing
	}
	if c.MonthlyPrice < 0 || c.YearlyPrice < 0 {
		return ErrInvalidPricing
	}
	return nil
}

// BasePrice returns the undiscounted price of the plan.
func (c CategoryPricing) BasePrice(p Plan) int64 {
	if p == PlanYearly {
		return c.YearlyPrice
	}
	return c.MonthlyPrice
}

// YearlySavingsPercent is how much cheaper the yearly plan is than twelve
// monthly payments, rounded to a whole percent. Zero when there is no monthly price.
func (c CategoryPricing) YearlySavingsPercent() int {
	if c.MonthlyPrice <= 0 {
		return 0
	}
	full := float64(c.MonthlyPrice) * 12
	return int(math.Round((full - float64(c.YearlyPrice)) / full * 100))
}

// DisplayName returns the category id with underscores shown as spaces.
func (c CategoryPricing) DisplayName() string {
	return categoryDisplayName(c.CategoryID)
}

func categoryDisplayName(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}

// DiscountType selects how a coupon's DiscountValue is interpreted.
type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountFixed || t == DiscountPercent
}

// Coupon is a discount policy returned by the coupon service.
// It is treated as read-only; TimesUsed is never changed on the client.
type Coupon struct {
	Code                 string
	DiscountType         DiscountType
	DiscountValue        float64
	ExpiryDate           time.Time
	MaxUses              *int
	TimesUsed            int
	MinAmount            int64
	ApplicableCategories []string
}

// AppliesTo reports whether the coupon may be used for the category.
// An empty category list means every category.
func (c Coupon) AppliesTo(categoryID string) bool {
	return len(c.ApplicableCategories) == 0 || slices.Contains(c.ApplicableCategories, categoryID)
}

// Exhausted reports whether the usage cap has been reached.
func (c Coupon) Exhausted() bool {
	return c.MaxUses != nil && c.TimesUsed >= *c.MaxUses
}

func (c Coupon) clone() *Coupon {
	cp := c
	if c.MaxUses != nil {
		n := *c.MaxUses
		cp.MaxUses = &n
	}
	cp.ApplicableCategories = slices.Clone(c.ApplicableCategories)
	return &cp
}

// PriceQuote is the price shown before an order exists.
type PriceQuote struct {
	BasePrice      int64
	DiscountAmount int64
	FinalPrice     int64
}

// PaymentOrder is a server-created payment intent. Amount is authoritative.
type PaymentOrder struct {
	OrderID       string
	Amount        int64
	Currency      string
	GatewayKey    string
	TransactionID string
}

// Prefill carries customer details passed to the payment widget.
type Prefill struct {
	Name  string
	Email string
}

// CollectedPayment is the widget's success payload.
type CollectedPayment struct {
	GatewayPaymentID string
	GatewayOrderID   string
	GatewaySignature string
}

// Complete reports whether every field of the payload is present.
func (p CollectedPayment) Complete() bool {
	return p.GatewayPaymentID != "" && p.GatewayOrderID != "" && p.GatewaySignature != ""
}

// Receipt describes an activated subscription purchase.
type Receipt struct {
	AttemptID     string
	OrderID       string
	TransactionID string
	PaymentID     string
	Amount        int64
	Currency      string
	Plan          Plan
	CouponCode    string
}

// Attempt is a snapshot of one purchase attempt.
type Attempt struct {
	ID         string
	Number     int
	Plan       Plan
	CouponCode string
	StartedAt  time.Time
	FinishedAt time.Time
	Order      *PaymentOrder
	Outcome    State
	Err        error
}

// Finished reports whether the attempt reached a terminal state.
func (a Attempt) Finished() bool {
	return !a.FinishedAt.IsZero()
}
