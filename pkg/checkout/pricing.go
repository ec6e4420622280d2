package checkout

import "math"

// DiscountAmount is the discount the coupon gives on base.
// Percent values are rounded half away from zero to a whole minor unit.
// The result is not clamped; Quote clamps the final price instead.
func DiscountAmount(base int64, c Coupon) int64 {
	switch c.DiscountType {
	case DiscountPercent:
		return int64(math.Round(float64(base) * c.DiscountValue / 100))
	case DiscountFixed:
		return int64(math.Round(c.DiscountValue))
	default:
		return 0
	}
}

// Quote computes the price for base with an optional coupon.
func Quote(base int64, coupon *Coupon) PriceQuote {
	q := PriceQuote{BasePrice: base, FinalPrice: base}
	if coupon == nil {
		return q
	}
	q.DiscountAmount = DiscountAmount(base, *coupon)
	q.FinalPrice = max(0, base-q.DiscountAmount)
	return q
}
