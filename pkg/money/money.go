package money

import (
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const defaultScale = 2

// Scale returns the number of minor-unit digits used by the ISO 4217 currency.
// Unknown codes use two digits.
func Scale(code string) int {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return defaultScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// Major converts an amount in minor units to major units, e.g. 49900 paise to 499.
func Major(amount int64, code string) float64 {
	return float64(amount) / math.Pow10(Scale(code))
}

// Format renders an amount in minor units with the currency symbol and English
// digit grouping. Unknown currency codes are rendered as a prefix.
func Format(amount int64, code string) string {
	return FormatIn(language.English, amount, code)
}

// FormatIn is Format for a specific display language.
func FormatIn(tag language.Tag, amount int64, code string) string {
	p := message.NewPrinter(tag)
	code = strings.ToUpper(strings.TrimSpace(code))

	unit, err := currency.ParseISO(code)
	if err != nil {
		digits := p.Sprint(number.Decimal(float64(amount)/math.Pow10(defaultScale), number.Scale(defaultScale)))
		if code == "" {
			return digits
		}
		return code + " " + digits
	}

	scale, _ := currency.Standard.Rounding(unit)
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	major := float64(amount) / math.Pow10(scale)

	return sign + p.Sprint(currency.Symbol(unit)) + p.Sprint(number.Decimal(major, number.Scale(scale)))
}
