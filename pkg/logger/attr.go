package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Component(name string) slog.Attr { return slog.String("component", name) }

func SessionID(id string) slog.Attr { return slog.String("session_id", id) }

func AttemptID(id string) slog.Attr { return slog.String("attempt_id", id) }

func CategoryID(id string) slog.Attr { return slog.String("category_id", id) }

func OrderID(id string) slog.Attr { return slog.String("order_id", id) }

func TransactionID(id string) slog.Attr { return slog.String("transaction_id", id) }

func Plan(name string) slog.Attr { return slog.String("plan", name) }

func State(name string) slog.Attr { return slog.String("state", name) }

func Event(name string) slog.Attr { return slog.String("event", name) }

// CouponCode records a coupon code. Empty codes produce an empty Attr.
func CouponCode(code string) slog.Attr {
	if code == "" {
		return slog.Attr{}
	}
	return slog.String("coupon_code", code)
}

// Amount groups a minor-unit amount with its currency.
func Amount(amount int64, currency string) slog.Attr {
	return slog.Group("amount", slog.Int64("value", amount), slog.String("currency", currency))
}

// Transition records a state change as "from -> to".
func Transition(from, to string) slog.Attr {
	return slog.String("transition", from+" -> "+to)
}

func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }
