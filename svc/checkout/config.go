package checkout

import "time"

// Config holds the checkout service settings. Variables are read with the
// CHECKOUT_ prefix, e.g. CHECKOUT_BACKEND_URL.
type Config struct {
	BackendURL     string        `env:"BACKEND_URL,required"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`
	ProfilePath    string        `env:"PROFILE_PATH" envDefault:"/auth/profile"`

	ScriptURL     string        `env:"SCRIPT_URL" envDefault:"https://checkout.razorpay.com/v1/checkout.js"`
	ScriptTimeout time.Duration `env:"SCRIPT_TIMEOUT" envDefault:"15s"`
	MerchantName  string        `env:"MERCHANT_NAME" envDefault:"eKYC Solutions"`
	ThemeColor    string        `env:"THEME_COLOR" envDefault:"#2563eb"`

	CatalogFile string `env:"CATALOG_FILE" envDefault:"catalog.yaml"`

	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	MaxSessions    int           `env:"MAX_SESSIONS" envDefault:"10000"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	AttemptLockTTL time.Duration `env:"ATTEMPT_LOCK_TTL" envDefault:"1h"`
	CallbackWait   time.Duration `env:"CALLBACK_WAIT" envDefault:"30s"`
	VerifyTimeout  time.Duration `env:"VERIFY_TIMEOUT" envDefault:"30s"`

	// Coupon attempts per user: a burst of CouponAttempts, then one per CouponRefill.
	CouponAttempts int           `env:"COUPON_ATTEMPTS" envDefault:"5"`
	CouponRefill   time.Duration `env:"COUPON_REFILL" envDefault:"1m"`
}

// DefaultConfig returns the defaults for everything but BackendURL.
func DefaultConfig() Config {
	return Config{
		BackendTimeout: 15 * time.Second,
		ProfilePath:    "/auth/profile",
		ScriptURL:      "https://checkout.razorpay.com/v1/checkout.js",
		ScriptTimeout:  15 * time.Second,
		MerchantName:   "eKYC Solutions",
		ThemeColor:     "#2563eb",
		CatalogFile:    "catalog.yaml",
		SessionTTL:     30 * time.Minute,
		MaxSessions:    10000,
		SweepInterval:  time.Minute,
		AttemptLockTTL: time.Hour,
		CallbackWait:   30 * time.Second,
		VerifyTimeout:  30 * time.Second,
		CouponAttempts: 5,
		CouponRefill:   time.Minute,
	}
}
