// Package logger builds slog loggers with functional options and injects
// attributes carried by context.Context into every record.
//
//	log := logger.New(logger.WithEnvironment("production", "checkoutd"))
//	ctx = logger.WithContext(ctx, logger.SessionID(id))
//	log.InfoContext(ctx, "coupon applied", logger.CouponCode("SAVE10"))
//
// Attribute helpers in attr.go keep key names consistent across packages.
package logger
