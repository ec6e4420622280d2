package logger

import (
	"context"
	"log/slog"
)

type ctxAttrsKey struct{}

// WithContext returns a context carrying attrs in addition to those already
// stored. Loggers created by New add them to every record logged with it.
func WithContext(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	prev := FromContext(ctx)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxAttrsKey{}, merged)
}

// FromContext returns the attributes stored with WithContext.
func FromContext(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return attrs
}

func attrsFromContext(ctx context.Context) []slog.Attr {
	return FromContext(ctx)
}
