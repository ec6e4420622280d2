package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/checkoutkit/pkg/logger"
)

// DefaultScriptURL is the hosted checkout script.
const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

const maxScriptSize = 1024 * 1024

// ScriptLoader ensures the widget script is available.
type ScriptLoader interface {
	Load(ctx context.Context) error
}

// Loader fetches the checkout script once. Concurrent callers share one
// request; a failed load is not remembered, so a later call tries again.
type Loader struct {
	url     string
	client  *http.Client
	timeout time.Duration
	log     *slog.Logger

	group   singleflight.Group
	loaded  atomic.Bool
	fetches atomic.Int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithScriptURL overrides DefaultScriptURL. Empty values are ignored.
func WithScriptURL(u string) LoaderOption {
	return func(l *Loader) {
		if u != "" {
			l.url = u
		}
	}
}

// WithLoaderHTTPClient sets the client used to fetch the script. Nil is ignored.
func WithLoaderHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithLoaderTimeout bounds a single fetch. Non-positive values are ignored.
func WithLoaderTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLoaderLogger sets the logger. Nil is ignored.
func WithLoaderLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a script loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		url:     DefaultScriptURL,
		client:  &http.Client{Transport: http.DefaultTransport},
		timeout: 15 * time.Second,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// URL returns the script URL handed to browsers.
func (l *Loader) URL() string { return l.url }

// Loaded reports whether the script has been fetched successfully.
func (l *Loader) Loaded() bool { return l.loaded.Load() }

// Fetches returns the number of network fetches performed.
func (l *Loader) Fetches() int64 { return l.fetches.Load() }

// Load makes the script available, fetching it if it has not been yet.
func (l *Loader) Load(ctx context.Context) error {
	if l.loaded.Load() {
		return nil
	}

	ch := l.group.DoChan(l.url, func() (any, error) {
		if l.loaded.Load() {
			return nil, nil
		}
		// Detached from the first caller so its cancellation does not fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		if err := l.fetch(fctx); err != nil {
			return nil, err
		}
		l.loaded.Store(true)
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return errors.Join(ErrScriptLoadFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			l.log.ErrorContext(ctx, "checkout script load failed", slog.String("url", l.url), logger.Error(res.Err))
			return res.Err
		}
		return nil
	}
}

func (l *Loader) fetch(ctx context.Context) error {
	l.fetches.Add(1)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return errors.Join(ErrScriptLoadFailed, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return errors.Join(ErrScriptLoadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrScriptLoadFailed, resp.StatusCode)
	}
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxScriptSize))
	if err != nil {
		return errors.Join(ErrScriptLoadFailed, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: empty script", ErrScriptLoadFailed)
	}

	l.log.InfoContext(ctx, "checkout script loaded", slog.String("url", l.url), logger.Duration(time.Since(start)))
	return nil
}
