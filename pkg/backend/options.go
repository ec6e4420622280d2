package backend

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultProfilePath = "/auth/profile"
	defaultUserAgent   = "checkoutkit/1.0"
	maxResponseBody    = 1024 * 64
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header. Empty values are ignored.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithProfilePath sets the path requested to refresh the user profile.
func WithProfilePath(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.profilePath = "/" + strings.TrimLeft(p, "/")
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger for request logs. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
