package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/checkoutkit/pkg/checkout"
	"github.com/dmitrymomot/checkoutkit/pkg/logger"
)

// Client talks to the subscription backend.
// Zero value is not usable; use New.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	timeout     time.Duration
	userAgent   string
	profilePath string
	token       string
	validate    *validator.Validate
	log         *slog.Logger
}

var (
	_ checkout.CouponSource     = (*Client)(nil)
	_ checkout.OrderCreator     = (*Client)(nil)
	_ checkout.PaymentConfirmer = (*Client)(nil)
	_ checkout.ProfileRefresher = (*Client)(nil)
)

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL:     u,
		http:        &http.Client{Transport: http.DefaultTransport},
		timeout:     DefaultTimeout,
		userAgent:   defaultUserAgent,
		profilePath: DefaultProfilePath,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustNew is New that panics on error.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// WithToken returns a copy of the client authenticating as the token's owner.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// ValidateCoupon looks up a coupon by code.
func (c *Client) ValidateCoupon(ctx context.Context, code string) (*checkout.Coupon, error) {
	var env couponEnvelope
	if err := c.do(ctx, http.MethodPost, "/coupons/validate", validateCouponRequest{Code: code}, &env); err != nil {
		return nil, err
	}

	payload := env.Data
	if payload == nil {
		payload = &env.couponPayload
	}
	if err := c.validate.Struct(payload); err != nil {
		return nil, errors.Join(ErrInvalidResponse, err)
	}
	if err := c.validate.Struct(payload.discount()); err != nil {
		return nil, errors.Join(ErrInvalidResponse, err)
	}
	coupon := payload.toCoupon()
	if coupon.Code == "" {
		coupon.Code = code
	}
	return coupon, nil
}

// CreateOrder creates a payment order for the selection.
func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.PaymentOrder, error) {
	var resp createOrderResponse
	err := c.do(ctx, http.MethodPost, "/subscriptions/order", createOrderRequest{
		CategoryID: req.CategoryID,
		Plan:       req.Plan.String(),
		CouponCode: req.CouponCode,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, errors.Join(ErrInvalidResponse, err)
	}

	return &checkout.PaymentOrder{
		OrderID:       resp.Order.ID,
		Amount:        resp.Order.Amount,
		Currency:      resp.Order.Currency,
		GatewayKey:    resp.KeyID,
		TransactionID: resp.TransactionID,
	}, nil
}

// VerifyPayment submits the gateway payload for signature verification.
// A 2xx response explicitly marked unsuccessful is ErrVerificationRejected.
func (c *Client) VerifyPayment(ctx context.Context, req checkout.VerifyRequest) error {
	var resp verifyPaymentResponse
	err := c.do(ctx, http.MethodPost, "/subscriptions/verify", verifyPaymentRequest{
		PaymentID:     req.GatewayPaymentID,
		OrderID:       req.GatewayOrderID,
		Signature:     req.GatewaySignature,
		TransactionID: req.TransactionID,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.rejected() {
		return errors.Join(ErrVerificationRejected, &APIError{StatusCode: http.StatusOK, Message: resp.Message})
	}
	return nil
}

// RefreshProfile requests the current user's profile so the backend's view
// of the subscription is reloaded.
func (c *Client) RefreshProfile(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.profilePath, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	start := time.Now()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
		return errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}

	c.log.DebugContext(ctx, "backend request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		logger.Duration(time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: extractMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrInvalidResponse, err)
	}
	return nil
}

// extractMessage reads the user-facing message of an error body.
// Non-JSON bodies yield no message so raw server output is never shown.
func extractMessage(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(eb.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(eb.Error)
}
