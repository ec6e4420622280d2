package checkout_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/checkoutkit/pkg/attemptlock"
	"github.com/dmitrymomot/checkoutkit/pkg/backend"
	purchase "github.com/dmitrymomot/checkoutkit/pkg/checkout"
	"github.com/dmitrymomot/checkoutkit/svc/checkout"
)

// fakeBackend mimics the subscription API.
type fakeBackend struct {
	mu           sync.Mutex
	orders       int
	orderStatus  int
	verifyStatus int
	verifyCalls  int
	verified     map[string]any
	profileCalls int
	tokens       []string
}

func (b *fakeBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.tokens = append(b.tokens, r.Header.Get("Authorization"))
			b.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/coupons/validate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "SAVE10" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Coupon not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"code":                 "SAVE10",
			"discountType":         "percent",
			"discountValue":        10,
			"expiryDate":           "2099-01-01T00:00:00Z",
			"maxUses":              0,
			"timesUsed":            12,
			"minAmount":            0,
			"applicableCategories": []string{"class_10"},
		}})
	})

	r.Post("/subscriptions/order", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CategoryID string `json:"categoryId"`
			Plan       string `json:"plan"`
			CouponCode string `json:"couponCode"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		status := b.orderStatus
		b.orders++
		n := b.orders
		b.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": "Order service down"})
			return
		}

		amount := int64(49900)
		if req.Plan == "yearly" {
			amount = 499000
		}
		if req.CouponCode != "" {
			amount -= amount / 10
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"order":         map[string]any{"id": "order_" + strconv.Itoa(n), "amount": amount, "currency": "INR"},
			"key_id":        "rzp_test_key",
			"transactionId": "txn_" + strconv.Itoa(n),
		})
	})

	r.Post("/subscriptions/verify", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.verifyCalls++
		b.verified = body
		status := b.verifyStatus
		b.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": "Invalid payment signature"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"activated": true})
	})

	r.Get("/auth/profile", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		b.profileCalls++
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"id": "u1"})
	})
	return r
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) get(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fixture struct {
	t       *testing.T
	backend *fakeBackend
	svc     *checkout.Service
	api     *httptest.Server
	script  *httptest.Server
}

func newFixture(t *testing.T, opts ...func(*checkout.Config)) *fixture {
	t.Helper()

	fb := &fakeBackend{}
	backendSrv := httptest.NewServer(fb.router())
	t.Cleanup(backendSrv.Close)

	script := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout.js" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "window.Razorpay = function() {};")
	}))
	t.Cleanup(script.Close)

	cfg := checkout.DefaultConfig()
	cfg.BackendURL = backendSrv.URL
	cfg.ScriptURL = script.URL + "/checkout.js"
	cfg.ScriptTimeout = 2 * time.Second
	cfg.CallbackWait = 2 * time.Second
	cfg.VerifyTimeout = 2 * time.Second
	for _, opt := range opts {
		opt(&cfg)
	}

	api, err := backend.New(cfg.BackendURL, backend.WithTimeout(2*time.Second))
	require.NoError(t, err)

	svc, err := checkout.NewService(cfg, checkout.Deps{
		Catalog: checkout.NewInMemCatalog(purchase.CategoryPricing{
			CategoryID:   "class_10",
			MonthlyPrice: 49900,
			YearlyPrice:  499000,
			Currency:     "INR",
		}),
		Backend: api,
		Locks:   attemptlock.NewMemory(),
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	srv := httptest.NewServer(svc.Handler(func(context.Context) error { return nil }))
	t.Cleanup(srv.Close)

	return &fixture{t: t, backend: fb, svc: svc, api: srv, script: script}
}

func (f *fixture) do(method, path, token string, body any) (int, []byte) {
	f.t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.api.URL+path, rd)
	require.NoError(f.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.api.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	return resp.StatusCode, raw
}

func (f *fixture) view(method, path, token string, body any, wantStatus int) checkout.SessionView {
	f.t.Helper()
	status, raw := f.do(method, path, token, body)
	require.Equal(f.t, wantStatus, status, string(raw))
	var v checkout.SessionView
	require.NoError(f.t, json.Unmarshal(raw, &v))
	return v
}

func (f *fixture) fail(method, path, token string, body any, wantStatus int) checkout.ErrorResponse {
	f.t.Helper()
	status, raw := f.do(method, path, token, body)
	require.Equal(f.t, wantStatus, status, string(raw))
	var e checkout.ErrorResponse
	require.NoError(f.t, json.Unmarshal(raw, &e))
	return e
}

func (f *fixture) open(token, userID string) checkout.SessionView {
	f.t.Helper()
	return f.view(http.MethodPost, "/sessions", token, map[string]string{
		"category_id": "class_10",
		"user_id":     userID,
		"name":        "Asha Rao",
		"email":       "asha@example.com",
	}, http.StatusCreated)
}

func success(orderID string) map[string]string {
	return map[string]string{
		"razorpay_payment_id": "pay_1",
		"razorpay_order_id":   orderID,
		"razorpay_signature":  "sig_1",
	}
}

func TestCheckout_HappyPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v := f.open("tok-1", "u1")
	assert.Equal(t, purchase.StateIdle, v.State)
	assert.Equal(t, purchase.PlanMonthly, v.Plan)
	assert.Equal(t, "class 10", v.Category.Name)
	assert.Equal(t, 17, v.Category.YearlySavingsPercent)
	assert.Equal(t, int64(49900), v.Quote.FinalPrice)
	assert.Equal(t, f.script.URL+"/checkout.js", v.ScriptURL)
	base := "/sessions/" + v.ID

	v = f.view(http.MethodPut, base+"/plan", "tok-1", map[string]string{"plan": "yearly"}, http.StatusOK)
	assert.Equal(t, purchase.PlanYearly, v.Plan)
	assert.Equal(t, int64(499000), v.Quote.BasePrice)

	v = f.view(http.MethodPost, base+"/coupon", "tok-1", map[string]string{"code": " save10 "}, http.StatusOK)
	assert.Equal(t, purchase.StateCouponApplied, v.State)
	require.NotNil(t, v.Coupon)
	assert.Equal(t, "SAVE10", v.Coupon.Code)
	assert.Equal(t, int64(49900), v.Quote.DiscountAmount)
	assert.Equal(t, int64(449100), v.Quote.FinalPrice)
	assert.Equal(t, purchase.MessageCouponApplied, v.Notice)

	v = f.view(http.MethodPost, base+"/purchase", "tok-1", nil, http.StatusOK)
	assert.Equal(t, purchase.StateCollecting, v.State)
	require.NotNil(t, v.Checkout)
	assert.Equal(t, "order_1", v.Checkout.OrderID)
	assert.Equal(t, "rzp_test_key", v.Checkout.Key)
	assert.Equal(t, int64(449100), v.Checkout.Amount)
	assert.Equal(t, "Subscription for class 10 (yearly)", v.Checkout.Description)
	assert.Equal(t, "Asha Rao", v.Checkout.Prefill.Name)
	assert.Equal(t, "asha@example.com", v.Checkout.Prefill.Email)
	assert.Equal(t, int64(449100), v.Quote.DisplayAmount)

	// Selection is locked while the widget is open.
	e := f.fail(http.MethodPut, base+"/plan", "tok-1", map[string]string{"plan": "monthly"}, http.StatusConflict)
	assert.Equal(t, "attempt_in_flight", e.Code)

	v = f.view(http.MethodPost, base+"/payment", "tok-1", success("order_1"), http.StatusOK)
	assert.Equal(t, purchase.StateActivated, v.State)
	assert.Equal(t, purchase.MessageActivated, v.Notice)
	require.NotNil(t, v.Receipt)
	assert.Equal(t, "order_1", v.Receipt.OrderID)
	assert.Equal(t, "pay_1", v.Receipt.PaymentID)
	assert.Equal(t, "txn_1", v.Receipt.TransactionID)
	assert.Equal(t, "SAVE10", v.Receipt.CouponCode)
	assert.Nil(t, v.Checkout)

	f.backend.get(func(b *fakeBackend) {
		assert.Equal(t, 1, b.verifyCalls)
		assert.Equal(t, "txn_1", b.verified["transactionId"])
		assert.Equal(t, "order_1", b.verified["gatewayOrderId"])
		assert.Equal(t, 1, b.profileCalls)
		for _, tok := range b.tokens {
			assert.Equal(t, "Bearer tok-1", tok)
		}
	})

	e = f.fail(http.MethodPost, base+"/purchase", "tok-1", nil, http.StatusConflict)
	assert.Equal(t, "already_activated", e.Code)
	require.NotNil(t, e.Session)
	assert.Equal(t, purchase.StateActivated, e.Session.State)
}

func TestCheckout_DismissThenRetry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	base := "/sessions/" + f.open("tok", "").ID
	v := f.view(http.MethodPost, base+"/purchase", "tok", nil, http.StatusOK)
	require.NotNil(t, v.Checkout)
	assert.Equal(t, "order_1", v.Checkout.OrderID)

	v = f.view(http.MethodPost, base+"/dismiss", "tok", nil, http.StatusOK)
	assert.Equal(t, purchase.StateCancelled, v.State)
	assert.Equal(t, purchase.MessageCancelled, v.Notice)
	assert.Empty(t, v.Error)
	require.NotNil(t, v.Attempt)
	assert.Equal(t, purchase.StateCancelled, v.Attempt.Outcome)

	v = f.view(http.MethodPost, base+"/purchase", "tok", nil, http.StatusOK)
	require.NotNil(t, v.Checkout)
	assert.Equal(t, "order_2", v.Checkout.OrderID, "a new attempt gets a fresh order")
	require.NotNil(t, v.Attempt)
	assert.Equal(t, 2, v.Attempt.Number)
	assert.Empty(t, v.Notice)

	f.backend.get(func(b *fakeBackend) {
		assert.Equal(t, 0, b.verifyCalls)
	})
}

func TestCheckout_Coupons(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	base := "/sessions/" + f.open("tok", "").ID

	e := f.fail(http.MethodPost, base+"/coupon", "tok", map[string]string{"code": "BOGUS"}, http.StatusUnprocessableEntity)
	assert.Equal(t, "invalid_coupon", e.Code)
	assert.Equal(t, "Coupon not found", e.Error)
	require.NotNil(t, e.Session)
	assert.Equal(t, purchase.StateIdle, e.Session.State)
	assert.Nil(t, e.Session.Coupon)

	e = f.fail(http.MethodPost, base+"/coupon", "tok", map[string]string{"code": "   "}, http.StatusUnprocessableEntity)
	assert.Equal(t, "invalid_input", e.Code)

	e = f.fail(http.MethodDelete, base+"/coupon", "tok", nil, http.StatusConflict)
	assert.Equal(t, "no_coupon_applied", e.Code)

	f.view(http.MethodPost, base+"/coupon", "tok", map[string]string{"code": "SAVE10"}, http.StatusOK)

	e = f.fail(http.MethodPost, base+"/coupon", "tok", map[string]string{"code": "OTHER"}, http.StatusConflict)
	assert.Equal(t, "coupon_already_applied", e.Code)
	require.NotNil(t, e.Session.Coupon)
	assert.Equal(t, "SAVE10", e.Session.Coupon.Code)

	v := f.view(http.MethodDelete, base+"/coupon", "tok", nil, http.StatusOK)
	assert.Nil(t, v.Coupon)
	assert.Equal(t, purchase.MessageCouponRemoved, v.Notice)
	assert.Equal(t, int64(49900), v.Quote.FinalPrice)
}

func TestCheckout_VerificationFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.set(func(b *fakeBackend) { b.verifyStatus = http.StatusBadRequest })

	base := "/sessions/" + f.open("tok", "").ID
	f.view(http.MethodPost, base+"/purchase", "tok", nil, http.StatusOK)

	e := f.fail(http.MethodPost, base+"/payment", "tok", success("order_1"), http.StatusPaymentRequired)
	assert.Equal(t, "verification_failed", e.Code)
	assert.Equal(t, "Invalid payment signature", e.Error)
	require.NotNil(t, e.Session)
	assert.Equal(t, purchase.StateFailed, e.Session.State)
	assert.Equal(t, "Invalid payment signature", e.Session.Error)

	v := f.view(http.MethodPost, base+"/reset", "tok", nil, http.StatusOK)
	assert.Equal(t, purchase.StateIdle, v.State)
	assert.Empty(t, v.Error)
}

func TestCheckout_OrderMismatchIsNotVerified(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	base := "/sessions/" + f.open("tok", "").ID
	f.view(http.MethodPost, base+"/purchase", "tok", nil, http.StatusOK)

	e := f.fail(http.MethodPost, base+"/payment", "tok", success("order_other"), http.StatusPaymentRequired)
	assert.Equal(t, "verification_failed", e.Code)
	f.backend.get(func(b *fakeBackend) {
		assert.Equal(t, 0, b.verifyCalls)
	})
}

func TestCheckout_OrderCreationFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.set(func(b *fakeBackend) { b.orderStatus = http.StatusInternalServerError })

	base := "/sessions/" + f.open("tok", "").ID
	e := f.fail(http.MethodPost, base+"/purchase", "tok", nil, http.StatusBadGateway)
	assert.Equal(t, "order_creation_failed", e.Code)
	require.NotNil(t, e.Session)
	assert.Equal(t, purchase.StateIdle, e.Session.State)
	assert.Nil(t, e.Session.Checkout)

	// The attempt lease was released, so a retry goes through.
	f.backend.set(func(b *fakeBackend) { b.orderStatus = 0 })
	v := f.view(http.MethodPost, base+"/purchase", "tok", nil, http.StatusOK)
	assert.Equal(t, purchase.StateCollecting, v.State)
}

func TestCheckout_GatewayUnavailable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *checkout.Config) { c.ScriptURL = "http://127.0.0.1:1/missing.js" })

	base := "/sessions/" + f.open("tok", "").ID
	e := f.fail(http.MethodPost, base+"/purchase", "tok", nil, http.StatusServiceUnavailable)
	assert.Equal(t, "gateway_unavailable", e.Code)
	require.NotNil(t, e.Session)
	assert.Equal(t, purchase.StateFailed, e.Session.State)
}

func TestCheckout_OneAttemptPerUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	first := "/sessions/" + f.open("tok", "u42").ID
	second := "/sessions/" + f.open("tok", "u42").ID

	f.view(http.MethodPost, first+"/purchase", "tok", nil, http.StatusOK)
	e := f.fail(http.MethodPost, second+"/purchase", "tok", nil, http.StatusConflict)
	assert.Equal(t, "attempt_in_flight", e.Code)

	f.view(http.MethodPost, first+"/dismiss", "tok", nil, http.StatusOK)
	f.view(http.MethodPost, second+"/purchase", "tok", nil, http.StatusOK)
}

func TestCheckout_NoOpenCheckout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	base := "/sessions/" + f.open("tok", "").ID

	e := f.fail(http.MethodPost, base+"/payment", "tok", success("order_1"), http.StatusConflict)
	assert.Equal(t, "no_open_checkout", e.Code)

	e = f.fail(http.MethodPost, base+"/dismiss", "tok", nil, http.StatusConflict)
	assert.Equal(t, "no_open_checkout", e.Code)
}

func TestCheckout_SessionAccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.open("owner", "").ID

	f.view(http.MethodGet, "/sessions/"+id, "owner", nil, http.StatusOK)

	e := f.fail(http.MethodGet, "/sessions/"+id, "intruder", nil, http.StatusNotFound)
	assert.Equal(t, "not_found", e.Code)
	assert.Nil(t, e.Session)

	f.fail(http.MethodGet, "/sessions/"+id, "", nil, http.StatusNotFound)
	f.fail(http.MethodGet, "/sessions/nope", "owner", nil, http.StatusNotFound)

	status, _ := f.do(http.MethodDelete, "/sessions/"+id, "owner", nil)
	assert.Equal(t, http.StatusNoContent, status)
	f.fail(http.MethodGet, "/sessions/"+id, "owner", nil, http.StatusNotFound)
}

func TestCheckout_RequestValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	e := f.fail(http.MethodPost, "/sessions", "tok", map[string]string{"name": "x"}, http.StatusUnprocessableEntity)
	assert.Equal(t, "validation_failed", e.Code)
	assert.Equal(t, "category_id is required.", e.Error)

	e = f.fail(http.MethodPost, "/sessions", "tok", map[string]string{"category_id": "class_10", "email": "nope"}, http.StatusUnprocessableEntity)
	assert.Equal(t, "email must be a valid email address.", e.Error)

	e = f.fail(http.MethodPost, "/sessions", "tok", "{", http.StatusBadRequest)
	assert.Equal(t, "invalid_request", e.Code)

	e = f.fail(http.MethodPost, "/sessions", "tok", map[string]string{"category_id": "unknown"}, http.StatusNotFound)
	assert.Equal(t, "not_found", e.Code)

	base := "/sessions/" + f.open("tok", "").ID
	e = f.fail(http.MethodPut, base+"/plan", "tok", map[string]string{"plan": "weekly"}, http.StatusUnprocessableEntity)
	assert.Equal(t, "validation_failed", e.Code)

	f.view(http.MethodPost, base+"/purchase", "tok", nil, http.StatusOK)
	e = f.fail(http.MethodPost, base+"/payment", "tok", map[string]string{"razorpay_order_id": "order_1"}, http.StatusUnprocessableEntity)
	assert.Equal(t, "validation_failed", e.Code)
}

func TestCheckout_InitialPlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v := f.view(http.MethodPost, "/sessions", "", map[string]string{"category_id": "class_10", "plan": "yearly"}, http.StatusCreated)
	assert.Equal(t, purchase.PlanYearly, v.Plan)
	assert.Equal(t, int64(499000), v.Quote.FinalPrice)
}

func TestCheckout_Categories(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	status, raw := f.do(http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	var cats []checkout.CategoryView
	require.NoError(t, json.Unmarshal(raw, &cats))
	require.Len(t, cats, 1)
	assert.Equal(t, "class_10", cats[0].ID)
	assert.Equal(t, int64(49900), cats[0].MonthlyPrice)
}

func TestCheckout_Health(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	status, body := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ALIVE", string(body))

	status, body = f.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "READY", string(body))

	down := httptest.NewServer(f.svc.Handler(func(context.Context) error { return errors.New("down") }))
	defer down.Close()
	resp, err := down.Client().Get(down.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestService_CloseCancelsOpenCheckout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v := f.open("tok", "")
	f.view(http.MethodPost, "/sessions/"+v.ID+"/purchase", "tok", nil, http.StatusOK)

	s, err := f.svc.Session(v.ID, "tok")
	require.NoError(t, err)
	f.svc.Close()

	assert.Eventually(t, func() bool {
		return s.Orchestrator().State() == purchase.StateCancelled
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.svc.Sessions().Len())
}

func TestCheckout_DeleteCancelsOpenCheckout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v := f.open("tok", "u1")
	v = f.view(http.MethodPost, "/sessions/"+v.ID+"/purchase", "tok", nil, http.StatusOK)
	require.Equal(t, purchase.StateCollecting, v.State)

	s, err := f.svc.Session(v.ID, "tok")
	require.NoError(t, err)

	status, raw := f.do(http.MethodDelete, "/sessions/"+v.ID, "tok", nil)
	require.Equal(t, http.StatusNoContent, status, string(raw))
	assert.Equal(t, purchase.StateCancelled, s.Orchestrator().State())
	f.fail(http.MethodGet, "/sessions/"+v.ID, "tok", nil, http.StatusNotFound)

	next := f.open("tok", "u1")
	next = f.view(http.MethodPost, "/sessions/"+next.ID+"/purchase", "tok", nil, http.StatusOK)
	assert.Equal(t, purchase.StateCollecting, next.State)
	require.NotNil(t, next.Checkout)
	assert.Equal(t, "order_2", next.Checkout.OrderID)
}

func TestService_PurchaseOnRemovedSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v := f.open("tok", "u1")
	s, err := f.svc.Session(v.ID, "tok")
	require.NoError(t, err)
	require.True(t, f.svc.Sessions().Delete(v.ID))

	_, err = f.svc.StartPurchase(context.Background(), s)
	require.ErrorIs(t, err, checkout.ErrSessionNotFound)
	assert.Equal(t, purchase.StateIdle, s.Orchestrator().State())

	next := f.open("tok", "u1")
	next = f.view(http.MethodPost, "/sessions/"+next.ID+"/purchase", "tok", nil, http.StatusOK)
	assert.Equal(t, purchase.StateCollecting, next.State)
}

func TestNewService_Validation(t *testing.T) {
	t.Parallel()

	api := backend.MustNew("http://localhost")
	cat := checkout.NewInMemCatalog(purchase.CategoryPricing{CategoryID: "a", Currency: "INR"})

	_, err := checkout.NewService(checkout.DefaultConfig(), checkout.Deps{Backend: api})
	assert.Error(t, err)
	_, err = checkout.NewService(checkout.DefaultConfig(), checkout.Deps{Catalog: cat})
	assert.Error(t, err)

	cfg := checkout.DefaultConfig()
	cfg.MaxSessions = 0
	_, err = checkout.NewService(cfg, checkout.Deps{Catalog: cat, Backend: api})
	assert.Error(t, err)
}

func TestDescription(t *testing.T) {
	t.Parallel()
	p := purchase.CategoryPricing{CategoryID: "neet_prep"}
	assert.Equal(t, "Subscription for neet prep (monthly)", checkout.Description(p, purchase.PlanMonthly))
}

func TestCheckout_CouponAttemptsThrottled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *checkout.Config) {
		c.CouponAttempts = 2
		c.CouponRefill = time.Hour
	})

	first := "/sessions/" + f.open("tok", "u7").ID
	f.fail(http.MethodPost, first+"/coupon", "tok", map[string]string{"code": "GUESS1"}, http.StatusUnprocessableEntity)
	f.fail(http.MethodPost, first+"/coupon", "tok", map[string]string{"code": "GUESS2"}, http.StatusUnprocessableEntity)

	// The budget is per user, so a fresh session does not reset it.
	second := "/sessions/" + f.open("tok", "u7").ID
	status, raw := f.do(http.MethodPost, second+"/coupon", "tok", map[string]string{"code": "SAVE10"})
	require.Equal(t, http.StatusTooManyRequests, status, string(raw))
	var e checkout.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, "too_many_attempts", e.Code)

	// Other users are unaffected.
	other := "/sessions/" + f.open("tok", "u8").ID
	f.view(http.MethodPost, other+"/coupon", "tok", map[string]string{"code": "SAVE10"}, http.StatusOK)
}

func TestCheckout_LocalCouponRejectionsAreNotThrottled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *checkout.Config) {
		c.CouponAttempts = 1
		c.CouponRefill = time.Hour
	})
	base := "/sessions/" + f.open("tok", "u9").ID

	e := f.fail(http.MethodPost, base+"/coupon", "tok", map[string]string{"code": "   "}, http.StatusUnprocessableEntity)
	assert.Equal(t, "invalid_input", e.Code)

	f.view(http.MethodPost, base+"/coupon", "tok", map[string]string{"code": "SAVE10"}, http.StatusOK)

	e = f.fail(http.MethodPost, base+"/coupon", "tok", map[string]string{"code": "SAVE10"}, http.StatusConflict)
	assert.Equal(t, "coupon_already_applied", e.Code)

	f.view(http.MethodDelete, base+"/coupon", "tok", nil, http.StatusOK)
	e = f.fail(http.MethodPost, base+"/coupon", "tok", map[string]string{"code": "SAVE10"}, http.StatusTooManyRequests)
	assert.Equal(t, "too_many_attempts", e.Code)
}
