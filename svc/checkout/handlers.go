package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	purchase "github.com/dmitrymomot/checkoutkit/pkg/checkout"
	"github.com/dmitrymomot/checkoutkit/pkg/gateway"
	"github.com/dmitrymomot/checkoutkit/pkg/httpserver"
	"github.com/dmitrymomot/checkoutkit/pkg/logger"
)

const (
	maxRequestBody = 64 << 10
	readyTimeout   = 5 * time.Second
)

type createSessionRequest struct {
	CategoryID string `json:"category_id" validate:"required,max=128"`
	UserID     string `json:"user_id" validate:"omitempty,max=128"`
	Name       string `json:"name" validate:"omitempty,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	Plan       string `json:"plan" validate:"omitempty,oneof=monthly yearly"`
}

type selectPlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly yearly"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"max=64"`
}

type ctxSessionKey struct{}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler returns the HTTP API. Readiness runs checks in order.
func (svc *Service) Handler(checks ...httpserver.Check) http.Handler {
	h := &handlers{svc: svc, validate: newValidator()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogContext)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(svc.log, readyTimeout, checks...))
	r.Get("/categories", h.listCategories)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(h.loadSession)
			r.Get("/", h.getSession)
			r.Delete("/", h.closeSession)
			r.Put("/plan", h.selectPlan)
			r.Post("/coupon", h.applyCoupon)
			r.Delete("/coupon", h.removeCoupon)
			r.Post("/purchase", h.purchase)
			r.Post("/payment", h.payment)
			r.Post("/dismiss", h.dismiss)
			r.Post("/reset", h.reset)
		})
	})
	return r
}

type handlers struct {
	svc      *Service
	validate *validator.Validate
}

func requestLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logger.WithContext(r.Context(), slog.String("request_id", id)))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.svc.Session(chi.URLParam(r, "sessionID"), bearerToken(r))
		if err != nil {
			h.fail(w, r, nil, err)
			return
		}
		ctx := logger.WithContext(r.Context(), logger.SessionID(s.ID))
		ctx = context.WithValue(ctx, ctxSessionKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *Session {
	s, _ := r.Context().Value(ctxSessionKey{}).(*Session)
	return s
}

func (h *handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.catalog.Categories(r.Context())
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	out := make([]CategoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := h.bind(w, r, &req); err != nil {
		h.fail(w, r, nil, err)
		return
	}

	s, err := h.svc.CreateSession(r.Context(), NewSessionParams{
		CategoryID: req.CategoryID,
		UserID:     req.UserID,
		Token:      bearerToken(r),
		Prefill:    purchase.Prefill{Name: req.Name, Email: req.Email},
		Plan:       purchase.Plan(req.Plan),
	})
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.svc.View(s))
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.View(sessionFrom(r)))
}

func (h *handlers) closeSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), h.svc.cfg.CallbackWait)
	defer cancel()
	err := h.svc.CloseSession(ctx, s)
	if errors.Is(err, purchase.ErrAttemptInFlight) {
		h.fail(w, r, s, err)
		return
	}
	if err != nil {
		h.svc.log.WarnContext(r.Context(), "closed session attempt still running", logger.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) selectPlan(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var req selectPlanRequest
	if err := h.bind(w, r, &req); err != nil {
		h.fail(w, r, s, err)
		return
	}
	if err := h.svc.SelectPlan(r.Context(), s, purchase.Plan(req.Plan)); err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.View(s))
}

func (h *handlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var req applyCouponRequest
	if err := h.bind(w, r, &req); err != nil {
		h.fail(w, r, s, err)
		return
	}
	if err := h.svc.ApplyCoupon(r.Context(), s, req.Code); err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.View(s))
}

func (h *handlers) removeCoupon(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := h.svc.RemoveCoupon(r.Context(), s); err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.View(s))
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := h.svc.Reset(r.Context(), s); err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.View(s))
}

// purchase starts an attempt and answers once the widget can be opened or
// the attempt already ended. 202 means the order is still being created.
func (h *handlers) purchase(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if _, err := h.svc.StartPurchase(r.Context(), s); err != nil {
		h.fail(w, r, s, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.svc.cfg.CallbackWait)
	defer cancel()
	err := s.waitFor(ctx, func() bool {
		if s.runFinished() {
			return true
		}
		_, open := h.svc.CheckoutOptions(s)
		return open
	})
	if err != nil {
		writeJSON(w, http.StatusAccepted, h.svc.View(s))
		return
	}
	if !s.runFinished() {
		writeJSON(w, http.StatusOK, h.svc.View(s))
		return
	}
	h.outcome(w, r, s)
}

// payment receives the widget's success callback and answers once the
// payment was verified or rejected.
func (h *handlers) payment(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var payload gateway.SuccessPayload
	if err := h.bind(w, r, &payload); err != nil {
		h.fail(w, r, s, err)
		return
	}
	if err := h.svc.CompletePayment(s, payload); err != nil {
		h.fail(w, r, s, err)
		return
	}
	h.awaitOutcome(w, r, s, h.svc.cfg.CallbackWait+h.svc.cfg.VerifyTimeout)
}

func (h *handlers) dismiss(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := h.svc.DismissPayment(s); err != nil {
		h.fail(w, r, s, err)
		return
	}
	h.awaitOutcome(w, r, s, h.svc.cfg.CallbackWait)
}

func (h *handlers) awaitOutcome(w http.ResponseWriter, r *http.Request, s *Session, wait time.Duration) {
	if s.currentRun() == nil {
		writeJSON(w, http.StatusOK, h.svc.View(s))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()
	if err := s.waitFor(ctx, s.runFinished); err != nil {
		writeJSON(w, http.StatusAccepted, h.svc.View(s))
		return
	}
	h.outcome(w, r, s)
}

// outcome reports a finished attempt. A cancelled attempt is not an error.
func (h *handlers) outcome(w http.ResponseWriter, r *http.Request, s *Session) {
	run := s.currentRun()
	_, err := run.Await(r.Context())
	if err == nil || errors.Is(err, purchase.ErrCancelled) {
		writeJSON(w, http.StatusOK, h.svc.View(s))
		return
	}
	h.fail(w, r, s, err)
}

func (h *handlers) bind(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}
	return h.validate.Struct(dst)
}

// fail writes an error response, attaching the session view when there is one.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, s *Session, err error) {
	status, code := errorStatus(err)
	resp := ErrorResponse{Error: errorMessage(err), Code: code}
	var te *ThrottledError
	if errors.As(err, &te) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(te.RetryAfter.Seconds()))))
	}
	if s != nil {
		v := h.svc.View(s)
		resp.Session = &v
	}

	log := h.svc.log
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", slog.String("code", code), logger.Error(err))
	} else {
		log.DebugContext(r.Context(), "request rejected", slog.String("code", code), logger.Error(err))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
