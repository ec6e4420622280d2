package checkout_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/checkoutkit/pkg/checkout"
)

type mockCoupons struct {
	mock.Mock
}

func (m *mockCoupons) ValidateCoupon(ctx context.Context, code string) (*checkout.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Coupon), args.Error(1)
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) CreateOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.PaymentOrder, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.PaymentOrder), args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) VerifyPayment(ctx context.Context, req checkout.VerifyRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type mockCollector struct {
	mock.Mock
}

func (m *mockCollector) Collect(ctx context.Context, order checkout.PaymentOrder, prefill checkout.Prefill) (*checkout.CollectedPayment, error) {
	args := m.Called(ctx, order, prefill)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.CollectedPayment), args.Error(1)
}

type mockProfile struct {
	mock.Mock
}

func (m *mockProfile) RefreshProfile(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// upstreamError mimics a backend error carrying a user-facing message.
type upstreamError struct {
	msg string
}

func (e upstreamError) Error() string           { return "backend: " + e.msg }
func (e upstreamError) UpstreamMessage() string { return e.msg }
