package checkout

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/checkoutkit/pkg/logger"
)

var errIncompleteOrder = errors.New("order response is missing required fields")

// OrderInitiator requests payment orders from the backend.
type OrderInitiator struct {
	creator OrderCreator
	log     *slog.Logger
}

// NewOrderInitiator creates an initiator. Panics if creator is nil.
func NewOrderInitiator(creator OrderCreator, log *slog.Logger) *OrderInitiator {
	if creator == nil {
		panic("checkout: order creator cannot be nil")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &OrderInitiator{creator: creator, log: log}
}

// CreateOrder asks for a new order. The coupon code is sent only when set.
// Every failure is reported as ErrOrderCreationFailed.
func (o *OrderInitiator) CreateOrder(ctx context.Context, req OrderRequest) (*PaymentOrder, error) {
	if !req.Plan.Valid() {
		return nil, &Error{Kind: ErrOrderCreationFailed, Message: MessageOrderCreationFailed, Err: ErrInvalidPlan}
	}
	req.CouponCode = NormalizeCouponCode(req.CouponCode)

	order, err := o.creator.CreateOrder(ctx, req)
	if err != nil {
		o.log.ErrorContext(ctx, "order creation failed",
			logger.Plan(string(req.Plan)),
			logger.CouponCode(req.CouponCode),
			logger.Error(err),
		)
		return nil, newError(ErrOrderCreationFailed, err)
	}
	if order == nil || order.OrderID == "" || order.TransactionID == "" || order.GatewayKey == "" || order.Amount < 0 {
		o.log.ErrorContext(ctx, "order response incomplete", logger.Plan(string(req.Plan)))
		return nil, newError(ErrOrderCreationFailed, errIncompleteOrder)
	}

	out := *order
	o.log.InfoContext(ctx, "order created",
		logger.OrderID(out.OrderID),
		logger.TransactionID(out.TransactionID),
		logger.Amount(out.Amount, out.Currency),
	)
	return &out, nil
}
