package checkout

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/checkoutkit/pkg/logger"
)

var errIncompletePayment = errors.New("collected payment is missing gateway fields")

// PaymentVerifier submits collected payments for server-side verification.
// Verification is never retried.
type PaymentVerifier struct {
	confirmer PaymentConfirmer
	log       *slog.Logger
}

// NewPaymentVerifier creates a verifier. Panics if confirmer is nil.
func NewPaymentVerifier(confirmer PaymentConfirmer, log *slog.Logger) *PaymentVerifier {
	if confirmer == nil {
		panic("checkout: payment confirmer cannot be nil")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &PaymentVerifier{confirmer: confirmer, log: log}
}

// Verify confirms the payment for the transaction. Every failure is
// reported as ErrVerificationFailed.
func (v *PaymentVerifier) Verify(ctx context.Context, p CollectedPayment, transactionID string) error {
	if !p.Complete() || transactionID == "" {
		return newError(ErrVerificationFailed, errIncompletePayment)
	}

	err := v.confirmer.VerifyPayment(ctx, VerifyRequest{
		GatewayPaymentID: p.GatewayPaymentID,
		GatewayOrderID:   p.GatewayOrderID,
		GatewaySignature: p.GatewaySignature,
		TransactionID:    transactionID,
	})
	if err != nil {
		v.log.ErrorContext(ctx, "payment verification failed",
			logger.OrderID(p.GatewayOrderID),
			logger.TransactionID(transactionID),
			logger.Error(err),
		)
		return newError(ErrVerificationFailed, err)
	}
	return nil
}
