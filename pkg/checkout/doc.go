// Package checkout implements the client side of a subscription purchase:
// plan selection, discount coupons, price quotes, and the payment order
// lifecycle create, collect, verify, activate.
//
// The backend that owns orders, coupons and signature verification is reached
// through small interfaces (CouponSource, OrderCreator, PaymentConfirmer,
// ProfileRefresher). The external payment widget hides behind
// PaymentCollector. Orchestrator ties them together with an explicit state
// machine so that money is never collected without a verified order and a
// coupon is never applied twice.
//
// # Usage
//
//	orch, err := checkout.NewOrchestrator(pricing, prefill, checkout.Dependencies{
//	    Coupons:   api,
//	    Orders:    api,
//	    Payments:  api,
//	    Collector: bridge,
//	    Profile:   api,
//	}, checkout.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//
//	if _, err := orch.ApplyCoupon(ctx, "save10"); err != nil {
//	    fmt.Println(checkout.UserMessage(err))
//	}
//
//	receipt, err := orch.Purchase(ctx)
//	switch {
//	case errors.Is(err, checkout.ErrCancelled):
//	    // user closed the widget, a new attempt may start
//	case err != nil:
//	    // order, gateway or verification failure
//	default:
//	    fmt.Println("activated", receipt.TransactionID)
//	}
//
// All money values are int64 amounts in the smallest currency unit.
package checkout
