// Package checkout is the HTTP service behind the subscription checkout
// screen.
//
// A browser opens a session for a category, picks a plan, applies coupons
// and starts a purchase. The purchase runs in the background: once the
// payment order exists the session view carries the widget options, the
// browser opens the payment widget and reports its outcome back through
// the payment and dismiss endpoints, which wake the waiting attempt.
//
//	POST   /sessions                  open a session
//	GET    /sessions/{id}             current view
//	PUT    /sessions/{id}/plan        select monthly or yearly
//	POST   /sessions/{id}/coupon      apply a coupon
//	DELETE /sessions/{id}/coupon      remove the coupon
//	POST   /sessions/{id}/purchase    start an attempt
//	POST   /sessions/{id}/payment     widget success callback
//	POST   /sessions/{id}/dismiss     widget closed
//	POST   /sessions/{id}/reset       back to plan selection
//
// Sessions are bound to the bearer token they were created with and live
// in memory; a session idle for longer than SessionTTL is dropped.
package checkout
