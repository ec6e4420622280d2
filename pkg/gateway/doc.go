// Package gateway bridges purchase attempts to the hosted payment widget.
//
// Loader makes sure the widget's checkout script is reachable, fetching it
// at most once per process no matter how many attempts start concurrently.
// Bridge implements checkout.PaymentCollector: it opens a Widget for an order
// and waits for exactly one outcome, a success payload or a dismissal.
// Relay is a Widget for server-hosted flows where the browser reports the
// widget callbacks back over HTTP.
package gateway
