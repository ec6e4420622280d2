package gateway

import "errors"

var (
	ErrScriptLoadFailed = errors.New("gateway: checkout script failed to load")
	ErrWidgetOpenFailed = errors.New("gateway: widget could not be opened")
	ErrUnknownCheckout  = errors.New("gateway: no open checkout for order")
	ErrCheckoutOpen     = errors.New("gateway: checkout already open for order")
)
