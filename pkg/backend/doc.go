// Package backend is the HTTP client for the subscription backend: coupon
// lookup, payment order creation, payment verification and profile refresh.
//
// Client implements the remote interfaces of package checkout:
//
//	api, err := backend.New("https://api.example.com", backend.WithTimeout(10*time.Second))
//	if err != nil {
//	    return err
//	}
//	api = api.WithToken(bearer)
//
// Requests are never retried. Non-2xx responses are returned as *APIError
// whose Message, taken from the "message" or "error" field of a JSON body, is
// meant for end users.
package backend
