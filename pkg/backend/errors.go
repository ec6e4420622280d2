package backend

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBaseURL       = errors.New("backend: invalid base URL")
	ErrRequestFailed        = errors.New("backend: request failed")
	ErrInvalidResponse      = errors.New("backend: invalid response")
	ErrVerificationRejected = errors.New("backend: payment verification rejected")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend: status %d: %s", e.StatusCode, e.Message)
}

// UpstreamMessage returns the message written by the backend for end users.
func (e *APIError) UpstreamMessage() string { return e.Message }

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var e *APIError
	return errors.As(err, &e) && e.StatusCode == 404
}

// IsClientError reports whether err is a 4xx response.
func IsClientError(err error) bool {
	var e *APIError
	return errors.As(err, &e) && e.StatusCode >= 400 && e.StatusCode < 500
}
