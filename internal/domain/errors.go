package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAuthentication     = errors.New("authentication failure")
	ErrRateLimited        = errors.New("rate limited")
	ErrTransport          = errors.New("transport error")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrLockHeld           = errors.New("lock already held")
)

// UpstreamError is a non-retryable HTTP error response from an exchange.
type UpstreamError struct {
	Platform   Platform
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: API error (%d): %s", e.Platform, e.StatusCode, e.Body)
}

// Unwrap maps well-known status codes onto the sentinel errors so callers can
// use errors.Is without inspecting the status.
func (e *UpstreamError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthentication
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}
