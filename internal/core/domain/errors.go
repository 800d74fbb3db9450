package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ConfigError reports invalid session input. It is always raised before any
// remote call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// AuthError reports a failed login: a rejected credential, a rate-limited
// login attempt, or an ambiguous remote failure during authentication.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return e.Reason
}

// OperationError reports a failed remote operation other than login,
// including webhook delivery. Status is zero when no HTTP status applies.
type OperationError struct {
	Reason string
	Status int
}

func (e *OperationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Reason, e.Status)
	}
	return e.Reason
}

// APIError is the transport-level failure for a non-2xx Discord response.
// RetryAfter is zero when the response carried no usable retry-after signal.
type APIError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("discord api: http %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("discord api: http %d", e.Status)
}

// RateLimitExhaustedError reports that the retry budget was consumed while
// the remote was still rate limiting.
type RateLimitExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RateLimitExhaustedError) Error() string {
	return fmt.Sprintf("exceeded %d attempts due to rate limits: %v", e.Attempts, e.Last)
}

func (e *RateLimitExhaustedError) Unwrap() error {
	return e.Last
}

// IsRateLimited reports whether err is a 429 response from the API.
func IsRateLimited(err error) bool {
	var api *APIError
	return errors.As(err, &api) && api.Status == http.StatusTooManyRequests
}

// StatusOf extracts the HTTP status from a transport error, or zero.
func StatusOf(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		return api.Status
	}
	return 0
}
