package serp

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey indicates provider credentials were not configured.
// This is a configuration error: it is surfaced at job submission,
// before any tickets are created.
var ErrMissingAPIKey = errors.New("serp: provider API key is not configured")

// APIError represents a non-200 response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("serp: API error %d on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Transient reports whether the error is worth retrying: server-side
// failures and rate-limit rejections are; client-side rejections are
// permanent.
func (e *APIError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// RateLimitError indicates the provider rejected a request for quota
// reasons. Always transient.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("serp: rate limited, retry after %s", e.RetryAfter)
}

// IsTransient classifies an error for the poll scheduler's retry
// decision. Network failures (anything that is not a typed provider
// rejection) are treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}

	// Missing credentials never resolve by retrying
	if errors.Is(err, ErrMissingAPIKey) {
		return false
	}

	// Transport-level failures (connection reset, timeout)
	return true
}
