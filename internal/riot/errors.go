package riot

import (
	"errors"
	"fmt"
	"net/http"
)

// Provider error conditions. StatusError unwraps to one of these so callers can
// use errors.Is without knowing the exact status code.
var (
	ErrNotFound      = errors.New("riot: not found")
	ErrBadRequest    = errors.New("riot: bad request")
	ErrUnauthorized  = errors.New("riot: api key rejected")
	ErrRateLimited   = errors.New("riot: rate limited")
	ErrServer        = errors.New("riot: server error")
	ErrDecodeFailure = errors.New("riot: decode failure")
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("riot: api key is empty")

// StatusError is a non-200 response from the provider.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("riot %s: status %d", e.Endpoint, e.StatusCode)
}

// Unwrap maps the status code to a sentinel.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return ErrBadRequest
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return nil
	}
}

// IsSkippable reports whether a single-record fetch failure should be skipped
// rather than abort a batch: the record is gone or the id is malformed.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadRequest)
}

// retryable reports whether a status is worth retrying.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
