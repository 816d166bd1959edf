// Package picker provides an HTTP client for the Google Photos Picker API
// with bounded request timeouts, transparent pagination, and error
// classification.
package picker

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrServiceFailure covers transport failures and malformed responses,
// anything that never produced a classifiable API error body.
// Use errors.Is(err, picker.ErrServiceFailure) to check.
var ErrServiceFailure = errors.New("picker: service failure")

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, picker.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("picker: bad request")
	ErrUnauthorized = errors.New("picker: unauthorized")
	ErrForbidden    = errors.New("picker: forbidden")
	ErrNotFound     = errors.New("picker: not found")
	ErrThrottled    = errors.New("picker: throttled")
	ErrServerError  = errors.New("picker: server error")
)

// statusFailedPrecondition is the google.rpc status the Picker API returns
// on /mediaItems while a session's selection is not yet queryable.
const statusFailedPrecondition = "FAILED_PRECONDITION"

// APIError is a structured error returned by the Picker API. Status carries
// the google.rpc status string (e.g. "FAILED_PRECONDITION"), StatusCode the
// HTTP status code.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Details    json.RawMessage
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("picker: HTTP %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}

	return fmt.Sprintf("picker: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// notReady reports whether an error is the "selection not yet queryable"
// condition on media item listing. It is not a failure; the caller keeps
// polling.
func notReady(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == statusFailedPrecondition
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
