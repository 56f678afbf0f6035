package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind categorizes a backend failure. Every failed completion maps to
// exactly one kind; the orchestrator decides retry behavior from it.
type ErrorKind string

const (
	// ErrAuthFailure indicates rejected or missing credentials. Not retried.
	ErrAuthFailure ErrorKind = "auth_failure"

	// ErrRateLimited indicates the backend throttled the request.
	ErrRateLimited ErrorKind = "rate_limited"

	// ErrNetworkError indicates a transport failure or timeout.
	ErrNetworkError ErrorKind = "network_error"

	// ErrBackendUnavailable indicates the backend is down or overloaded.
	// Not retried.
	ErrBackendUnavailable ErrorKind = "backend_unavailable"

	// ErrMalformedResponse indicates the backend answered with a body the
	// client could not interpret.
	ErrMalformedResponse ErrorKind = "malformed_response"
)

// BackendError is the canonical failure returned by model backends.
type BackendError struct {
	// Kind is the failure category.
	Kind ErrorKind

	// Backend names the backend that failed.
	Backend string

	// Message is the human-readable diagnostic, surfaced verbatim.
	Message string

	// StatusCode is the upstream HTTP status, when one was received.
	StatusCode int
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Backend, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Backend, e.Kind, e.Message)
}

// Retryable reports whether a single bounded retry is permitted for this
// failure. Only rate limiting and transport errors qualify.
func (e *BackendError) Retryable() bool {
	return e.Kind == ErrRateLimited || e.Kind == ErrNetworkError
}

// NewBackendError creates a backend error.
func NewBackendError(backend string, kind ErrorKind, message string) *BackendError {
	return &BackendError{Kind: kind, Backend: backend, Message: message}
}

// WithStatusCode records the upstream HTTP status.
func (e *BackendError) WithStatusCode(code int) *BackendError {
	e.StatusCode = code
	return e
}

// AsBackendError unwraps err into a *BackendError if it is one.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ClassifyStatus maps an upstream HTTP status and error-code string to an
// ErrorKind. The code string is checked first since some vendors return
// throttling errors with generic statuses.
func ClassifyStatus(statusCode int, errorCode string) ErrorKind {
	lower := strings.ToLower(errorCode)
	if strings.Contains(lower, "rate") || strings.Contains(lower, "limit") || strings.Contains(lower, "quota") {
		return ErrRateLimited
	}
	if strings.Contains(lower, "auth") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api_key") {
		return ErrAuthFailure
	}
	if strings.Contains(lower, "overloaded") {
		return ErrBackendUnavailable
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailure
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrNetworkError
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrBackendUnavailable
	default:
		if statusCode >= 500 {
			return ErrBackendUnavailable
		}
		return ErrMalformedResponse
	}
}
