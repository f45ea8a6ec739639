package httputil

import (
	"fmt"
	"net/http"

	"github.com/rx3lixir/voicebank/internal/apierror"
)

// HTTPError represents an error that can be sent to clients
type HTTPError struct {
	Status      int                   // HTTP status code
	Key         string                // Stable error key for client-side localization
	Message     string                // User-facing message
	Cause       error                 // Optional wrapped internal error (for logging)
	Details     any                   // Optional extra context (e.g. validation errors)
	Suggestions []apierror.Suggestion // Optional actionable hints
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is and errors.As to work
func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// WithSuggestions attaches hints to the error
func (e *HTTPError) WithSuggestions(s ...apierror.Suggestion) *HTTPError {
	e.Suggestions = append(e.Suggestions, s...)
	return e
}

// Error with 400 status code
func BadRequest(key, msg string, details ...any) *HTTPError {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Key:     key,
		Message: msg,
		Details: singleOrSlice(details),
	}
}

// Error with 404 status code
func NotFound(key, msg string) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Key: key, Message: msg}
}

// Error with 500 status code
func Internal(err error) *HTTPError {
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Key:     apierror.KeyInternal,
		Message: "Something went wrong",
		Cause:   err,
	}
}

// Error with 503 status code
func Unavailable(err error) *HTTPError {
	return &HTTPError{
		Status:  http.StatusServiceUnavailable,
		Key:     apierror.KeyServerUnavailable,
		Message: "Service temporarily unavailable",
		Cause:   err,
	}
}

// Error with 401 status code
func Unauthorized(msg string) *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Key: apierror.KeyUnauthenticated, Message: msg}
}

// Error with 403 status code
func Forbidden(key, msg string) *HTTPError {
	return &HTTPError{Status: http.StatusForbidden, Key: key, Message: msg}
}

// Error with 413 status code
func TooLarge(msg string, details any) *HTTPError {
	return &HTTPError{
		Status:  http.StatusRequestEntityTooLarge,
		Key:     apierror.KeyFileTooLarge,
		Message: msg,
		Details: details,
	}
}

// tiny helper so you can pass one detail or many
func singleOrSlice(v []any) any {
	switch len(v) {
	case 0:
		return nil
	case 1:
		return v[0]
	default:
		return v
	}
}
