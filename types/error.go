package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures across the store, retrieval, and model
// backend layers.
type ErrorCode string

const (
	// ErrStoreUnavailable means the document store is unreachable or timed out.
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrMalformedQuery means an invalid filter or size parameter was supplied.
	ErrMalformedQuery ErrorCode = "MALFORMED_QUERY"
	// ErrBackendTimeout means the model backend exceeded its deadline.
	ErrBackendTimeout ErrorCode = "BACKEND_TIMEOUT"
	// ErrBackendRateLimited means the model backend rejected the call with a rate limit.
	ErrBackendRateLimited ErrorCode = "BACKEND_RATE_LIMITED"
	// ErrBackendError covers other model backend failures (5xx, malformed response).
	ErrBackendError ErrorCode = "BACKEND_ERROR"
	// ErrConfigInvalid means configuration failed validation at startup.
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ErrInternal is the catch-all for unexpected failures.
	ErrInternal ErrorCode = "INTERNAL"
)

// Error is a structured error with a code, an optional HTTP status, a
// retryable flag, and an optional cause.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches a cause and returns the error for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status to report for this error.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// CodeOf extracts the ErrorCode from err, unwrapping as needed. Returns
// ErrInternal for non-structured errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// IsRetryable reports whether err is a retryable structured error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
