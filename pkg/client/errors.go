package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of call failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors. Never retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors. Retryable.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport-level failures (timeouts,
	// connection refused, DNS). Retryable.
	ErrorClassNetwork ErrorClass = "network"
)

// transient reports whether an error class is likely to succeed on retry.
func transient(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus maps a non-2xx HTTP status to an error class.
func classifyStatus(statusCode int) ErrorClass {
	if statusCode >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// APIError is a classified call failure with the context a caller needs to
// react: the status, the response body for 4xx/5xx, and the retry history
// for exhausted transient errors.
type APIError struct {
	// Endpoint is the declared endpoint name.
	Endpoint string

	// StatusCode is the HTTP status, 0 for transport-level failures.
	StatusCode int

	// Class is the error classification.
	Class ErrorClass

	// Message is a short human-readable description.
	Message string

	// Body is the raw response body, preserved for caller inspection on
	// 4xx/5xx responses.
	Body []byte

	// Attempts is the total number of attempts made.
	Attempts int

	// LastDelay is the backoff delay used before the final attempt.
	LastDelay time.Duration

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s error", e.Class)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Endpoint != "" {
		msg = fmt.Sprintf("%s on %q", msg, e.Endpoint)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, e.Attempts)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}
