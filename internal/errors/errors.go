// Package errors provides structured error types for the colony core.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrUnknownStep means a plan referenced a step the role cannot execute.
	// This is a configuration error, fatal to the act cycle that hit it.
	ErrUnknownStep = errors.New("unknown plan step")

	// ErrNoMatch means an expected structural marker (block, code fence,
	// list) was absent from generated text. Not retried automatically.
	ErrNoMatch = errors.New("no match in text")

	ErrTimeout     = errors.New("operation timed out")
	ErrRateLimit   = errors.New("rate limit exceeded")
	ErrUnavailable = errors.New("service unavailable")
	ErrNotFound    = errors.New("resource not found")
)

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// PolicyViolation is an explicit rejection by a validation gate. It carries
// the rule and a human-readable reason and never crashes the process.
type PolicyViolation struct {
	Rule   string
	Reason string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Rule, e.Reason)
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
