// Package engine provides the shared types of the context engine.
// This file contains error classification and handling.

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RetryClass indicates whether an error should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"     // Definitely retry
	RetryClassMaybe        RetryClass = "maybe"         // Retry with caution (limited attempts)
	RetryClassNonRetryable RetryClass = "non_retryable" // Never retry
)

// EngineError wraps provider errors with classification metadata.
type EngineError struct {
	Err         error
	Class       RetryClass
	HTTPStatus  int    // HTTP status code if applicable
	RetryAfter  string // Retry-After header value if present
	IsRateLimit bool
	IsTimeout   bool
	IsNetwork   bool
	IsAuth      bool
	IsQuota     bool
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("engine error: %s", e.Class)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError with classification.
func NewEngineError(err error, class RetryClass) *EngineError {
	return &EngineError{
		Err:   err,
		Class: class,
	}
}

// ClassifyLLMError classifies an error from an LLM provider call.
func ClassifyLLMError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}

	// A cancelled condensation must fail, never retry
	if errors.Is(err, context.Canceled) {
		return RetryClassNonRetryable
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Class
	}

	errStr := strings.ToLower(err.Error())

	// Rate limit errors (429) - retryable, respect Retry-After
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return RetryClassRetryable
	}

	// Server errors (5xx) - retryable
	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "529") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return RetryClassRetryable
	}

	// Network/timeout errors - retryable
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "temporary failure") {
		return RetryClassRetryable
	}

	if strings.Contains(errStr, "deadline exceeded") {
		return RetryClassMaybe
	}

	// Everything else (auth, bad request, quota, context overflow) is deterministic
	return RetryClassNonRetryable
}

// IsContextWindowExceeded reports whether a provider rejected a request for being
// larger than the model context window.
func IsContextWindowExceeded(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "context length") ||
		strings.Contains(errStr, "context window") ||
		strings.Contains(errStr, "maximum context length") ||
		strings.Contains(errStr, "prompt is too long") ||
		strings.Contains(errStr, "token limit")
}

// ExtractRetryAfter extracts the Retry-After header value from an error.
// Returns 0 if not found or invalid.
func ExtractRetryAfter(err error) time.Duration {
	var engineErr *EngineError
	if errors.As(err, &engineErr) && engineErr.RetryAfter != "" {
		var seconds int
		if _, err := fmt.Sscanf(engineErr.RetryAfter, "%d", &seconds); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if t, err := time.Parse(time.RFC1123, engineErr.RetryAfter); err == nil {
			now := time.Now()
			if t.After(now) {
				return t.Sub(now)
			}
		}
	}
	return 0
}

// WrapLLMError wraps an LLM provider error with classification metadata.
func WrapLLMError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}

	class := ClassifyLLMError(err)
	switch {
	case httpStatus == http.StatusTooManyRequests || httpStatus >= 500:
		class = RetryClassRetryable
	case httpStatus >= 400:
		class = RetryClassNonRetryable
	}

	return &EngineError{
		Err:         err,
		Class:       class,
		HTTPStatus:  httpStatus,
		RetryAfter:  retryAfter,
		IsRateLimit: httpStatus == http.StatusTooManyRequests,
		IsTimeout:   httpStatus == http.StatusGatewayTimeout || httpStatus == http.StatusRequestTimeout,
		IsNetwork:   httpStatus == 0 || httpStatus >= 500,
		IsAuth:      httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden,
		IsQuota:     httpStatus == http.StatusPaymentRequired,
	}
}

// RetryExhaustedError indicates that all retry attempts have been exhausted.
type RetryExhaustedError struct {
	Err         error
	Attempts    int
	MaxAttempts int
	IsGuarded   bool // True if this was a "maybe" class error with limited retries
}

func (e *RetryExhaustedError) Error() string {
	if e.IsGuarded {
		return fmt.Sprintf("guarded retries exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// NewRetryExhaustedError creates a new RetryExhaustedError.
func NewRetryExhaustedError(err error, attempts, maxAttempts int, isGuarded bool) *RetryExhaustedError {
	return &RetryExhaustedError{
		Err:         err,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		IsGuarded:   isGuarded,
	}
}

// IsRetryExhausted checks if an error is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var retryExhausted *RetryExhaustedError
	return errors.As(err, &retryExhausted)
}

// CondenseErrorClass is the failure taxonomy of a condensation attempt.
type CondenseErrorClass string

const (
	CondenseIneligible     CondenseErrorClass = "ineligible"      // guard failed, no model call made
	CondenseUnproductive   CondenseErrorClass = "unproductive"    // no net token savings
	CondenseEmptyResponse  CondenseErrorClass = "empty_response"  // model returned no usable text
	CondenseHandlerInvalid CondenseErrorClass = "handler_invalid" // no usable generation capability
	CondenseStorage        CondenseErrorClass = "storage"         // journal read/write failure
	CondenseCancelled      CondenseErrorClass = "cancelled"       // model call aborted mid-stream
	CondenseModel          CondenseErrorClass = "model"           // provider/transport failure
)

// CondenseError is a classified condensation failure.
type CondenseError struct {
	Class CondenseErrorClass
	Msg   string
	Err   error
}

func (e *CondenseError) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *CondenseError) Unwrap() error {
	return e.Err
}

// NewCondenseError creates a CondenseError of the given class.
func NewCondenseError(class CondenseErrorClass, msg string, err error) *CondenseError {
	return &CondenseError{Class: class, Msg: msg, Err: err}
}

// CondenseErrorClassOf returns the class of err, or "" when err is not a CondenseError.
func CondenseErrorClassOf(err error) CondenseErrorClass {
	var ce *CondenseError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ""
}
