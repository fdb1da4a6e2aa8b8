package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// DispatchError is the classified error returned by a rail dispatch. Retryable errors drive the engine's backoff;
// permanent ones terminate the payout.
type DispatchError struct {
	// Code is the provider-side error code, when one was returned.
	Code      string
	Message   string
	Retryable bool
}

func (e *DispatchError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s provider error [%s]: %s", kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", kind, e.Message)
}

func NewTransientError(code, message string) *DispatchError {
	return &DispatchError{Code: code, Message: message, Retryable: true}
}

func NewPermanentError(code, message string) *DispatchError {
	return &DispatchError{Code: code, Message: message, Retryable: false}
}

// IsRetryable reports whether err should be retried by the engine. Network timeouts and any unclassified error are
// treated as transient: when in doubt, retrying a disbursement that carries an idempotent reference is safer than
// sinking it.
func IsRetryable(err error) bool {
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Retryable
	}
	return true
}

// classifyHTTPFailure wraps a transport-level failure from a rail call. Timeouts and connection errors are transient.
func classifyHTTPFailure(err error) *DispatchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransientError("", "provider call timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTransientError("", "provider call timed out")
	}
	return NewTransientError("", fmt.Sprintf("provider unreachable: %s", err.Error()))
}

// classifyStatusCode classifies a non-success HTTP status from a rail. 5xx and 429 are transient; everything else is a
// definitive rejection.
func classifyStatusCode(statusCode int, code, message string) *DispatchError {
	if statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests {
		return NewTransientError(code, message)
	}
	return NewPermanentError(code, message)
}
