// Package domain contains the core business entities and value objects.
package domain

import "fmt"

// UnsupportedModeError indicates the requested chat mode is not configured.
// It is surfaced immediately and never retried.
type UnsupportedModeError struct {
	Mode string
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("chat mode %q is not supported", e.Mode)
}

// ContextTooLargeError is the remote service's signal that the assembled
// request exceeds the model's context window. The completion client handles
// it by discarding the oldest history turn and retrying; it is never
// returned to the caller directly.
type ContextTooLargeError struct {
	// StatusCode is the HTTP status the provider responded with.
	StatusCode int

	// ProviderType is the provider's error type string (e.g. "request_too_large").
	ProviderType string

	// Message is the provider's error message.
	Message string
}

func (e *ContextTooLargeError) Error() string {
	return fmt.Sprintf("request exceeds model context window [%d %s]: %s",
		e.StatusCode, e.ProviderType, e.Message)
}

// HistoryExhaustedError indicates the request is still too large for the
// model even after every history turn has been discarded. There is nothing
// left to shrink, so the call fails.
type HistoryExhaustedError struct {
	// Cause is the final ContextTooLargeError from the remote service.
	Cause error
}

func (e *HistoryExhaustedError) Error() string {
	return "dialog history reduced to zero turns but the request still exceeds the model context window"
}

func (e *HistoryExhaustedError) Unwrap() error {
	return e.Cause
}

// RateLimitedError indicates the provider throttled the request.
// It carries a user-facing message and is never retried.
type RateLimitedError struct {
	// StatusCode is the HTTP status the provider responded with.
	StatusCode int

	// Message is the provider's error message.
	Message string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("usage limit reached, please try again later: %s", e.Message)
}

// UnknownModelError indicates local token accounting has no overhead
// constants for the given model identifier.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model: %s", e.Model)
}
