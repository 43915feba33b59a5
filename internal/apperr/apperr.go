// Package apperr defines the closed set of error categories used across the
// service. Callers branch with errors.Is / errors.As instead of inspecting
// strings or status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input (bad payload, bad schedule fields).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup for an unknown user, credential or record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSchedule marks enqueue options that are absent or contradictory.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrInvalidState marks an OAuth state value that is missing, already
	// consumed, or expired.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrPersistence marks a record-store write failure. Retryable.
	ErrPersistence = errors.New("persistence failed")
)

// AuthError is returned when the identity provider rejects a token exchange
// or refresh.
type AuthError struct {
	Op     string // "exchange", "refresh" or "me"
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s failed: status=%d body=%s", e.Op, e.Status, e.Body)
}

// UpstreamError is returned when a metrics provider call fails. It is
// swallowed at the aggregator boundary and never aborts a job.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// DeliveryError is returned when the platform post call fails or returns
// anything other than the documented created status.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: status=%d body=%s", e.Status, e.Body)
}
