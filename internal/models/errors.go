package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors used throughout the application
var (
	ErrNotFound          = errors.New("not found")
	ErrOrderNotFound     = fmt.Errorf("order %w", ErrNotFound)
	ErrAuthRequired      = errors.New("authentication required")
	ErrAuthExpired       = errors.New("authentication expired")
	ErrNoCheckout        = errors.New("no checkout in progress; return to the concert list to choose tickets")
	ErrPaymentInProgress = errors.New("payment already in progress")
	ErrOrderAlreadyPaid  = errors.New("order has already been paid")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPaymentUnverified = errors.New("payment result could not be verified for this order")
)

// ValidationError describes client-side data problems found before any network call.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// AuthRequiredError is returned when an action needs a credential that is not present.
// LoginURL carries the return path so the shopper comes back after signing in.
type AuthRequiredError struct {
	LoginURL string
	Expired  bool
}

func (e *AuthRequiredError) Error() string {
	if e.Expired {
		return "session expired, please log in again"
	}
	return "login required"
}

func (e *AuthRequiredError) Unwrap() error {
	if e.Expired {
		return ErrAuthExpired
	}
	return ErrAuthRequired
}

// UpstreamError is a non-auth failure returned by the Order or Payment API.
// It is always retryable from the shopper's point of view.
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Retryable reports whether the same action may be attempted again.
func (e *UpstreamError) Retryable() bool {
	return true
}
