// Package errors provides error handling for the relay.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Network portability for distributed systems
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrMalformedClock) {
//	    // handle bad cursor
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors shared across the relay.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrMalformedClock indicates an HLC token that does not parse or is
	// outside the representable range
	ErrMalformedClock = New("malformed clock")

	// ErrUnknownEntityType indicates an event naming an entity class
	// outside the closed set
	ErrUnknownEntityType = New("unknown entity type")

	// ErrUnknownOperation indicates an event op outside create|update|delete
	ErrUnknownOperation = New("unknown operation")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrBatchTooLarge indicates a push batch exceeding the configured
	// maximum; the whole batch is rejected, never truncated
	ErrBatchTooLarge = New("batch too large")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")
)

// IsMalformedClockError checks if an error is or wraps ErrMalformedClock
func IsMalformedClockError(err error) bool {
	return err != nil && Is(err, ErrMalformedClock)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsBatchTooLargeError checks if an error is or wraps ErrBatchTooLarge
func IsBatchTooLargeError(err error) bool {
	return err != nil && Is(err, ErrBatchTooLarge)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}
