// Package errors provides structured error types for the dbpool connection pool.
// Caller-facing failures are exposed as sentinel errors so that callers can tell
// a retryable condition (timeout) from one that should raise an alert (creation failure).
//
// This package provides:
//   - Sentinel errors for pool and driver failure conditions
//   - Error codes for categorizing failures in status responses
//   - Error wrapping with context preservation
//   - Safe error messages that don't leak DSNs or credentials
package errors

import (
	"errors"
	"fmt"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Error codes for categorizing errors. The values follow the JSON-RPC 2.0
// reserved range for application errors (-32000 to -32099).
const (
	CodeInvalidParams = -32602 // Invalid parameters
	CodeInternal      = -32603 // Internal error

	CodeTimeout     = -32005 // Operation timeout
	CodeUnavailable = -32007 // Service unavailable
	CodeValidation  = -32008 // Validation failed
	CodeConnection  = -32009 // Connection error
	CodeState       = -32010 // Invalid state
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates a service is unavailable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState indicates an invalid state transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrConnection indicates a connection error.
	ErrConnection = errors.New("connection error")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")

	// ErrCircuitOpen indicates the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Pool errors
var (
	// ErrAcquireTimeout means no connection became available before the
	// acquire deadline. The pool state is unchanged; callers may retry.
	ErrAcquireTimeout = fmt.Errorf("pool: acquire %w", ErrTimeout)

	// ErrCreationFailed means the driver could not open a new connection.
	// It is surfaced immediately and never retried inside the pool.
	ErrCreationFailed = fmt.Errorf("pool: connection creation failed: %w", ErrConnection)

	// ErrCloseFailed means the driver reported an error while closing a
	// connection. It is logged by the pool and never returned to callers.
	ErrCloseFailed = errors.New("pool: connection close failed")

	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = fmt.Errorf("pool: %w", ErrClosed)

	// ErrAlreadyInitialized is returned by a second call to pool.Init.
	ErrAlreadyInitialized = fmt.Errorf("pool: already initialized: %w", ErrInvalidState)

	// ErrNotInitialized is returned when the process-wide pool is used before Init.
	ErrNotInitialized = fmt.Errorf("pool: not initialized: %w", ErrInvalidState)

	// ErrConnReleased is returned when a handle is released or discarded twice.
	ErrConnReleased = fmt.Errorf("pool: connection already released: %w", ErrInvalidState)

	// ErrInvalidPoolConfig indicates an invalid pool configuration.
	ErrInvalidPoolConfig = fmt.Errorf("pool: %w", ErrConfiguration)
)

// Driver errors
var (
	// ErrUnsupportedDriver indicates the configured driver type is unknown.
	ErrUnsupportedDriver = fmt.Errorf("driver: unsupported type: %w", ErrConfiguration)

	// ErrNoRows indicates a probe query returned no rows.
	ErrNoRows = errors.New("driver: query returned no rows")

	// ErrNotSupported indicates the underlying driver connection lacks a capability.
	ErrNotSupported = errors.New("driver: operation not supported by connection")
)

// Error is a structured error with a code and safe message.
// It implements the error interface and provides methods for
// error handling and response generation.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message is a safe, user-facing error message
	Message string `json:"message"`
	// Err is the underlying error (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// SafeMessage returns a client-safe error message without internal details.
func (e *Error) SafeMessage() string {
	return e.Message
}

// New creates a new structured error with the given code and message.
// The message should be safe to return to clients.
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and safe message.
// The original error is preserved for debugging but not exposed to clients.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapInternal wraps an internal error with a generic message.
// Use this when the original error contains sensitive information.
func WrapInternal(err error) *Error {
	if err != nil {
		log.WithError(err).Debug("wrapping internal error")
	}
	return &Error{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// FromSentinel creates a structured error from a sentinel error.
// It automatically assigns an appropriate error code based on the error type.
// Driver errors wrapped by ErrCreationFailed are hidden behind the sentinel
// message since they may carry a DSN.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}

	message := err.Error()
	if errors.Is(err, ErrCreationFailed) {
		message = ErrCreationFailed.Error()
	}

	return &Error{
		Code:    codeFromError(err),
		Message: message,
		Err:     err,
	}
}

// codeFromError maps sentinel errors to error codes.
func codeFromError(err error) int {
	switch {
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrConnection):
		return CodeConnection
	case errors.Is(err, ErrClosed), errors.Is(err, ErrUnavailable), errors.Is(err, ErrCircuitOpen):
		return CodeUnavailable
	case errors.Is(err, ErrConfiguration):
		return CodeValidation
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidParams
	case errors.Is(err, ErrInvalidState):
		return CodeState
	default:
		return CodeInternal
	}
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCreationFailed returns true if the driver failed to open a connection.
func IsCreationFailed(err error) bool {
	return errors.Is(err, ErrCreationFailed)
}

// IsUnavailable returns true if the error indicates a service is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsInvalidState returns true if the error indicates an invalid state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// Join combines multiple errors into a single error.
// Returns nil if all errors are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target,
// and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}
