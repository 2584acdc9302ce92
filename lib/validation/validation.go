// Package validation provides reusable validators for dbpool configuration.
// All validators follow a consistent pattern: they return nil on success and a
// *Result naming the offending field on failure. Messages never include the
// rejected value, so they are safe to log even for credentials.
package validation

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Common validation errors. These are sentinel errors that can be checked with errors.Is().
var (
	// ErrRequired indicates a required field is missing or empty.
	ErrRequired = errors.New("field is required")

	// ErrTooLong indicates a string exceeds the maximum length.
	ErrTooLong = errors.New("value exceeds maximum length")

	// ErrInvalidFormat indicates a value doesn't match the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrOutOfRange indicates a numeric value is outside the allowed range.
	ErrOutOfRange = errors.New("value out of range")
)

// Constraints for common field types.
const (
	// MaxIdentifierLength is the longest database or user name MySQL accepts.
	MaxIdentifierLength = 64

	// MaxPoolSize caps the pool size accepted from configuration.
	MaxPoolSize = 10000

	// MaxDuration is the maximum duration for time-based settings (1 day).
	MaxDuration = 24 * time.Hour
)

// identifierPattern matches unquoted schema identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// Result represents a validation result with field context.
type Result struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (r *Result) Error() string {
	if r.Field != "" {
		return fmt.Sprintf("%s: %s", r.Field, r.Message)
	}
	return r.Message
}

// Unwrap returns the underlying error for errors.Is() support.
func (r *Result) Unwrap() error {
	return r.Err
}

// NewResult creates a validation result.
func NewResult(field, message string, err error) *Result {
	return &Result{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// Required validates that a string is non-empty.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewResult(field, "is required", ErrRequired)
	}
	return nil
}

// MaxLength validates that a string doesn't exceed the maximum length.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return NewResult(field, fmt.Sprintf("exceeds maximum length of %d characters", max), ErrTooLong)
	}
	return nil
}

// IntRange validates that an integer is within the given range (inclusive).
func IntRange(field string, value, min, max int) error {
	if value < min || value > max {
		return NewResult(field, fmt.Sprintf("must be between %d and %d", min, max), ErrOutOfRange)
	}
	return nil
}

// Positive validates that an integer is positive (> 0).
func Positive(field string, value int) error {
	if value <= 0 {
		return NewResult(field, "must be positive", ErrOutOfRange)
	}
	return nil
}

// NonNegative validates that an integer is non-negative (>= 0).
func NonNegative(field string, value int) error {
	if value < 0 {
		return NewResult(field, "must be non-negative", ErrOutOfRange)
	}
	return nil
}

// DurationRange validates that d is zero (use the default) or within [min, max].
func DurationRange(field string, d, min, max time.Duration) error {
	if d < 0 {
		return NewResult(field, "duration cannot be negative", ErrOutOfRange)
	}
	if d != 0 && (d < min || d > max) {
		return NewResult(field,
			fmt.Sprintf("must be between %s and %s", min, max),
			ErrOutOfRange)
	}
	return nil
}

// OneOf validates that value is one of the allowed choices.
func OneOf(field, value string, choices ...string) error {
	if !slices.Contains(choices, value) {
		return NewResult(field,
			fmt.Sprintf("must be one of %s", strings.Join(choices, ", ")),
			ErrInvalidFormat)
	}
	return nil
}

// Identifier validates a database or user name.
func Identifier(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if err := MaxLength(field, value, MaxIdentifierLength); err != nil {
		return err
	}
	if !identifierPattern.MatchString(value) {
		return NewResult(field, "must contain only letters, digits, '_' and '$'", ErrInvalidFormat)
	}
	return nil
}

// Host validates a host name or IP address without a port.
func Host(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if strings.ContainsAny(value, " /") {
		return NewResult(field, "must be a host name or IP address", ErrInvalidFormat)
	}
	if strings.Contains(value, ":") && net.ParseIP(value) == nil {
		return NewResult(field, "must not include a port", ErrInvalidFormat)
	}
	return nil
}

// HostPort validates a host:port address.
func HostPort(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}

	_, _, err := net.SplitHostPort(value)
	if err != nil {
		return NewResult(field, "must be in host:port format", ErrInvalidFormat)
	}

	return nil
}

// Port validates a network port number.
func Port(field string, value int) error {
	if value < 1 || value > 65535 {
		return NewResult(field, "must be between 1 and 65535", ErrOutOfRange)
	}
	return nil
}

// All runs multiple validation functions and returns the first error.
func All(validators ...func() error) error {
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// Errors collects multiple validation errors.
type Errors []error

// Add appends an error to the collection (nil errors are ignored).
func (e *Errors) Add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

// HasErrors returns true if any errors were collected.
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// Error returns all errors as a single error message.
func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("multiple validation errors: ")
	for i, err := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	return e
}

// Err returns e as an error, or nil if nothing was collected.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
