// Package xid - errors.go provides custom error types with rich context.
//
// Every failure in this package is a deterministic function of malformed
// input. Nothing is retried internally: errors surface immediately and can be
// inspected with errors.Is() against the sentinels or errors.As() against the
// typed errors below.

package xid

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors in this file unwrap to one of these.
var (
	// ErrInvalidArgument is returned when raw bytes handed to the package are
	// absent or have the wrong length, or when a sink is too small.
	ErrInvalidArgument = errors.New("xid: invalid argument")

	// ErrInvalidID is returned when a text form cannot be decoded.
	ErrInvalidID = errors.New("xid: invalid id")

	// ErrInvalidConfig is returned when Config validation fails.
	ErrInvalidConfig = errors.New("xid: invalid configuration")
)

// ============================================================================
// Custom Error Types
// ============================================================================

// ArgumentError reports a rejected argument to a constructor or sink.
//
// Example usage:
//
//	id, err := xid.FromBytes(raw)
//	var argErr *xid.ArgumentError
//	if errors.As(err, &argErr) {
//	    log.Error("bad id bytes", "arg", argErr.Arg, "reason", argErr.Reason)
//	}
type ArgumentError struct {
	// Arg names the offending argument ("bytes", "dst", ...).
	Arg string

	// Reason is a human-readable explanation, e.g. "must have length of 12".
	Reason string

	// Err is an optional underlying cause such as io.ErrShortBuffer.
	Err error
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("xid: %s %s", e.Arg, e.Reason)
}

// Unwrap exposes both the sentinel and the optional cause to errors.Is().
func (e *ArgumentError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidArgument, e.Err}
	}
	return []error{ErrInvalidArgument}
}

// ParseError reports why a text form was rejected by the decoder.
//
// Offset is the index of the first offending character, or -1 when the
// input as a whole is wrong (bad length).
type ParseError struct {
	// Input is the rejected text, truncated to 64 bytes for logging.
	Input string

	// Offset is the byte offset of the offending character (-1 if n/a).
	Offset int

	// Reason is a human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("xid: cannot parse %q: %s at offset %d", e.Input, e.Reason, e.Offset)
	}
	return fmt.Sprintf("xid: cannot parse %q: %s", e.Input, e.Reason)
}

// Unwrap returns the underlying error for errors.Is() compatibility.
func (e *ParseError) Unwrap() error {
	return ErrInvalidID
}

// ConfigError represents a configuration validation error.
//
// This error type provides details about which configuration field failed
// validation and why, making it easier to diagnose configuration issues.
//
// Example usage:
//
//	if _, err := xid.NewWithConfig(cfg); err != nil {
//	    var configErr *xid.ConfigError
//	    if errors.As(err, &configErr) {
//	        log.Error("invalid generator configuration",
//	            "field", configErr.Field,
//	            "value", configErr.Value,
//	            "reason", configErr.Reason)
//	    }
//	}
type ConfigError struct {
	// Field is the name of the configuration field that failed validation.
	Field string

	// Value is the invalid value (as string for logging).
	Value string

	// Reason is a human-readable explanation of why the value is invalid.
	Reason string

	// Constraint describes the valid range or constraint.
	// Example: "must be 6 hexadecimal digits"
	Constraint string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("xid: invalid configuration: %s=%s (%s) - %s",
		e.Field, e.Value, e.Reason, e.Constraint)
}

// Unwrap returns the underlying error for errors.Is() compatibility.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// ============================================================================
// Error Helper Functions
// ============================================================================

// IsParseError checks if an error is or wraps a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// IsArgumentError checks if an error is or wraps an ArgumentError.
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return errors.As(err, &argErr)
}

// IsConfigError checks if an error is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// GetParseError extracts the ParseError from an error chain.
//
// Returns the ParseError and true if found, nil and false otherwise.
//
// Example:
//
//	if parseErr, ok := xid.GetParseError(err); ok {
//	    fmt.Printf("bad character at %d\n", parseErr.Offset)
//	}
func GetParseError(err error) (*ParseError, bool) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr, true
	}
	return nil, false
}

// GetConfigError extracts the ConfigError from an error chain.
func GetConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// ============================================================================
// Error Constructor Helpers
// ============================================================================

const maxErrorInput = 64

func newParseError(input []byte, offset int, reason string) *ParseError {
	if len(input) > maxErrorInput {
		input = input[:maxErrorInput]
	}
	return &ParseError{
		Input:  string(input),
		Offset: offset,
		Reason: reason,
	}
}

func newArgumentError(arg, reason string, cause error) *ArgumentError {
	return &ArgumentError{Arg: arg, Reason: reason, Err: cause}
}

func newConfigError(field, value, reason, constraint string) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Reason:     reason,
		Constraint: constraint,
	}
}
