// Package errors provides structured error types for maptoposter.
//
// Every failure that crosses a package boundary carries a [Code] so the CLI
// and the HTTP service can map it to an exit status or response without
// string matching.
//
// # Error Codes
//
//   - INVALID_*: input validation failures (coordinates, themes, styles, formats)
//   - DATA_ABSENT, PRIMARY_DATA_MISSING: geodata the provider did not return
//   - BACKEND_*: rendering backend failures
//   - PROJECTION_FAILURE, SIZE_ESTIMATION_FAILURE: degraded pipeline stages
//   - NETWORK_ERROR, TIMEOUT, RATE_LIMITED: provider transport failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidTheme, "unknown theme: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidTheme) {
//	    // list available themes
//	}
//
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "overpass query for %s", city)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

const (
	// Input validation errors
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidFormat      Code = "INVALID_FORMAT"
	ErrCodeInvalidTheme       Code = "INVALID_THEME"
	ErrCodeInvalidStyle       Code = "INVALID_STYLE"
	ErrCodeInvalidCoordinates Code = "INVALID_COORDINATES"
	ErrCodeInvalidPath        Code = "INVALID_PATH"

	// Geodata errors
	ErrCodeDataAbsent         Code = "DATA_ABSENT"
	ErrCodePrimaryDataMissing Code = "PRIMARY_DATA_MISSING"
	ErrCodeNotFound           Code = "NOT_FOUND"
	ErrCodeLocationNotFound   Code = "LOCATION_NOT_FOUND"

	// Rendering errors
	ErrCodeBackendUnavailable Code = "BACKEND_UNAVAILABLE"
	ErrCodeBackendDraw        Code = "BACKEND_DRAW_ERROR"
	ErrCodeProjection         Code = "PROJECTION_FAILURE"
	ErrCodeSizeEstimation     Code = "SIZE_ESTIMATION_FAILURE"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Has reports whether any error in err's chain carries code, including
// causes wrapped by an *Error with a different code. A *RateLimitedError
// carries ErrCodeRateLimited.
func Has(err error, code Code) bool {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			if e.Code == code {
				return true
			}
		case *RateLimitedError:
			if code == ErrCodeRateLimited {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return ErrCodeRateLimited
	}
	return ""
}

// UserMessage returns the message without the code prefix for *Error
// values, and err.Error() otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsInput reports whether err was caused by bad caller input rather than a
// provider or rendering failure.
func IsInput(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidTheme,
		ErrCodeInvalidStyle, ErrCodeInvalidCoordinates, ErrCodeInvalidPath:
		return true
	}
	return false
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
