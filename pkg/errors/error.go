// Package errors provides structured error handling with typed error codes.
//
// Codes are grouped by pipeline stage: configuration (100s), data (200s),
// indicator (300s), strategy (400s), execution (500s), engine (600s) and
// market data (700s). A DataError (malformed bar, duplicate timestamp)
// halts a replay; an execution error (timeout, rejected order) is surfaced
// to the driver and the next bar proceeds with state unchanged.
package errors

import (
	"errors"
	"fmt"
)

// Error is a structured error carrying a code, a message and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: nil}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: nil}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// GetCode extracts the ErrorCode from an error chain.
// Returns ErrCodeUnknown if no *Error is found.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks whether an error chain carries a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsData reports whether the error is a data error (2xx code). Data errors
// halt a replay because a skipped bar would corrupt every later decision.
func IsData(err error) bool {
	code := GetCode(err)

	return code >= 200 && code < 300
}

// IsExecution reports whether the error is an execution error (5xx code).
// Execution errors leave portfolio state untouched; the driver re-evaluates
// on the next bar instead of retrying the stale intent.
func IsExecution(err error) bool {
	code := GetCode(err)

	return code >= 500 && code < 600
}

// InsufficientDataError indicates an indicator was asked for a value before
// its lookback window filled.
type InsufficientDataError struct {
	Required int
	Actual   int
	Message  string
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(required, actual int, format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return e.Message
}

// IsInsufficientDataError checks the error chain for an InsufficientDataError.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}
