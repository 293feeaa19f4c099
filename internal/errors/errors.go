// Package errors provides the coded error taxonomy shared by the game core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure the caller can react to.
type ErrorCode string

const (
	// Content
	ErrContentUnavailable ErrorCode = "CONTENT_UNAVAILABLE"
	ErrEncryption         ErrorCode = "ENCRYPTION_ERROR"

	// Remote
	ErrAuthRequired   ErrorCode = "AUTH_REQUIRED"
	ErrNoChallenge    ErrorCode = "NO_CHALLENGE"
	ErrServer         ErrorCode = "SERVER_ERROR"
	ErrNetworkFailure ErrorCode = "NETWORK_FAILURE"

	// Local
	ErrPersistence  ErrorCode = "PERSISTENCE_FAILURE"
	ErrInvalidState ErrorCode = "INVALID_STATE"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
)

// AppError carries an error code, a human readable message and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, errors.New(code, "")) matches on code alone.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if any error in the chain carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first AppError in the chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRecoverable reports whether the failure should surface as a non-blocking
// status rather than abort the caller's flow.
func IsRecoverable(err error) bool {
	switch CodeOf(err) {
	case ErrNetworkFailure, ErrServer, ErrPersistence, ErrAuthRequired, ErrNoChallenge:
		return true
	}
	return false
}
