// Package errors provides the coded error type shared by apnshub packages.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// NotifyError represents an error with code, message, and context.
type NotifyError struct {
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Cause     error          `json:"-"`
}

// Error implements the error interface.
func (e *NotifyError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *NotifyError) Unwrap() error {
	return e.Cause
}

// Is matches another NotifyError by code.
func (e *NotifyError) Is(target error) bool {
	if t, ok := target.(*NotifyError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context information to the error.
func (e *NotifyError) WithContext(key string, value any) *NotifyError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error.
func (e *NotifyError) WithDetails(details string) *NotifyError {
	e.Details = details
	return e
}

// New creates a new NotifyError.
func New(code Code, message string) *NotifyError {
	return &NotifyError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new NotifyError with a formatted message.
func Newf(code Code, format string, args ...any) *NotifyError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a NotifyError.
func Wrap(cause error, code Code, message string) *NotifyError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, code Code, format string, args ...any) *NotifyError {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// GetCode returns the code of the first NotifyError in err's chain, or "".
func GetCode(err error) Code {
	var ne *NotifyError
	if stderrors.As(err, &ne) {
		return ne.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}
