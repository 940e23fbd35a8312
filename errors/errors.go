package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified taskflow error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// --- Constructors ---

// GraphShape reports a graph that cannot be scheduled.
func GraphShape(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeGraphShape, Message: fmt.Sprintf(format, args...)}
}

// Configuration reports an invalid scheduler selection or scheduler options.
func Configuration(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput reports a malformed document or argument.
func InvalidInput(field, reason string) *AppError {
	e := &AppError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason)}
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// TaskExecution wraps the failure of one node's task. The cause is kept as is.
func TaskExecution(nodeID string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeTaskExecution,
		Message: fmt.Sprintf("task of node %q failed", nodeID),
		Details: map[string]any{"node_id": nodeID},
		Cause:   cause,
	}
}

// InternalConsistency reports a result that should exist but does not.
func InternalConsistency(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternalConsistency, Message: fmt.Sprintf(format, args...)}
}

// ConnectionFailed reports a backend that could not be reached.
func ConnectionFailed(service string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeConnectionFailed,
		Message: fmt.Sprintf("unable to connect to %s", service),
		Details: map[string]any{"service": service},
		Cause:   cause,
	}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "unexpected internal failure", Cause: cause}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
