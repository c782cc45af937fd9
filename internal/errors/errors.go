package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// SourceMissing indicates an expected source artifact is absent from staging
	SourceMissing ErrorCode = "SOURCE_MISSING"
	// SourceCorrupt indicates a source archive or file could not be read
	SourceCorrupt ErrorCode = "SOURCE_CORRUPT"
	// InvalidAction indicates an unrecognized conflict-resolution action or empty bulk request
	InvalidAction ErrorCode = "INVALID_ACTION"
	// CodeNotFound indicates a code does not exist in its vocabulary table
	CodeNotFound ErrorCode = "CODE_NOT_FOUND"
	// ConflictNotFound indicates a conflict id does not exist
	ConflictNotFound ErrorCode = "CONFLICT_NOT_FOUND"
	// ValidationFailed indicates pre-flight validation failed in strict mode
	ValidationFailed ErrorCode = "VALIDATION_FAILED"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// CodingError is the typed error carried across package boundaries.
// It pairs a stable code with a human-readable message and an optional cause.
type CodingError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CodingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CodingError) Unwrap() error {
	return e.Cause
}

// New creates a CodingError without a cause
func New(code ErrorCode, message string) *CodingError {
	return &CodingError{Code: code, Message: message}
}

// Newf creates a CodingError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *CodingError {
	return &CodingError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a CodingError wrapping a cause
func Wrap(code ErrorCode, message string, cause error) *CodingError {
	return &CodingError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the ErrorCode from an error chain, or InternalError
// if the chain contains no CodingError.
func CodeOf(err error) ErrorCode {
	var ce *CodingError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return InternalError
}

// Is reports whether the error chain carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
