package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for fact store operations.
type ErrorCode string

const (
	// ErrCodeValidationFailed indicates invalid input at the write boundary.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodeStorageFailure indicates an underlying database I/O failure.
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"
	// ErrCodeNotFound indicates the requested record does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeEmbeddingFailed indicates the embedding provider failed.
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	// ErrCodeRateLimited indicates the caller exceeded the request budget.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// StoreError represents a structured error for fact store operations.
type StoreError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Convenience constructors for common error types.

// ValidationFailed creates a validation error.
func ValidationFailed(msg string) *StoreError {
	return &StoreError{Code: ErrCodeValidationFailed, Message: msg}
}

// StorageFailure creates a storage error wrapping the database cause.
func StorageFailure(msg string, cause error) *StoreError {
	return &StoreError{Code: ErrCodeStorageFailure, Message: msg, Cause: cause}
}

// NotFound creates a not found error.
func NotFound(msg string) *StoreError {
	return &StoreError{Code: ErrCodeNotFound, Message: msg}
}

// EmbeddingFailed creates an embedding provider error.
func EmbeddingFailed(msg string, cause error) *StoreError {
	return &StoreError{Code: ErrCodeEmbeddingFailed, Message: msg, Cause: cause}
}

// RateLimited creates a rate limit exceeded error.
func RateLimited(msg string) *StoreError {
	return &StoreError{Code: ErrCodeRateLimited, Message: msg}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *StoreError {
	return &StoreError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns ErrCodeStorageFailure for unknown error types.
func GetCodeFromError(err error) ErrorCode {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return ErrCodeStorageFailure
}
