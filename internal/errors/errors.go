package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an elclones error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrInvalidMessage   ErrorCode = "INVALID_MESSAGE"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrDuplicateID      ErrorCode = "DUPLICATE_ID"      // 409
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE" // 503
	ErrNoReceiver       ErrorCode = "NO_RECEIVER"       // 503
)

// ElError represents a structured error with code, status, and details.
type ElError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ElError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ElError {
	return &ElError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidMessage creates a 400 error for a context message that cannot be decoded.
func NewInvalidMessage(msg string) *ElError {
	return &ElError{
		Code:    ErrInvalidMessage,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a captured element cannot be found.
func NewNotFound(id string) *ElError {
	return &ElError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("element not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *ElError {
	return &ElError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewDuplicateID creates a 409 error when a record id is already stored.
// Records are immutable, so a second put with the same id is always rejected.
func NewDuplicateID(id string) *ElError {
	return &ElError{
		Code:    ErrDuplicateID,
		Status:  409,
		Message: fmt.Sprintf("element already stored: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *ElError {
	return &ElError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewStoreUnavailable creates a 503 error for a durable store that could not be opened.
func NewStoreUnavailable(reason string) *ElError {
	return &ElError{
		Code:    ErrStoreUnavailable,
		Status:  503,
		Message: fmt.Sprintf("element store unavailable: %s", reason),
	}
}

// NewNoReceiver creates a 503 error when a message has nowhere to go.
func NewNoReceiver(target string) *ElError {
	return &ElError{
		Code:    ErrNoReceiver,
		Status:  503,
		Message: fmt.Sprintf("no receiver for %q", target),
		Details: map[string]any{"target": target},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ElError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ElError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error (or anything it wraps) is an ElError with the given code.
func Is(err error, code ErrorCode) bool {
	var elErr *ElError
	if stderrors.As(err, &elErr) {
		return elErr.Code == code
	}
	return false
}

// As extracts the ElError from err, if any.
func As(err error) (*ElError, bool) {
	var elErr *ElError
	ok := stderrors.As(err, &elErr)
	return elErr, ok
}
