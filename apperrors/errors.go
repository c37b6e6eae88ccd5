package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound means the target user or entity does not exist
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeSelfReference means the actor targeted itself where that is not allowed
	ErrorTypeSelfReference ErrorType = "self_reference"
	ErrorTypeAlreadyFollowing ErrorType = "already_following"
	ErrorTypeNotFollowing     ErrorType = "not_following"
	ErrorTypeAlreadyBlocked   ErrorType = "already_blocked"
	ErrorTypeNotBlocked       ErrorType = "not_blocked"
	// ErrorTypeForbidden means the actor is authenticated but not allowed
	ErrorTypeForbidden ErrorType = "forbidden"
	// ErrorTypeUnauthorized means credentials are missing or wrong
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeValidation covers field-level input problems
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUsersNotFound is an empty search result, not a hard failure
	ErrorTypeUsersNotFound ErrorType = "users_not_found"
	// ErrorTypeStorageUnavailable wraps infrastructure failures
	ErrorTypeStorageUnavailable ErrorType = "storage_unavailable"
)

// BaseError is the error type returned by every service operation.
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Is matches any BaseError of the same type, so callers can compare
// against the sentinels below regardless of message.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// New creates an error of the given type with a user-facing message.
func New(errType ErrorType, message string) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap creates an error of the given type around a cause.
func Wrap(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound           = New(ErrorTypeNotFound, "not found")
	ErrSelfReference      = New(ErrorTypeSelfReference, "self reference")
	ErrAlreadyFollowing   = New(ErrorTypeAlreadyFollowing, "already following")
	ErrNotFollowing       = New(ErrorTypeNotFollowing, "not following")
	ErrAlreadyBlocked     = New(ErrorTypeAlreadyBlocked, "already blocked")
	ErrNotBlocked         = New(ErrorTypeNotBlocked, "not blocked")
	ErrForbidden          = New(ErrorTypeForbidden, "forbidden")
	ErrUnauthorized       = New(ErrorTypeUnauthorized, "unauthorized")
	ErrValidation         = New(ErrorTypeValidation, "validation failed")
	ErrUsersNotFound      = New(ErrorTypeUsersNotFound, "users not found")
	ErrStorageUnavailable = New(ErrorTypeStorageUnavailable, "storage unavailable")
)

func NewNotFound(message string) *BaseError {
	return New(ErrorTypeNotFound, message)
}

func NewSelfReference(message string) *BaseError {
	return New(ErrorTypeSelfReference, message)
}

func NewForbidden(message string) *BaseError {
	return New(ErrorTypeForbidden, message)
}

func NewValidation(message string) *BaseError {
	return New(ErrorTypeValidation, message)
}

// NewStorageUnavailable wraps an infrastructure failure.
func NewStorageUnavailable(err error) *BaseError {
	return Wrap(ErrorTypeStorageUnavailable, "Internal Server Error", err)
}

// TypeOf returns the type of the first BaseError in err's chain, or ""
// when err carries none.
func TypeOf(err error) ErrorType {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Type
	}
	return ""
}
