package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrNotFound     ErrorType = "NOT_FOUND"
	ErrUpstream     ErrorType = "UPSTREAM"
	ErrAggregation  ErrorType = "AGGREGATION"
	ErrVerification ErrorType = "VERIFICATION"
	ErrInvalidInput ErrorType = "INVALID_INPUT"
	ErrConflict     ErrorType = "CONFLICT"
	ErrUnauthorized ErrorType = "UNAUTHORIZED"
	ErrInternal     ErrorType = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type      ErrorType
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:      errType,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

func is(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return is(err, ErrNotFound)
}

// IsUpstream checks if the error is an upstream API error
func IsUpstream(err error) bool {
	return is(err, ErrUpstream)
}

// IsAggregation checks if the error is an aggregation error
func IsAggregation(err error) bool {
	return is(err, ErrAggregation)
}

// IsVerification checks if the error is a verification error
func IsVerification(err error) bool {
	return is(err, ErrVerification)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return is(err, ErrInvalidInput)
}

// IsConflict checks if the error is a conflict error
func IsConflict(err error) bool {
	return is(err, ErrConflict)
}

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool {
	return is(err, ErrUnauthorized)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return New(ErrNotFound, message, err)
}

// NewUpstreamError creates a new upstream API error
func NewUpstreamError(message string, err error) *AppError {
	return New(ErrUpstream, message, err)
}

// NewAggregationError creates a new aggregation error
func NewAggregationError(message string, err error) *AppError {
	return New(ErrAggregation, message, err)
}

// NewVerificationError creates a new verification error
func NewVerificationError(message string, err error) *AppError {
	return New(ErrVerification, message, err)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return New(ErrInvalidInput, message, err)
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, err error) *AppError {
	return New(ErrConflict, message, err)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, err error) *AppError {
	return New(ErrUnauthorized, message, err)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return New(ErrInternal, message, err)
}
