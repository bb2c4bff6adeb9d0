package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeBusiness   ErrorType = "business"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
)

// Well-known error codes used across the matching engine.
const (
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodePersistenceFailed = "PERSISTENCE_FAILED"
	CodeAlreadyRunning    = "ALREADY_RUNNING"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

// NewSourceUnavailableError marks the procurement registry as unreachable or
// returning garbage. The whole run aborts on this one.
func NewSourceUnavailableError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       CodeSourceUnavailable,
		Message:    message,
		Retryable:  true,
		StatusCode: 502,
	}
}

// NewRemoteUnavailableError marks the remote embedding backend as down.
// Hybrid vectorizers fall back on it; everything else skips the item.
func NewRemoteUnavailableError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       CodeRemoteUnavailable,
		Message:    message,
		Retryable:  true,
		StatusCode: 502,
	}
}

func NewPersistenceError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodePersistenceFailed,
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  false,
		StatusCode: 500,
	}
}

// IsCode reports whether err is an *AppError carrying the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRemoteUnavailable reports whether err signals an embedding backend outage.
func IsRemoteUnavailable(err error) bool {
	return IsCode(err, CodeRemoteUnavailable)
}

// IsSourceUnavailable reports whether err signals a registry outage.
func IsSourceUnavailable(err error) bool {
	return IsCode(err, CodeSourceUnavailable)
}
