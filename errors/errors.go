package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	// Cause is kept for logs and errors.Is; it never reaches a response body.
	Cause error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
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

// New creates an AppError, deriving Retryable from the code.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// DependencyUnavailable is returned to clients whenever a downstream
// dependency could not be reached. The message is fixed and carries no
// details so nothing about the topology or the retry history is exposed.
func DependencyUnavailable() *AppError {
	return &AppError{
		Code:       ErrCodeServiceUnavailable,
		Message:    "A required service is temporarily unavailable. Please try again later.",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
	}
}

// ServiceUnavailable creates an error for a named service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates an error for an operation that took too long.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// NotFound creates an error for a missing resource.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// AlreadyExists creates an error for a duplicate resource.
func AlreadyExists(resource string) *AppError {
	return &AppError{
		Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("A %s with these details already exists.", resource),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"resource": resource},
	}
}

// Conflict creates an error for a request that conflicts with current state.
func Conflict(reason string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: reason, HTTPStatus: http.StatusConflict}
}

// InvalidInput creates an error for a bad field value.
func InvalidInput(field, reason string) *AppError {
	e := &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest,
	}
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Validation creates an error for a request that failed validation.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, HTTPStatus: http.StatusBadRequest}
}

// MissingField creates an error for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// Unauthorized creates an error for an unauthenticated caller.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{Code: ErrCodeUnauthorized, Message: reason, HTTPStatus: http.StatusUnauthorized}
}

// Forbidden creates an error for a caller lacking permission.
func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "You don't have permission to perform this action."
	}
	return &AppError{Code: ErrCodeForbidden, Message: reason, HTTPStatus: http.StatusForbidden}
}

// NotImplemented creates an error for an operation the callee does not support.
func NotImplemented(operation string) *AppError {
	return &AppError{
		Code: ErrCodeNotImplemented, Message: fmt.Sprintf("%s is not supported.", operation),
		HTTPStatus: http.StatusNotImplemented,
	}
}

// Internal creates an error for an unexpected failure. The cause is logged, not returned.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// DatabaseError creates an error for a failed storage operation.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}
