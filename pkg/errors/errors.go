package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so callers can write
// errors.Is(err, errors.ErrConflictKind).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrNotAuthorized:
		return http.StatusForbidden
	case ErrInvalidTransition, ErrConflict:
		return http.StatusConflict
	case ErrValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrNotAuthorized
	ErrInvalidTransition
	ErrConflict
	ErrValidation
	ErrInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrNotAuthorized:
		return "NOT_AUTHORIZED"
	case ErrInvalidTransition:
		return "INVALID_TRANSITION"
	case ErrConflict:
		return "CONFLICT"
	case ErrValidation:
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL"
	}
}

// Kind sentinels for errors.Is
var (
	ErrNotFoundKind          = &AppError{Code: ErrNotFound}
	ErrNotAuthorizedKind     = &AppError{Code: ErrNotAuthorized}
	ErrInvalidTransitionKind = &AppError{Code: ErrInvalidTransition}
	ErrConflictKind          = &AppError{Code: ErrConflict}
	ErrValidationKind        = &AppError{Code: ErrValidation}
	ErrInternalKind          = &AppError{Code: ErrInternal}
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NotAuthorized(message string) *AppError {
	return &AppError{
		Code:    ErrNotAuthorized,
		Message: message,
	}
}

func InvalidTransition(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: message,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrNotFound
}

func IsConflict(err error) bool {
	return err != nil && CodeOf(err) == ErrConflict
}
