package errors

import (
	"errors"
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

// Is matches any *AppError carrying the same code, so callers can write
// errors.Is(err, errors.ErrSlotConflict).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error code to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrValidation, ErrInvalidConfidence:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrSlotConflict, ErrConflict, ErrNoOp, ErrIllegalTransition:
		return http.StatusConflict
	case ErrNoActiveShift:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrSlotConflict
	ErrNoActiveShift
	ErrIllegalTransition
	ErrNoOp
	ErrInvalidConfidence
	ErrConflict
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrValidation:
		return "ValidationError"
	case ErrUnauthorized:
		return "Unauthorized"
	case ErrForbidden:
		return "Forbidden"
	case ErrSlotConflict:
		return "SlotConflict"
	case ErrNoActiveShift:
		return "NoActiveShift"
	case ErrIllegalTransition:
		return "IllegalTransition"
	case ErrNoOp:
		return "NoOp"
	case ErrInvalidConfidence:
		return "InvalidConfidence"
	case ErrConflict:
		return "Conflict"
	default:
		return "Internal"
	}
}

// Sentinels for errors.Is matching.
var (
	ErrKindNotFound          = &AppError{Code: ErrNotFound}
	ErrKindValidation        = &AppError{Code: ErrValidation}
	ErrKindForbidden         = &AppError{Code: ErrForbidden}
	ErrKindSlotConflict      = &AppError{Code: ErrSlotConflict}
	ErrKindNoActiveShift     = &AppError{Code: ErrNoActiveShift}
	ErrKindIllegalTransition = &AppError{Code: ErrIllegalTransition}
	ErrKindNoOp              = &AppError{Code: ErrNoOp}
	ErrKindInvalidConfidence = &AppError{Code: ErrInvalidConfidence}
	ErrKindConflict          = &AppError{Code: ErrConflict}
	ErrKindInternal          = &AppError{Code: ErrInternal}
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
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

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func SlotConflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrSlotConflict,
		Message: message,
		Err:     err,
	}
}

func NoActiveShift(message string) *AppError {
	return &AppError{
		Code:    ErrNoActiveShift,
		Message: message,
	}
}

func IllegalTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrIllegalTransition,
		Message: fmt.Sprintf("transition %s -> %s is not allowed", from, to),
	}
}

func NoOp(status string) *AppError {
	return &AppError{
		Code:    ErrNoOp,
		Message: fmt.Sprintf("appointment is already %s", status),
	}
}

func InvalidConfidence(value float64) *AppError {
	return &AppError{
		Code:    ErrInvalidConfidence,
		Message: fmt.Sprintf("confidence %v is outside [0,1]", value),
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
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

// CodeOf returns the code of the first *AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}
