package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTimeout      = errors.New("request timed out")
	ErrNetwork      = errors.New("network error")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Kind classifies an error by its transport/HTTP cause. Every error a
// domain service surfaces carries exactly one kind.
type Kind string

const (
	// KindTimeout covers aborted connections and anything the transport
	// reports as a timeout. Retried by the gateway client.
	KindTimeout Kind = "timeout"
	// KindAuth covers 401/403 responses.
	KindAuth Kind = "auth"
	// KindNotFound covers 404 responses. Informational, non-blocking.
	KindNotFound Kind = "not_found"
	// KindServer covers 5xx responses.
	KindServer Kind = "server"
	// KindNetwork covers requests that were sent but got no response.
	KindNetwork Kind = "network"
	// KindValidation covers 4xx responses other than auth/not-found.
	KindValidation Kind = "validation"
	// KindUnknown is the catch-all for errors no rule matched.
	KindUnknown Kind = "unknown"
)

// Severity is the user-facing weight of an error.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Kind       Kind              `json:"kind"`
	Severity   Severity          `json:"severity"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Kind:       KindUnknown,
		Severity:   SeverityError,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Kind:       KindUnknown,
		Severity:   SeverityError,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Kind:       KindNotFound,
		Severity:   SeverityInfo,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Kind:       KindAuth,
		Severity:   SeverityError,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Kind:       KindAuth,
		Severity:   SeverityError,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Kind:       KindValidation,
		Severity:   SeverityError,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Kind:       KindValidation,
		Severity:   SeverityError,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Kind:       KindServer,
		Severity:   SeverityError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Kind:       KindValidation,
		Severity:   SeverityError,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Err:        ErrTimeout,
		Kind:       KindTimeout,
		Severity:   SeverityWarning,
		Code:       "TIMEOUT",
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
	}
}

func Network(message string) *AppError {
	return &AppError{
		Err:        ErrNetwork,
		Kind:       KindNetwork,
		Severity:   SeverityWarning,
		Code:       "NETWORK_ERROR",
		Message:    message,
		StatusCode: http.StatusBadGateway,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Kind:       KindAuth,
		Severity:   SeverityError,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Kind:       KindAuth,
		Severity:   SeverityError,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
