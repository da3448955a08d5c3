package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Classify maps a transport error or HTTP status to an AppError with a
// kind, severity and a human-readable message. Domain services funnel
// every failure through here so that components never see a raw transport
// error.
//
// Rules, in order:
//   - transport error that is a timeout (or whose message contains
//     "timeout") -> KindTimeout, warning
//   - any other transport error (request sent, no response) -> KindNetwork,
//     warning
//   - 401/403 -> KindAuth ("please log in again")
//   - 404 -> KindNotFound, info
//   - 5xx -> KindServer ("try again later")
//   - other 4xx -> KindValidation
func Classify(err error, statusCode int) *AppError {
	if err != nil {
		if IsTimeoutError(err) {
			return &AppError{
				Err:        err,
				Kind:       KindTimeout,
				Severity:   SeverityWarning,
				Code:       "TIMEOUT",
				Message:    "the request timed out",
				StatusCode: http.StatusGatewayTimeout,
			}
		}
		return &AppError{
			Err:        err,
			Kind:       KindNetwork,
			Severity:   SeverityWarning,
			Code:       "NETWORK_ERROR",
			Message:    "could not reach the server, check your connection",
			StatusCode: http.StatusBadGateway,
		}
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &AppError{
			Err:        ErrUnauthorized,
			Kind:       KindAuth,
			Severity:   SeverityError,
			Code:       "AUTH_ERROR",
			Message:    "please log in again",
			StatusCode: statusCode,
		}
	case statusCode == http.StatusNotFound:
		return &AppError{
			Err:        ErrNotFound,
			Kind:       KindNotFound,
			Severity:   SeverityInfo,
			Code:       "NOT_FOUND",
			Message:    "the requested resource was not found",
			StatusCode: statusCode,
		}
	case statusCode >= 500:
		return &AppError{
			Err:        ErrInternal,
			Kind:       KindServer,
			Severity:   SeverityError,
			Code:       "SERVER_ERROR",
			Message:    "the server had a problem, try again later",
			StatusCode: statusCode,
		}
	case statusCode >= 400:
		return &AppError{
			Err:        ErrBadRequest,
			Kind:       KindValidation,
			Severity:   SeverityError,
			Code:       "REQUEST_ERROR",
			Message:    "the request was rejected",
			StatusCode: statusCode,
		}
	}

	return &AppError{
		Kind:       KindUnknown,
		Severity:   SeverityError,
		Code:       "UNKNOWN_ERROR",
		Message:    "an unexpected error occurred",
		StatusCode: http.StatusInternalServerError,
	}
}

// IsTimeoutError reports whether err is timeout-class: a context deadline,
// a net.Error timeout, or an error whose message mentions "timeout".
// Only timeout-class errors are retried by the gateway client.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// KindOf returns the kind of an error, or KindUnknown if it is not an
// AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}
