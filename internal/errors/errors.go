package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Error is the domain error carried across service boundaries. Code is stable
// and machine-readable; Status is the HTTP status the REST layer responds with.
type Error struct {
	Code    string
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

func newError(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

// Validation marks user-correctable bad input.
func Validation(msg string) *Error { return newError("validation_error", http.StatusBadRequest, msg) }

// NotFound marks a missing entity.
func NotFound(msg string) *Error { return newError("not_found", http.StatusNotFound, msg) }

// Forbidden marks an authenticated caller acting on an entity it is not
// authorized for.
func Forbidden(msg string) *Error { return newError("forbidden", http.StatusForbidden, msg) }

// Unauthorized marks a missing or invalid credential.
func Unauthorized(msg string) *Error { return newError("unauthorized", http.StatusUnauthorized, msg) }

// QuotaExceeded marks a rate or coin limit rejection.
func QuotaExceeded(msg string) *Error {
	return newError("quota_exceeded", http.StatusTooManyRequests, msg)
}

// InsufficientCoins marks a coin balance rejection (402 per the exposed API).
func InsufficientCoins(msg string) *Error {
	return newError("insufficient_coins", http.StatusPaymentRequired, msg)
}

// Conflict marks a duplicate interaction, e.g. liking the same user twice.
func Conflict(msg string) *Error { return newError("already_processed", http.StatusConflict, msg) }

// External marks a collaborator (alerting, upload, OTP) failure.
func External(msg string, cause error) *Error {
	e := newError("external_service_error", http.StatusBadGateway, msg)
	e.cause = cause
	return e
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	e := newError("internal_error", http.StatusInternalServerError, "internal server error")
	e.cause = cause
	return e
}

// Map converts repo/infra errors into domain errors. Keeps the service layer
// clean by centralizing the translation.
func Map(err error) *Error {
	if err == nil {
		return nil
	}

	var domain *Error
	switch {
	case errors.As(err, &domain):
		return domain

	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("record not found")

	case errors.Is(err, context.DeadlineExceeded):
		return newError("deadline_exceeded", http.StatusGatewayTimeout, "request timed out")

	case errors.Is(err, context.Canceled):
		return newError("canceled", 499, "request was canceled")

	default:
		return Internal(err)
	}
}
