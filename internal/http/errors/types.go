// Package errors define el AppError de la capa HTTP y su serialización.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError es la forma estándar de un error expuesto por HTTP.
type AppError struct {
	Code       string
	Message    string
	Detail     string
	HTTPStatus int
	Err        error // causa, sólo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// FromError convierte cualquier error en AppError; lo desconocido es 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithDetail devuelve una COPIA con detalle (no muta las variables globales).
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// =================================================================================
// PREDEFINIDOS
// =================================================================================

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "Request body is not valid JSON.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "Request body is too large.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
)

var (
	ErrTokenMissing = &AppError{
		Code:       "TOKEN_MISSING",
		Message:    "Missing authorization header.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "Invalid or expired token.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Admin privileges required.",
		HTTPStatus: http.StatusForbidden,
	}
)

var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

var (
	// ErrTooManyRequests: límite de entrada del servicio.
	ErrTooManyRequests = &AppError{
		Code:       "TOO_MANY_REQUESTS",
		Message:    "Too many requests. Please slow down.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	// ErrRateLimitExceeded: el gateway de IA respondió 429.
	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Rate limit exceeded. Please try again later.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	// ErrQuotaExhausted: el gateway de IA no tiene créditos.
	ErrQuotaExhausted = &AppError{
		Code:       "QUOTA_EXHAUSTED",
		Message:    "AI credits exhausted. Please add credits to continue.",
		HTTPStatus: http.StatusPaymentRequired,
	}
)

var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrAuthorizationUnavailable: no se pudo confirmar el rol (fail-closed).
	ErrAuthorizationUnavailable = &AppError{
		Code:       "AUTHORIZATION_UNAVAILABLE",
		Message:    "Unable to verify permissions. Please try again later.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service temporarily unavailable.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
