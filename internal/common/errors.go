package common

import (
	"errors"
	"net/http"
)

// Error codes shared across the payment core. They classify failures by who
// has to act: the caller (validation, auth, not found), the provider
// (upstream), or the operator (persistence).
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeAuth        = "AUTH_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeUpstream    = "UPSTREAM_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ValidationError builds a caller's-fault error.
func ValidationError(message string) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, nil)
}

// NotFoundError builds a missing-resource error.
func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, nil)
}

// UpstreamError wraps a provider-side failure. Details should carry the
// provider status and response body for diagnostics.
func UpstreamError(message string, err error, details any) *AppError {
	e := NewAppError(CodeUpstream, message, http.StatusInternalServerError, err)
	e.Details = details
	return e
}

// PersistenceError wraps a store read/write failure.
func PersistenceError(message string, err error) *AppError {
	return NewAppError(CodePersistence, message, http.StatusInternalServerError, err)
}

// AsAppError extracts an AppError from the chain, or wraps err as an
// internal-level persistence fault so handlers always have a code to render.
func AsAppError(err error) *AppError {
	var target *AppError
	if errors.As(err, &target) {
		return target
	}
	return NewAppError(CodePersistence, "internal error", http.StatusInternalServerError, err)
}

// RenderError writes err to the response using the canonical error shape.
func RenderError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
}
