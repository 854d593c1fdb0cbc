// Package httpx provides the JSON error envelope and response helpers
// shared by every API handler.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a request-level failure kind.
type Code string

// Failure codes rendered by the responder.
const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "RESOURCE_NOT_FOUND"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeConflict     Code = "RESOURCE_EXISTS"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error is the typed failure carried from guards and services to the
// responder. It is created at the point of failure and rendered exactly
// once; it is never mutated afterwards.
type Error struct {
	Code    Code
	Message string
	Status  int
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// FieldError describes a single failing field in a validation error.
type FieldError struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// ForbiddenDetails carries the role context of a denied request.
type ForbiddenDetails struct {
	RequiredRoles []string `json:"requiredRoles,omitempty"`
	RequiredRole  string   `json:"requiredRole,omitempty"`
	ActualRole    string   `json:"actualRole"`
}

// ValidationDetails lists every failing field, not just the first.
type ValidationDetails struct {
	Errors []FieldError `json:"errors"`
}

// InternalDetails keeps the original error text out of the user-facing
// message while preserving it for operators.
type InternalDetails struct {
	OriginalError string `json:"originalError"`
}

// Unauthorized builds a 401 error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

// Forbidden builds a 403 error with optional role details.
func Forbidden(message string, details any) *Error {
	if message == "" {
		message = "Insufficient permissions"
	}
	return &Error{Code: CodeForbidden, Message: message, Status: http.StatusForbidden, Details: details}
}

// NotFound builds a 404 error for the named resource.
func NotFound(resource string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	return &Error{Code: CodeNotFound, Message: resource + " not found", Status: http.StatusNotFound}
}

// Validation builds a 400 error carrying one entry per failing field.
func Validation(message string, fields ...FieldError) *Error {
	if message == "" {
		message = "Validation failed"
	}
	return &Error{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
		Details: ValidationDetails{Errors: fields},
	}
}

// Conflict builds a 409 error with a user-safe message.
func Conflict(message string) *Error {
	if message == "" {
		message = "Resource already exists"
	}
	return &Error{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

// Internal wraps an unclassified error. The original text is only
// exposed under details.originalError, never in the message.
func Internal(err error) *Error {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return &Error{
		Code:    CodeInternal,
		Message: "An internal error occurred",
		Status:  http.StatusInternalServerError,
		Details: InternalDetails{OriginalError: detail},
		cause:   err,
	}
}

// AsError extracts a typed *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
