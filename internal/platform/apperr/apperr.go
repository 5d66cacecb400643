// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for StorageUp.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing a machine-readable Code and a client-safe message.
  - Taxonomy: A closed set of [Code] constants. Callers switch on the code, never on
    the message text.
  - Mapping: Every constructor fixes the HTTP status that belongs to its code.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable identifier carried by every [AppError].
type Code string

// # Error Taxonomy

const (
	// Authentication (401)
	CodeTokenMissing       Code = "TOKEN_MISSING"
	CodeTokenInvalid       Code = "TOKEN_INVALID"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeAccountNotFound    Code = "ACCOUNT_NOT_FOUND"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"

	// Authorization (403)
	CodeForbiddenClientOnly Code = "FORBIDDEN_CLIENT_ONLY"
	CodeForbiddenAdminOnly  Code = "FORBIDDEN_ADMIN_ONLY"
	CodeInsufficientRole    Code = "INSUFFICIENT_ROLE"

	// Input (400)
	CodeValidation                 Code = "VALIDATION_ERROR"
	CodeDuplicateEmail             Code = "DUPLICATE_EMAIL"
	CodeResetTokenInvalidOrExpired Code = "RESET_TOKEN_INVALID_OR_EXPIRED"

	// Resources
	CodeNotFound    Code = "NOT_FOUND"
	CodeRateLimited Code = "RATE_LIMITED"

	// Server (5xx)
	CodeEmailDeliveryFailed Code = "EMAIL_DELIVERY_FAILED"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeServiceUnavailable  Code = "SERVICE_UNAVAILABLE"
)

// AppError is the canonical error type for the StorageUp API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., driver errors).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "TOKEN_EXPIRED").
	Code Code `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

func newError(code Code, status int, msg string) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: status}
}

// # Authentication Errors (401)

// TokenMissing reports that no credential was presented on any carrier.
func TokenMissing() *AppError {
	return newError(CodeTokenMissing, http.StatusUnauthorized, "Authentication token is missing")
}

// TokenInvalid reports a token whose signature or structure failed verification.
func TokenInvalid() *AppError {
	return newError(CodeTokenInvalid, http.StatusUnauthorized, "Invalid token")
}

// TokenExpired reports a correctly signed token that is past its expiry.
func TokenExpired() *AppError {
	return newError(CodeTokenExpired, http.StatusUnauthorized, "Token expired")
}

// AccountNotFound reports a valid token whose subject no longer exists.
func AccountNotFound() *AppError {
	return newError(CodeAccountNotFound, http.StatusUnauthorized, "User no longer exists")
}

// InvalidCredentials is returned for a failed login, whatever the reason.
func InvalidCredentials() *AppError {
	return newError(CodeInvalidCredentials, http.StatusUnauthorized, "Invalid email or password")
}

// # Authorization Errors (403)

// ForbiddenClientOnly rejects elevated identities on client-only endpoints.
func ForbiddenClientOnly(msg string) *AppError {
	return newError(CodeForbiddenClientOnly, http.StatusForbidden, msg)
}

// ForbiddenAdminOnly rejects identities lacking admin or moderator.
func ForbiddenAdminOnly(msg string) *AppError {
	return newError(CodeForbiddenAdminOnly, http.StatusForbidden, msg)
}

// InsufficientRole rejects identities holding none of the required roles.
func InsufficientRole(msg string) *AppError {
	return newError(CodeInsufficientRole, http.StatusForbidden, msg)
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("User") // Returns "User not found"
func NotFound(resource string) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, resource+" not found")
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// DuplicateEmail creates a 400 [AppError] for an already registered email.
func DuplicateEmail() *AppError {
	return newError(CodeDuplicateEmail, http.StatusBadRequest, "User with this email already exists")
}

// ResetTokenInvalidOrExpired is deliberately identical for wrong, used and expired tokens.
func ResetTokenInvalidOrExpired() *AppError {
	return newError(CodeResetTokenInvalidOrExpired, http.StatusBadRequest, "Password reset token is invalid or has expired")
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return newError(CodeRateLimited, http.StatusTooManyRequests,
		fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds))
}

// # Server Errors (5xx)

// EmailDeliveryFailed wraps a mail transport failure.
func EmailDeliveryFailed(cause error) *AppError {
	return &AppError{
		Code:       CodeEmailDeliveryFailed,
		Message:    "There was an error sending the email. Please try again later.",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError] for unreachable dependencies.
func ServiceUnavailable(msg string, cause error) *AppError {
	return &AppError{
		Code:       CodeServiceUnavailable,
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries an [*AppError] with the given code.
func HasCode(err error, code Code) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
