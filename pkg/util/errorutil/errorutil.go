package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to clients.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewUsernameTaken() error {
	return NewDomainError(CodeUsernameTaken, "Username already exists", http.StatusBadRequest, nil)
}

func NewWeakPassword(minLength int) error {
	return NewDomainError(CodeWeakPassword,
		fmt.Sprintf("Password must be at least %d characters long", minLength),
		http.StatusBadRequest,
		map[string]any{"minLength": minLength})
}

func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized, nil)
}

// NewUnauthorized covers every token failure with one message so callers
// cannot tell a missing header from a bad signature or an expired token.
func NewUnauthorized() error {
	return NewDomainError(CodeUnauthorized, "Authentication required", http.StatusUnauthorized, nil)
}

func NewTooManyRequests(message string) error {
	return NewDomainError(CodeTooManyRequests, message, http.StatusTooManyRequests, nil)
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromStatus builds a DomainError for a bare HTTP status, e.g. router misses.
func FromStatus(status int, message string) *DomainError {
	switch status {
	case http.StatusNotFound:
		return NewNotFound("Route").(*DomainError)
	case http.StatusUnauthorized:
		return NewDomainError(CodeUnauthorized, message, status, nil)
	case http.StatusTooManyRequests:
		return NewDomainError(CodeTooManyRequests, message, status, nil)
	}
	if status >= http.StatusInternalServerError {
		return NewInternalError(errors.New(message)).(*DomainError)
	}
	return NewDomainError(CodeValidationFailed, message, status, nil)
}

// ToDomainError converts generic errors to DomainError. Anything unknown
// becomes an internal error whose cause stays server-side.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
