// Package errors provides the structured error type surfaced by the session
// store, the hazard service and the backend adapters.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Authentication
const (
	ErrCodeAuthFailed              ErrorCode = "AUTH_FAILED"
	ErrCodeSignUpFailed            ErrorCode = "SIGNUP_FAILED"
	ErrCodeSignOutFailed           ErrorCode = "SIGNOUT_FAILED"
	ErrCodeAccountInactive         ErrorCode = "ACCOUNT_INACTIVE"
	ErrCodeAuthProviderUnavailable ErrorCode = "AUTH_PROVIDER_UNAVAILABLE"
	ErrCodeNotAuthenticated        ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeInvalidCredentials      ErrorCode = "INVALID_CREDENTIALS"
)

// Storage and documents
const (
	ErrCodeStorageReadFailed   ErrorCode = "STORAGE_READ_FAILED"
	ErrCodeStorageWriteFailed  ErrorCode = "STORAGE_WRITE_FAILED"
	ErrCodeDocumentReadFailed  ErrorCode = "DOCUMENT_READ_FAILED"
	ErrCodeDocumentWriteFailed ErrorCode = "DOCUMENT_WRITE_FAILED"
	ErrCodeDocumentNotFound    ErrorCode = "DOCUMENT_NOT_FOUND"
)

// Hazards and geocoding
const (
	ErrCodeHazardValidationFailed ErrorCode = "HAZARD_VALIDATION_FAILED"
	ErrCodeHazardNotFound         ErrorCode = "HAZARD_NOT_FOUND"
	ErrCodeSearchQueryFailed      ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeGeocodeFailed          ErrorCode = "GEOCODE_FAILED"
	ErrCodeGeocodeNoResults       ErrorCode = "GEOCODE_NO_RESULTS"
)

const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

// StandardError represents a structured application error. Message is safe
// to show to an end user; Details carries the underlying cause.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewAuthFailedError wraps a provider sign-in failure. The provider's own
// message, when present, becomes the user-facing message.
func NewAuthFailedError(message string, err error) *StandardError {
	if message == "" {
		message = "Sign in failed"
	}
	return newError(ErrCodeAuthFailed, message, err, false)
}

// NewSignUpFailedError wraps a provider account creation failure.
func NewSignUpFailedError(message string, err error) *StandardError {
	if message == "" {
		message = "An unexpected error occurred. Please try again."
	}
	return newError(ErrCodeSignUpFailed, message, err, false)
}

// NewSignOutFailedError is returned when the provider could not end its
// session. The local session is cleared regardless.
func NewSignOutFailedError(err error) *StandardError {
	return newError(ErrCodeSignOutFailed, "Logout failed. Please try again.", err, true)
}

// NewAccountInactiveError rejects a login for a deactivated account.
func NewAccountInactiveError(userID string) *StandardError {
	e := newError(ErrCodeAccountInactive, "Your account is inactive. Please contact support.", nil, false)
	e.Details = fmt.Sprintf("userId: %s", userID)
	return e
}

// NewAuthProviderUnavailableError is a retryable transport-level failure.
func NewAuthProviderUnavailableError(err error) *StandardError {
	return newError(ErrCodeAuthProviderUnavailable, "Authentication service is unavailable", err, true)
}

// NewInvalidCredentialsError rejects malformed credentials before they reach
// the provider.
func NewInvalidCredentialsError(details string) *StandardError {
	e := newError(ErrCodeInvalidCredentials, "Please enter a valid email address", nil, false)
	e.Details = details
	return e
}

// NewNotAuthenticatedError is returned by operations that need a session.
func NewNotAuthenticatedError(operation string) *StandardError {
	e := newError(ErrCodeNotAuthenticated, "You must be logged in", nil, false)
	e.Details = fmt.Sprintf("operation: %s", operation)
	return e
}

func NewStorageReadFailedError(key string, err error) *StandardError {
	e := newError(ErrCodeStorageReadFailed, "Local storage read failed", err, true)
	e.Metadata = map[string]interface{}{"key": key}
	return e
}

func NewStorageWriteFailedError(key string, err error) *StandardError {
	e := newError(ErrCodeStorageWriteFailed, "Local storage write failed", err, true)
	e.Metadata = map[string]interface{}{"key": key}
	return e
}

func NewDocumentReadFailedError(collection, id string, err error) *StandardError {
	e := newError(ErrCodeDocumentReadFailed, "Document read failed", err, true)
	e.Metadata = map[string]interface{}{"collection": collection, "id": id}
	return e
}

func NewDocumentWriteFailedError(collection, id string, err error) *StandardError {
	e := newError(ErrCodeDocumentWriteFailed, "Document write failed", err, true)
	e.Metadata = map[string]interface{}{"collection": collection, "id": id}
	return e
}

func NewDocumentNotFoundError(collection, id string) *StandardError {
	e := newError(ErrCodeDocumentNotFound, "Document not found", nil, false)
	e.Details = fmt.Sprintf("%s/%s", collection, id)
	return e
}

// NewHazardValidationFailedError carries the joined validation messages.
func NewHazardValidationFailedError(details string) *StandardError {
	e := newError(ErrCodeHazardValidationFailed, "Hazard report is invalid", nil, false)
	e.Details = details
	return e
}

func NewHazardNotFoundError(hazardID string) *StandardError {
	e := newError(ErrCodeHazardNotFound, "Hazard not found", nil, false)
	e.Details = fmt.Sprintf("hazardId: %s", hazardID)
	return e
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Hazard search failed", err, true)
}

func NewGeocodeFailedError(err error) *StandardError {
	return newError(ErrCodeGeocodeFailed, "Address lookup failed", err, true)
}

func NewGeocodeNoResultsError(query string) *StandardError {
	e := newError(ErrCodeGeocodeNoResults, "No matching address found", nil, false)
	e.Details = fmt.Sprintf("query: %s", query)
	return e
}

// AsStandardError reports whether err is, or wraps, a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode reports whether the code describes a transient
// condition.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeAuthProviderUnavailable, ErrCodeSignOutFailed,
		ErrCodeStorageReadFailed, ErrCodeStorageWriteFailed,
		ErrCodeDocumentReadFailed, ErrCodeDocumentWriteFailed,
		ErrCodeSearchQueryFailed, ErrCodeGeocodeFailed:
		return true
	}
	return false
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeAuthFailed, ErrCodeSignUpFailed, ErrCodeSignOutFailed,
		ErrCodeAccountInactive, ErrCodeAuthProviderUnavailable,
		ErrCodeNotAuthenticated, ErrCodeInvalidCredentials:
		return "AUTHENTICATION"
	case ErrCodeStorageReadFailed, ErrCodeStorageWriteFailed:
		return "PERSISTENCE"
	case ErrCodeDocumentReadFailed, ErrCodeDocumentWriteFailed, ErrCodeDocumentNotFound:
		return "DOCUMENT_DATABASE"
	case ErrCodeHazardValidationFailed:
		return "VALIDATION"
	case ErrCodeHazardNotFound, ErrCodeSearchQueryFailed:
		return "HAZARDS"
	case ErrCodeGeocodeFailed, ErrCodeGeocodeNoResults:
		return "GEOCODING"
	}
	return "UNKNOWN"
}
