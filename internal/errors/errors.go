package errors

import (
	"errors"
	"fmt"
	"strings"
)

// CantorError is the structured error type for Cantor.
// It provides rich context for error handling, logging, and user presentation.
type CantorError struct {
	// Code is the unique error code (e.g., "ERR_204_SONG_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *CantorError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CantorError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CantorError.
func (e *CantorError) Is(target error) bool {
	if t, ok := target.(*CantorError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CantorError) WithDetail(key, value string) *CantorError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *CantorError) WithSuggestion(suggestion string) *CantorError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CantorError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CantorError {
	return &CantorError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CantorError from an existing error.
// The error's message becomes the CantorError message.
func Wrap(code string, err error) *CantorError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *CantorError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError classifies a database error. Lock contention becomes
// retryable ERR_202, anything else ERR_201.
func StorageError(message string, cause error) *CantorError {
	if IsBusy(cause) {
		return New(ErrCodeDatabaseLocked, message, cause)
	}
	return New(ErrCodeDatabaseOpen, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *CantorError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CantorError {
	return New(ErrCodeInternal, message, cause)
}

// IsBusy reports whether err is SQLite lock contention (SQLITE_BUSY or
// SQLITE_LOCKED). Both drivers only expose this through the message.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var ce *CantorError
	if errors.As(err, &ce) && ce.Code == ErrCodeDatabaseLocked {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a CantorError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *CantorError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *CantorError
	if errors.As(err, &ce) {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a CantorError.
// Returns empty string if not a CantorError.
func GetCode(err error) string {
	var ce *CantorError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from a CantorError.
// Returns empty string if not a CantorError.
func GetCategory(err error) Category {
	var ce *CantorError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}
