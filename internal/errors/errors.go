// Package errors provides the error taxonomy shared by the ingestion pipeline.
//
// Domain failures are reported as *AppError values carrying an ErrorCode, so
// callers (the job scheduler, the CLI) can classify a failure without string
// matching. Infrastructure code is free to wrap with github.com/pkg/errors;
// As/Is see through any wrapping.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Storage errors
	ErrDatabase         ErrorCode = "DATABASE_ERROR"
	ErrMigration        ErrorCode = "MIGRATION_FAILED"
	ErrStorageIntegrity ErrorCode = "STORAGE_INTEGRITY"
	ErrDownloadFailed   ErrorCode = "DOWNLOAD_FAILED"

	// Data source errors
	ErrSourceAuthExpired ErrorCode = "SOURCE_AUTH_EXPIRED"
	ErrSourceRateLimited ErrorCode = "SOURCE_RATE_LIMITED"
	ErrSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	ErrSourceMalformed   ErrorCode = "SOURCE_MALFORMED"

	// Credential errors
	ErrCredentialMissing ErrorCode = "CREDENTIAL_MISSING"
	ErrCryptoFailed      ErrorCode = "CRYPTO_FAILED"

	// Job errors
	ErrUnknownJobType ErrorCode = "UNKNOWN_JOB_TYPE"
	ErrJobActive      ErrorCode = "JOB_ACTIVE"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or the empty code when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is checks if any AppError in err's chain carries the given code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// IsTransient reports whether err is worth retrying on a later run
// without any change on our side.
func IsTransient(err error) bool {
	return Is(err, ErrSourceRateLimited) || Is(err, ErrSourceUnavailable)
}

// IsFatal reports whether err indicates a modeling bug or bad data rather
// than a passing condition.
func IsFatal(err error) bool {
	return Is(err, ErrStorageIntegrity) || Is(err, ErrSourceMalformed)
}
