// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// TestErrorCodeValues verifies all error codes have non-empty values.
func TestErrorCodeValues(t *testing.T) {
	codes := []ErrorCode{
		ErrInternal, ErrInvalid, ErrNotFound,
		ErrDatabase, ErrMigration, ErrStorageIntegrity, ErrDownloadFailed,
		ErrSourceAuthExpired, ErrSourceRateLimited, ErrSourceUnavailable, ErrSourceMalformed,
		ErrCredentialMissing, ErrCryptoFailed,
		ErrUnknownJobType, ErrJobActive,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: New(ErrInternal, "something failed"),
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: Wrap(ErrDatabase, "query failed", errors.New("disk full")),
			want:     "[DATABASE_ERROR] query failed: disk full",
		},
		{
			name:     "formatted message",
			appError: Newf(ErrNotFound, "job %s", "abc"),
			want:     "[NOT_FOUND] job abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

// TestIs_throughWrapping verifies codes are found through fmt and pkg/errors wrapping.
func TestIs_throughWrapping(t *testing.T) {
	base := New(ErrSourceRateLimited, "429")

	wrapped := fmt.Errorf("page 3: %w", base)
	assert.True(t, Is(wrapped, ErrSourceRateLimited))

	stacked := pkgerrors.Wrap(wrapped, "download job")
	assert.True(t, Is(stacked, ErrSourceRateLimited))
	assert.Equal(t, ErrSourceRateLimited, CodeOf(stacked))
	assert.False(t, Is(stacked, ErrSourceMalformed))
}

// TestIs_nestedCodes verifies an inner AppError code is visible through an outer one.
func TestIs_nestedCodes(t *testing.T) {
	inner := New(ErrStorageIntegrity, "foreign key")
	outer := Wrap(ErrDatabase, "commit page", inner)

	assert.True(t, Is(outer, ErrDatabase))
	assert.True(t, Is(outer, ErrStorageIntegrity))
	assert.Equal(t, ErrDatabase, CodeOf(outer))
}

// TestIs_plainError verifies plain errors carry no code.
func TestIs_plainError(t *testing.T) {
	err := errors.New("boom")
	assert.False(t, Is(err, ErrInternal))
	assert.Equal(t, ErrorCode(""), CodeOf(err))
	assert.False(t, Is(nil, ErrInternal))
}

// TestClassification verifies transient and fatal grouping.
func TestClassification(t *testing.T) {
	assert.True(t, IsTransient(New(ErrSourceRateLimited, "")))
	assert.True(t, IsTransient(New(ErrSourceUnavailable, "")))
	assert.False(t, IsTransient(New(ErrSourceMalformed, "")))

	assert.True(t, IsFatal(New(ErrStorageIntegrity, "")))
	assert.True(t, IsFatal(New(ErrSourceMalformed, "")))
	assert.False(t, IsFatal(New(ErrSourceAuthExpired, "")))
}

// TestAppError_Unwrap verifies errors.Is reaches the underlying error.
func TestAppError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := Wrap(ErrInternal, "wrapped", sentinel)
	assert.ErrorIs(t, err, sentinel)
}
