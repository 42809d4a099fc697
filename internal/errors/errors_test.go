package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFatalAuthCodes(t *testing.T) {
	assert.True(t, ErrTokenMissing.Fatal())
	assert.True(t, ErrTokenInvalid.Fatal())
	assert.True(t, ErrRefreshRejected.Fatal())

	// Expired is the one recoverable credential failure
	assert.False(t, ErrTokenExpired.Fatal())
	assert.False(t, ErrValidation.Fatal())
}

func TestStatusCodeFallback(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrNotFound.StatusCode())
	assert.Equal(t, http.StatusUnprocessableEntity, ErrValidation.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("UNKNOWN").StatusCode())
}

func TestUnauthenticatedCarriesVariantCode(t *testing.T) {
	err := Unauthenticated(ErrTokenExpired, "token expired")
	assert.Equal(t, http.StatusUnauthorized, err.Status)

	code, ok := CodeOf(fmt.Errorf("verify: %w", err))
	require.True(t, ok)
	assert.Equal(t, ErrTokenExpired, code)
	assert.False(t, code.Fatal())
}

func TestCodeOfUnwrapsChains(t *testing.T) {
	base := ValidationError("content", "must not be empty")
	wrapped := fmt.Errorf("ingest failed: %w", base)

	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrValidation, code)

	_, ok = CodeOf(fmt.Errorf("plain error"))
	assert.False(t, ok)
}

func TestValidationErrorShape(t *testing.T) {
	err := ValidationError("attachments", "media type not allowed").WithDetails("got application/zip")
	assert.Equal(t, ErrValidation, err.Code)
	assert.Equal(t, "attachments", err.Field)
	assert.Equal(t, "got application/zip", err.Details)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.Contains(t, err.Error(), "attachments")
}
