package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tberrors "github.com/tunebook/tunebook/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound},
		{"invalid params", ErrInvalidParams, ErrCodeInvalidParams},
		{"tune not found", ErrTuneNotFound, ErrCodeTuneNotFound},
		{"wrapped deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)
			require.NotNil(t, result)
			assert.Equal(t, tt.code, result.Code)
		})
	}
}

func TestMapError_UnknownErrorHidesDetails(t *testing.T) {
	// Given: an unclassified error carrying internal details
	err := errors.New("sql: database is locked at /home/me/.tunebook/catalog.db")

	// When: mapping the error
	result := MapError(err)

	// Then: the client sees a generic message
	assert.Equal(t, "Internal server error.", result.Message)
}

func TestMapError_TBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not initialized", tberrors.ErrNotInitialized, ErrCodeNotInitialized},
		{"cancelled", tberrors.ErrCancelled, ErrCodeTimeout},
		{"unknown method", tberrors.New(tberrors.ErrCodeUnknownMethod, "no such method", nil), ErrCodeMethodNotFound},
		{"transport", tberrors.ErrTransport, ErrCodeUnavailable},
		{"invalid order", tberrors.New(tberrors.ErrCodeInvalidOrder, "unsupported order field", nil), ErrCodeInvalidParams},
		{"invalid input", tberrors.New(tberrors.ErrCodeInvalidInput, "bad id", nil), ErrCodeInvalidParams},
		{"store", tberrors.New(tberrors.ErrCodeStoreRead, "read failed", nil), ErrCodeInternalError},
		{"wrapped", fmt.Errorf("list: %w", tberrors.ErrNotInitialized), ErrCodeNotInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)
			require.NotNil(t, result)
			assert.Equal(t, tt.code, result.Code)
		})
	}
}

func TestMapError_TBErrorIncludesSuggestion(t *testing.T) {
	// Given: an error with a suggestion
	err := tberrors.New(tberrors.ErrCodeInvalidOrder, "unsupported order field \"bpm\"", nil).
		WithSuggestion("Use title, popularity, createdAt, updatedAt or type.")

	// When: mapping the error
	result := MapError(err)

	// Then: message and suggestion are both kept
	assert.Contains(t, result.Message, "unsupported order field")
	assert.Contains(t, result.Message, "Use title, popularity")
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	original := NewTuneNotFoundError("42")

	result := MapError(fmt.Errorf("get: %w", original))

	assert.Same(t, original, result)
}

func TestMCPError_Error(t *testing.T) {
	err := NewInvalidParamsError("query parameter is required")

	assert.Equal(t, "MCP error -32602: query parameter is required", err.Error())
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("play_tune")

	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "play_tune")
}
