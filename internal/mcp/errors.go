// Package mcp implements the Model Context Protocol (MCP) server for tunebook.
package mcp

import (
	"context"
	"errors"
	"fmt"

	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// Custom MCP error codes for tunebook.
const (
	// ErrCodeNotInitialized indicates the engine has not been initialized.
	ErrCodeNotInitialized = -32001

	// ErrCodeUnavailable indicates the daemon connection failed.
	ErrCodeUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeTuneNotFound indicates no tune has the requested id.
	ErrCodeTuneNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrTuneNotFound indicates the requested tune does not exist.
	ErrTuneNotFound = errors.New("tune not found")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var tbErr *tberrors.TBError
	if errors.As(err, &tbErr) {
		return mapTBError(tbErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid parameters.",
		}
	case errors.Is(err, ErrTuneNotFound):
		return &MCPError{
			Code:    ErrCodeTuneNotFound,
			Message: "Tune not found.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewTuneNotFoundError creates an error for an unknown tune id.
func NewTuneNotFoundError(id string) *MCPError {
	return &MCPError{
		Code:    ErrCodeTuneNotFound,
		Message: fmt.Sprintf("Tune '%s' not found.", id),
	}
}

func mapTBError(te *tberrors.TBError) *MCPError {
	message := te.Message
	if te.Suggestion != "" {
		message = fmt.Sprintf("%s %s", te.Message, te.Suggestion)
	}

	switch te.Code {
	case tberrors.ErrCodeNotInitialized:
		return &MCPError{Code: ErrCodeNotInitialized, Message: message}
	case tberrors.ErrCodeRequestCancelled:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case tberrors.ErrCodeUnknownMethod:
		return &MCPError{Code: ErrCodeMethodNotFound, Message: message}
	}

	switch te.Category {
	case tberrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeUnavailable, Message: message}
	case tberrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default: // config, store, internal
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
