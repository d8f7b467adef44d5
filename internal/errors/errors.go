package errors

import (
	stderrors "errors"
	"fmt"
)

// TBError is the structured error type for tunebook.
// It carries enough context for logging, CLI presentation and for crossing
// the engine boundary as a coded error string.
type TBError struct {
	// Code is the unique error code (e.g., "ERR_302_TRANSPORT_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates the caller may retry the operation.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *TBError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *TBError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, ErrTransport) holds for every
// transport failure regardless of message or cause.
func (e *TBError) Is(target error) bool {
	if t, ok := target.(*TBError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *TBError) WithDetail(key, value string) *TBError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *TBError) WithSuggestion(suggestion string) *TBError {
	e.Suggestion = suggestion
	return e
}

// New creates a new TBError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *TBError {
	return &TBError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a TBError from an existing error.
func Wrap(code string, err error) *TBError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrTransport      = New(ErrCodeTransportFailed, "transport failed", nil)
	ErrCancelled      = New(ErrCodeRequestCancelled, "request was cancelled", nil)
	ErrNotInitialized = New(ErrCodeNotInitialized, "engine not initialized", nil)
	ErrStoreLocked    = New(ErrCodeStoreLocked, "store is locked by another process", nil)
	ErrRemote         = New(ErrCodeRemoteFailed, "remote call failed", nil)
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *TBError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StoreError creates a store-related error.
func StoreError(code, message string, cause error) *TBError {
	return New(code, message, cause)
}

// TransportError creates a transport failure error.
func TransportError(message string, cause error) *TBError {
	return New(ErrCodeTransportFailed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *TBError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *TBError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var te *TBError
	if stderrors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var te *TBError
	if stderrors.As(err, &te) {
		return te.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a TBError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var te *TBError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return ""
}

// GetCategory extracts the category from a TBError.
func GetCategory(err error) Category {
	var te *TBError
	if stderrors.As(err, &te) {
		return te.Category
	}
	return ""
}
