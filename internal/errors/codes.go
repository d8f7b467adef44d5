// Package errors provides structured error handling for tunebook.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store and file errors
//   - 3XX: Network and transport errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates database, lock and file errors.
	CategoryStore Category = "STORE"
	// CategoryNetwork indicates fetch and transport errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreOpen      = "ERR_201_STORE_OPEN"
	ErrCodeStoreLocked    = "ERR_202_STORE_LOCKED"
	ErrCodeStoreWrite     = "ERR_203_STORE_WRITE"
	ErrCodeStoreRead      = "ERR_204_STORE_READ"
	ErrCodeSchemaVersion  = "ERR_205_SCHEMA_VERSION"
	ErrCodeSourceNotFound = "ERR_206_SOURCE_NOT_FOUND"

	// Network and transport errors (300-399)
	ErrCodeFetchFailed      = "ERR_301_FETCH_FAILED"
	ErrCodeTransportFailed  = "ERR_302_TRANSPORT_FAILED"
	ErrCodeRequestCancelled = "ERR_303_REQUEST_CANCELLED"
	ErrCodeRemoteFailed     = "ERR_304_REMOTE_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidOrder  = "ERR_402_INVALID_ORDER"
	ErrCodeUnknownMethod = "ERR_403_UNKNOWN_METHOD"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeNotInitialized = "ERR_502_NOT_INITIALIZED"
	ErrCodeIndexFailed    = "ERR_503_INDEX_FAILED"
	ErrCodeSearchFailed   = "ERR_504_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeTransportFailed, ErrCodeSchemaVersion:
		return SeverityFatal
	case ErrCodeFetchFailed, ErrCodeRequestCancelled:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether the caller may reasonably retry.
// Nothing inside the engine retries on its own.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeFetchFailed, ErrCodeStoreLocked, ErrCodeRequestCancelled:
		return true
	default:
		return false
	}
}
