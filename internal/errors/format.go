package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var te *TBError
	if !stderrors.As(err, &te) {
		te = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", te.Message))
	if te.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", te.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", te.Code))

	return sb.String()
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var te *TBError
	if !stderrors.As(err, &te) {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": te.Code,
		"message":    te.Message,
		"category":   string(te.Category),
		"severity":   string(te.Severity),
		"retryable":  te.Retryable,
	}
	if te.Cause != nil {
		result["cause"] = te.Cause.Error()
	}
	for k, v := range te.Details {
		result["detail_"+k] = v
	}

	return result
}

// ParseRemote rebuilds an error from the "[CODE] message" string carried in
// a protocol response. Strings without a code become ErrCodeRemoteFailed.
func ParseRemote(s string) *TBError {
	if strings.HasPrefix(s, "[ERR_") {
		if end := strings.Index(s, "] "); end > 0 {
			return New(s[1:end], s[end+2:], nil)
		}
	}
	if s == "" {
		s = "remote call failed"
	}
	return New(ErrCodeRemoteFailed, s, nil)
}
