// errors.go - Error categorization for AI API calls
//
// Calls are never retried here. The analysis pipeline gets its redundancy
// from fan-out sampling, so a failed call is categorized, logged and dropped.

package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// CallError represents a categorized AI API error
type CallError struct {
	OriginalError error
	Category      string
	StatusCode    int
	Message       string
	Transient     bool
}

func (e *CallError) Error() string {
	return fmt.Sprintf("[%s] %s (status: %d, transient: %v)", e.Category, e.Message, e.StatusCode, e.Transient)
}

func (e *CallError) Unwrap() error {
	return e.OriginalError
}

// CategorizeCallError analyzes an error from a provider call
func CategorizeCallError(err error) *CallError {
	if err == nil {
		return nil
	}

	callErr := &CallError{
		OriginalError: err,
		Category:      "unknown",
		Message:       err.Error(),
		Transient:     false,
	}

	// Check if it's a Google API error
	if apiErr, ok := err.(*googleapi.Error); ok {
		callErr.StatusCode = apiErr.Code

		switch apiErr.Code {
		case 400:
			callErr.Category = "bad_request"
			callErr.Message = "Invalid request format or parameters"
			callErr.Transient = false

		case 401:
			callErr.Category = "unauthorized"
			callErr.Message = "Invalid API key or authentication failed"
			callErr.Transient = false

		case 403:
			callErr.Category = "forbidden"
			callErr.Message = "API key lacks required permissions"
			callErr.Transient = false

		case 404:
			callErr.Category = "not_found"
			callErr.Message = "Model not found or invalid endpoint"
			callErr.Transient = false

		case 413:
			callErr.Category = "payload_too_large"
			callErr.Message = "Request size exceeds limit (reduce image size)"
			callErr.Transient = false

		case 429:
			callErr.Category = "rate_limit"
			callErr.Message = "Rate limit exceeded - too many requests"
			callErr.Transient = true

		case 500, 502, 503, 504:
			callErr.Category = "server_error"
			callErr.Message = fmt.Sprintf("AI server error (%d)", apiErr.Code)
			callErr.Transient = true

		default:
			callErr.Category = "unknown_api_error"
			callErr.Message = fmt.Sprintf("API error: %s", apiErr.Message)
			callErr.Transient = apiErr.Code >= 500
		}

		return callErr
	}

	// Check for context errors
	if err == context.DeadlineExceeded {
		callErr.Category = "timeout"
		callErr.Message = "Request timeout - processing took too long"
		callErr.Transient = true
		return callErr
	}

	if err == context.Canceled {
		callErr.Category = "canceled"
		callErr.Message = "Request was canceled"
		callErr.Transient = false
		return callErr
	}

	// Check error message for common patterns
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "limit") {
		callErr.Category = "quota_exceeded"
		callErr.Message = "API quota exceeded - daily or monthly limit reached"
		callErr.Transient = false
		return callErr
	}

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline") {
		callErr.Category = "timeout"
		callErr.Message = "Request timeout"
		callErr.Transient = true
		return callErr
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") {
		callErr.Category = "network_error"
		callErr.Message = "Network connection error"
		callErr.Transient = true
		return callErr
	}

	// Default: unknown error
	callErr.Category = "unknown"
	callErr.Transient = false
	return callErr
}
