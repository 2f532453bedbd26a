package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies LLM failures.
type ErrorType string

const (
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeBadRequest  ErrorType = "bad_request"
	ErrorTypeServer      ErrorType = "server"
	ErrorTypeConnection  ErrorType = "connection"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a structured LLM error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface, letting the
// retry package check retryability without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError wraps a provider error in a structured Error with a type
// and retryability decision.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	// Provider-agnostic fallback on the error text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return &Error{Type: ErrorTypeRateLimit, Message: err.Error(), Retryable: true, Cause: err}
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "unauthorized"):
		return &Error{Type: ErrorTypeAuth, Message: err.Error(), Retryable: false, Cause: err}
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "no such host") || strings.Contains(msg, "connection reset"):
		return &Error{Type: ErrorTypeConnection, Message: err.Error(), Retryable: true, Cause: err}
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504"):
		return &Error{Type: ErrorTypeServer, Message: err.Error(), Retryable: true, Cause: err}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: err.Error(), Retryable: false, Cause: err}
	}
}

func classifyStatus(status int, message string, cause error) *Error {
	e := &Error{Message: message, Cause: cause, StatusCode: status}
	switch {
	case status == 401 || status == 403:
		e.Type = ErrorTypeAuth
	case status == 429:
		e.Type = ErrorTypeRateLimit
		e.Retryable = true
	case status >= 400 && status < 500:
		e.Type = ErrorTypeBadRequest
	case status >= 500:
		e.Type = ErrorTypeServer
		e.Retryable = true
	default:
		e.Type = ErrorTypeUnknown
	}
	return e
}
