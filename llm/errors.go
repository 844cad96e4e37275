package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies provider failures
type ErrorType string

const (
	ErrorTypeUnknown         ErrorType = "unknown"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeAuthentication  ErrorType = "authentication_error"
	ErrorTypePermission      ErrorType = "permission_error"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeRateLimit       ErrorType = "rate_limit_exceeded"
	ErrorTypeInvalidModel    ErrorType = "invalid_model"
	ErrorTypeContextLength   ErrorType = "context_length_exceeded"
	ErrorTypeMalformedReply  ErrorType = "malformed_response"
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeConnectionError ErrorType = "connection_error"
)

// ProviderError represents a failed call against one specific adapter. The
// Router recovers it locally by falling back to the next candidate; it only
// surfaces to the caller after every candidate has been exhausted.
type ProviderError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitempty"`
	Provider   Provider  `json:"provider"`
	Model      string    `json:"model,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error is worth retrying on the same adapter
func (e *ProviderError) IsRetryable() bool {
	return e.Retryable
}

// NewProviderError creates a new provider error
func NewProviderError(provider Provider, errorType ErrorType, message string) *ProviderError {
	return &ProviderError{
		Type:      errorType,
		Message:   message,
		Provider:  provider,
		Retryable: isRetryableType(errorType),
	}
}

// NewProviderErrorWithCause creates a new provider error wrapping a cause
func NewProviderErrorWithCause(provider Provider, errorType ErrorType, message string, cause error) *ProviderError {
	err := NewProviderError(provider, errorType, message)
	err.Cause = cause
	return err
}

func isRetryableType(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeTimeout, ErrorTypeConnectionError:
		return true
	default:
		return false
	}
}

// UnsupportedOperationError reports that an adapter cannot perform the
// requested operation at all. The Router excludes the adapter from candidacy
// instead of treating this as a call failure.
type UnsupportedOperationError struct {
	Provider  Provider `json:"provider"`
	Operation string   `json:"operation"`
}

// Error implements the error interface
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Provider, e.Operation)
}

// NoAvailableProviderError is returned when every candidate was unavailable
// and none produced a call error worth re-raising.
type NoAvailableProviderError struct {
	Operation string `json:"operation"`
}

// Error implements the error interface
func (e *NoAvailableProviderError) Error() string {
	return fmt.Sprintf("no available provider for %s", e.Operation)
}

// ParseHTTPError maps an HTTP status code and body to a ProviderError
func ParseHTTPError(provider Provider, statusCode int, body string) *ProviderError {
	var errorType ErrorType
	var message string
	retryable := false

	switch statusCode {
	case http.StatusBadRequest:
		errorType = ErrorTypeInvalidRequest
		message = "invalid request parameters"
	case http.StatusUnauthorized:
		errorType = ErrorTypeAuthentication
		message = "invalid API key or authentication failed"
	case http.StatusForbidden:
		errorType = ErrorTypePermission
		message = "permission denied"
	case http.StatusNotFound:
		errorType = ErrorTypeNotFound
		message = "resource not found"
	case http.StatusTooManyRequests:
		errorType = ErrorTypeRateLimit
		message = "rate limit exceeded"
		retryable = true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		errorType = ErrorTypeServerError
		message = "server error occurred"
		retryable = true
	default:
		errorType = ErrorTypeUnknown
		message = fmt.Sprintf("HTTP %d error", statusCode)
	}

	if body != "" {
		if specific := classifyBody(provider, body); specific != nil {
			specific.HTTPStatus = statusCode
			return specific
		}
		message = fmt.Sprintf("%s: %s", message, truncateBody(body, 200))
	}

	return &ProviderError{
		Type:       errorType,
		Message:    message,
		Provider:   provider,
		HTTPStatus: statusCode,
		Retryable:  retryable,
	}
}

// classifyBody extracts provider-specific error information from a body
func classifyBody(provider Provider, body string) *ProviderError {
	lower := strings.ToLower(body)

	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") {
		return &ProviderError{
			Type:      ErrorTypeRateLimit,
			Message:   "rate limit exceeded",
			Provider:  provider,
			Retryable: true,
		}
	}

	if strings.Contains(lower, "context length") || strings.Contains(lower, "token limit") {
		return &ProviderError{
			Type:     ErrorTypeContextLength,
			Message:  "context length exceeded",
			Provider: provider,
		}
	}

	if strings.Contains(lower, "model") && (strings.Contains(lower, "not found") || strings.Contains(lower, "invalid")) {
		return &ProviderError{
			Type:     ErrorTypeInvalidModel,
			Message:  "invalid or unavailable model",
			Provider: provider,
		}
	}

	return nil
}

func truncateBody(body string, maxLength int) string {
	if len(body) <= maxLength {
		return body
	}
	return body[:maxLength] + "..."
}

// AsProviderError extracts a *ProviderError from an error chain
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsUnsupported reports whether err is an UnsupportedOperationError
func IsUnsupported(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}

// IsNoAvailableProvider reports whether err is a NoAvailableProviderError
func IsNoAvailableProvider(err error) bool {
	var ne *NoAvailableProviderError
	return errors.As(err, &ne)
}

// IsRetryableError reports whether err is a retryable provider error
func IsRetryableError(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return isRetryableType(pe.Type)
	}
	return false
}

// IsRateLimitError reports whether err is a rate limit error
func IsRateLimitError(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return pe.Type == ErrorTypeRateLimit
	}
	return false
}

// IsAuthenticationError reports whether err is an authentication error
func IsAuthenticationError(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return pe.Type == ErrorTypeAuthentication
	}
	return false
}
