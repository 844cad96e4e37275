package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestProviderErrorFormatting(t *testing.T) {
	e := NewProviderError(ProviderOpenAI, ErrorTypeRateLimit, "slow down")
	if got := e.Error(); got != "openai: slow down" {
		t.Fatalf("message: %q", got)
	}
	e.Code = "429"
	if got := e.Error(); got != "openai [429]: slow down" {
		t.Fatalf("message with code: %q", got)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	e := NewProviderErrorWithCause(ProviderAnthropic, ErrorTypeServerError, "bad", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("cause not in chain")
	}
	wrapped := fmt.Errorf("call failed: %w", e)
	pe, ok := AsProviderError(wrapped)
	if !ok || pe.Provider != ProviderAnthropic {
		t.Fatalf("AsProviderError through wrap: %v %v", pe, ok)
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeConnectionError, true},
		{ErrorTypeAuthentication, false},
		{ErrorTypeInvalidRequest, false},
		{ErrorTypeContextLength, false},
		{ErrorTypeMalformedReply, false},
	}
	for _, tt := range tests {
		e := NewProviderError(ProviderOpenAI, tt.errType, "x")
		if e.IsRetryable() != tt.retryable {
			t.Errorf("%s: retryable = %v, want %v", tt.errType, e.IsRetryable(), tt.retryable)
		}
		if IsRetryableError(e) != tt.retryable {
			t.Errorf("%s: IsRetryableError mismatch", tt.errType)
		}
	}
	if IsRetryableError(errors.New("plain")) {
		t.Fatalf("plain error reported retryable")
	}
}

func TestParseHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		wantType  ErrorType
		retryable bool
	}{
		{401, "", ErrorTypeAuthentication, false},
		{403, "", ErrorTypePermission, false},
		{404, "", ErrorTypeNotFound, false},
		{429, "", ErrorTypeRateLimit, true},
		{500, "", ErrorTypeServerError, true},
		{503, "", ErrorTypeServerError, true},
		{400, "", ErrorTypeInvalidRequest, false},
		{418, "", ErrorTypeUnknown, false},
		{400, "maximum context length exceeded", ErrorTypeContextLength, false},
		{400, "model gpt-x not found", ErrorTypeInvalidModel, false},
		{500, "Too Many Requests upstream", ErrorTypeRateLimit, true},
	}
	for _, tt := range tests {
		e := ParseHTTPError(ProviderOpenAI, tt.status, tt.body)
		if e.Type != tt.wantType {
			t.Errorf("status %d body %q: type %s, want %s", tt.status, tt.body, e.Type, tt.wantType)
		}
		if e.Retryable != tt.retryable {
			t.Errorf("status %d body %q: retryable %v", tt.status, tt.body, e.Retryable)
		}
		if e.HTTPStatus != tt.status {
			t.Errorf("status %d not carried: %d", tt.status, e.HTTPStatus)
		}
	}
}

func TestUnsupportedOperationError(t *testing.T) {
	e := &UnsupportedOperationError{Provider: ProviderAnthropic, Operation: "embed"}
	if e.Error() != "anthropic does not support embed" {
		t.Fatalf("message: %q", e.Error())
	}
	if !IsUnsupported(fmt.Errorf("wrapped: %w", e)) {
		t.Fatalf("IsUnsupported through wrap")
	}
	if IsUnsupported(errors.New("other")) {
		t.Fatalf("false positive")
	}
}

func TestNoAvailableProviderError(t *testing.T) {
	e := &NoAvailableProviderError{Operation: "chat"}
	if e.Error() != "no available provider for chat" {
		t.Fatalf("message: %q", e.Error())
	}
	if !IsNoAvailableProvider(e) {
		t.Fatalf("IsNoAvailableProvider")
	}
	if IsNoAvailableProvider(nil) {
		t.Fatalf("nil should not match")
	}
}

func TestErrorPredicates(t *testing.T) {
	rate := NewProviderError(ProviderOpenAI, ErrorTypeRateLimit, "x")
	auth := NewProviderError(ProviderOpenAI, ErrorTypeAuthentication, "x")
	if !IsRateLimitError(rate) || IsRateLimitError(auth) {
		t.Fatalf("rate limit predicate")
	}
	if !IsAuthenticationError(auth) || IsAuthenticationError(rate) {
		t.Fatalf("authentication predicate")
	}
}
