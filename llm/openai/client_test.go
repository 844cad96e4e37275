package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amuslera/bluelabel-aios/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(llm.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: time.Second,
		Retry:   llm.RetryConfig{MaxRetries: 1, InitialDelay: 1, MaxDelay: 1, BackoffFactor: 1},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestChat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "chatcmpl-1", "created": 1700000000, "model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "pong"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 2, "completion_tokens": 3, "total_tokens": 5}
		}`))
	})

	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Text != "pong" || resp.Provider != llm.ProviderOpenAI {
		t.Fatalf("response: %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Fatalf("usage: %+v", resp.Usage)
	}
	if resp.Usage.Cost <= 0 {
		t.Fatalf("cost not estimated: %v", resp.Usage.Cost)
	}
	if resp.Metadata["id"] != "chatcmpl-1" {
		t.Fatalf("metadata: %v", resp.Metadata)
	}
}

func TestChatNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "x", "choices": []}`))
	})
	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Type != llm.ErrorTypeMalformedReply {
		t.Fatalf("expected malformed reply, got %v", err)
	}
}

func TestChatAuthError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	})
	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if !llm.IsAuthenticationError(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("auth errors must not retry: %d calls", calls)
	}
}

func TestChatRateLimitRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "rate limit"}}`))
			return
		}
		w.Write([]byte(`{
			"id": "x", "choices": [{"message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}]
		}`))
	})
	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil || resp.Text != "ok" {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry: %d calls", calls)
	}
}

func TestEmbed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"embedding": [1, 2, 3]}], "usage": {"prompt_tokens": 2, "total_tokens": 2}}`))
	})
	out, err := c.Embed(context.Background(), "hi")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(out.Vector) != 3 || out.Model != DefaultEmbeddingModel {
		t.Fatalf("embedding: %+v", out)
	}
}

func TestEmbedEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	})
	_, err := c.Embed(context.Background(), "hi")
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Type != llm.ErrorTypeMalformedReply {
		t.Fatalf("expected malformed reply, got %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "x", "choices": [{"message": {"role": "assistant", "content": "."}, "finish_reason": "stop"}]
		}`))
	})
	if !c.IsAvailable(context.Background()) {
		t.Fatalf("expected available")
	}

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if down.IsAvailable(context.Background()) {
		t.Fatalf("expected unavailable")
	}
}

func TestValidateConfig(t *testing.T) {
	if _, err := NewClient(llm.Config{}); err == nil {
		t.Fatalf("missing API key accepted")
	}
	if _, err := NewClient(llm.Config{APIKey: "k", Model: llm.ModelClaude35Haiku}); err == nil {
		t.Fatalf("foreign model accepted")
	}
	if _, err := NewClient(llm.Config{APIKey: "k", Temperature: 3}); err == nil {
		t.Fatalf("out-of-range temperature accepted")
	}
	c, err := NewClient(llm.Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	if c.Model() != llm.ModelGPT4oMini {
		t.Fatalf("default model: %q", c.Model())
	}
}

func TestCapabilities(t *testing.T) {
	c, _ := NewClient(llm.Config{APIKey: "k"})
	caps := c.Capabilities()
	if !caps.SupportsEmbeddings || !caps.SupportsChat {
		t.Fatalf("capabilities: %+v", caps)
	}
	if caps.SpeedRank != 1 {
		t.Fatalf("openai should rank fastest, got %d", caps.SpeedRank)
	}
	if caps.MaxTokensByModel[llm.ModelGPT4oMini] != 16384 {
		t.Fatalf("max tokens table: %v", caps.MaxTokensByModel)
	}
}

func TestChatPreservesTurnOrder(t *testing.T) {
	var got struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{
			"id": "chatcmpl-2", "created": 1700000000, "model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	})

	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer"},
			{Role: "user", Content: "second question"},
		},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	wantText := []string{"be brief", "first question", "first answer", "second question"}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("messages: %+v", got.Messages)
	}
	for i := range wantRoles {
		if got.Messages[i].Role != wantRoles[i] || got.Messages[i].Content != wantText[i] {
			t.Fatalf("message %d = %+v", i, got.Messages[i])
		}
	}
}
