package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amuslera/bluelabel-aios/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(llm.Config{BaseURL: srv.URL, MaxTokens: 200})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestChat(t *testing.T) {
	var got chatRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Model:           got.Model,
			Message:         chatMessage{Role: "assistant", Content: "hello there"},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 12,
			EvalCount:       4,
		})
	})

	maxTokens := 50
	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages:  []llm.Message{{Role: "user", Content: "hi"}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Text != "hello there" || resp.Provider != llm.ProviderOllama {
		t.Fatalf("response: %+v", resp)
	}
	if resp.FinishReason != "stop" {
		t.Fatalf("finish reason: %q", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 16 {
		t.Fatalf("usage: %+v", resp.Usage)
	}

	if got.Stream {
		t.Fatalf("streaming should be disabled")
	}
	if got.Model != llm.ModelLlama3 {
		t.Fatalf("model: %q", got.Model)
	}
	if got.Options == nil || got.Options.NumPredict == nil || *got.Options.NumPredict != 50 {
		t.Fatalf("num_predict not clamped from request: %+v", got.Options)
	}
}

func TestChatServerReportsError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Error: "model not loaded"})
	})
	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Provider != llm.ProviderOllama {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestChatHTTPError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	})
	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if !llm.IsRateLimitError(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestChatConnectionRefused(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Type != llm.ErrorTypeConnectionError {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !pe.IsRetryable() {
		t.Fatalf("connection errors should be retryable")
	}
}

func TestEmbed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path %s", r.URL.Path)
		}
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != DefaultEmbeddingModel {
			t.Errorf("embedding model %q", req.Model)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	})

	out, err := c.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(out.Vector) != 3 || out.Provider != llm.ProviderOllama {
		t.Fatalf("embedding: %+v", out)
	}
}

func TestEmbedEmptyVector(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	})
	_, err := c.Embed(context.Background(), "text")
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Type != llm.ErrorTypeMalformedReply {
		t.Fatalf("expected malformed reply error, got %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[]}`))
	})
	if !c.IsAvailable(context.Background()) {
		t.Fatalf("expected available")
	}
}

func TestIsAvailableServerDown(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	if c.IsAvailable(context.Background()) {
		t.Fatalf("expected unavailable")
	}
}

func TestCapabilities(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	caps := c.Capabilities()
	if !caps.SupportsEmbeddings || !caps.SupportsChat {
		t.Fatalf("capabilities: %+v", caps)
	}
	if caps.CostRank != 1 {
		t.Fatalf("ollama should rank cheapest, got %d", caps.CostRank)
	}
}

func TestValidate(t *testing.T) {
	if _, err := NewClient(llm.Config{MaxTokens: -1}); err == nil {
		t.Fatalf("expected error for negative max_tokens")
	}
	c, err := NewClient(llm.Config{})
	if err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	if c.Model() != llm.ModelLlama3 {
		t.Fatalf("default model: %q", c.Model())
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestChatPreservesTurnOrder(t *testing.T) {
	var got chatRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Message:         chatMessage{Role: "assistant", Content: "ok"},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 1,
			EvalCount:       1,
		})
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

	want := []chatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "second question"},
	}
	if len(got.Messages) != len(want) {
		t.Fatalf("messages: %+v", got.Messages)
	}
	for i := range want {
		if got.Messages[i] != want[i] {
			t.Fatalf("message %d = %+v, want %+v", i, got.Messages[i], want[i])
		}
	}
}
