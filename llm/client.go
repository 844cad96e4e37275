package llm

import (
	"context"
	"time"
)

// Message represents one turn in a conversation with an LLM
type Message struct {
	Role    string `json:"role"`           // "system", "user", "assistant"
	Content string `json:"content"`        // Message content
	Name    string `json:"name,omitempty"` // Optional speaker name
}

// Usage reports token consumption for a single call
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"` // Estimated USD cost
}

// Response represents a unified completion/chat response from any provider
type Response struct {
	Text         string            `json:"text"`
	Model        string            `json:"model"`
	Provider     Provider          `json:"provider"`
	Usage        *Usage            `json:"usage,omitempty"`
	FinishReason string            `json:"finish_reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Latency      time.Duration     `json:"latency,omitempty"`
	Timestamp    time.Time         `json:"timestamp,omitempty"`
}

// EmbeddingResponse represents a unified embedding response
type EmbeddingResponse struct {
	Vector   []float64         `json:"vector"`
	Model    string            `json:"model"`
	Provider Provider          `json:"provider"`
	Usage    *Usage            `json:"usage,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChatRequest represents a chat completion request in unified shape
type ChatRequest struct {
	Messages    []Message              `json:"messages"`
	Model       string                 `json:"model,omitempty"`
	Temperature *float64               `json:"temperature,omitempty"`
	MaxTokens   *int                   `json:"max_tokens,omitempty"`
	Stop        []string               `json:"stop,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"` // Provider-specific options
}

// Capabilities describes what a provider adapter can do. It is derived from
// static knowledge plus the configured model and never requires a network call.
type Capabilities struct {
	SupportedModels    []string       `json:"supported_models"`
	MaxTokensByModel   map[string]int `json:"max_tokens_by_model"`
	SupportsChat       bool           `json:"supports_chat"`
	SupportsCompletion bool           `json:"supports_completion"`
	SupportsEmbeddings bool           `json:"supports_embeddings"`
	SupportsStreaming  bool           `json:"supports_streaming"`
	SupportsFunctions  bool           `json:"supports_functions"`
	SupportsVision     bool           `json:"supports_vision"`
	CostRank           int            `json:"cost_rank"`    // 1 = cheapest, 0 = unranked
	QualityRank        int            `json:"quality_rank"` // 1 = best, 0 = unranked
	SpeedRank          int            `json:"speed_rank"`   // 1 = fastest, 0 = unranked
}

// Client is the uniform contract every provider adapter implements. Adapters
// are mutually substitutable; the Router never special-cases one.
type Client interface {
	// Chat sends a conversation to the backend and returns a unified response
	Chat(ctx context.Context, req *ChatRequest) (*Response, error)

	// Completion wraps a single prompt as a one-turn conversation and
	// delegates to Chat
	Completion(ctx context.Context, prompt string) (*Response, error)

	// Embed produces an embedding vector for the given text. Adapters whose
	// backend has no embedding model return an UnsupportedOperationError.
	Embed(ctx context.Context, text string) (*EmbeddingResponse, error)

	// IsAvailable performs the cheapest possible live probe. It never
	// returns an error; any failure yields false.
	IsAvailable(ctx context.Context) bool

	// Capabilities returns the static capability descriptor for this adapter
	Capabilities() Capabilities

	// Model returns the configured default model identifier
	Model() string

	// Provider returns the provider name
	Provider() Provider

	// Validate checks if the adapter configuration is valid
	Validate() error
}

// RetryConfig configures adapter-level retry behavior for transient failures.
// Retries are independent of Router fallback.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
}

// DefaultRetryConfig returns sensible defaults for retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Config holds the per-adapter configuration. One immutable Config is bound
// to each adapter instance at composition time.
type Config struct {
	APIKey      string                 `json:"api_key"`
	Model       string                 `json:"model"`
	BaseURL     string                 `json:"base_url,omitempty"`
	Temperature float64                `json:"temperature,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Timeout     time.Duration          `json:"timeout,omitempty"`
	Retry       RetryConfig            `json:"retry,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// ProbeTimeout bounds an availability probe. Probes use the configured
// timeout when it is tighter than the 5s ceiling.
func ProbeTimeout(configured time.Duration) time.Duration {
	if configured > 0 && configured < 5*time.Second {
		return configured
	}
	return 5 * time.Second
}

// ClampMaxTokens resolves the effective max_tokens for a call: the requested
// value bounded by the configured limit and the model's hard output limit.
// A request is never raised above what the backend accepts.
func ClampMaxTokens(requested, configured int, model string) int {
	limit := configured
	if m, err := GetModel(model); err == nil && m.MaxOutput > 0 {
		if limit <= 0 || m.MaxOutput < limit {
			limit = m.MaxOutput
		}
	}
	if requested <= 0 {
		return limit
	}
	if limit > 0 && requested > limit {
		return limit
	}
	return requested
}
