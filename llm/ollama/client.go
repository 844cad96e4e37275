// Package ollama adapts a local Ollama server to the uniform llm.Client
// contract. Ollama exposes a plain JSON API and ships no Go SDK, so the
// adapter speaks HTTP directly.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/amuslera/bluelabel-aios/llm"
)

// DefaultBaseURL is the standard local Ollama endpoint
const DefaultBaseURL = "http://localhost:11434"

// DefaultEmbeddingModel is used when config does not name one
const DefaultEmbeddingModel = llm.ModelNomicEmbed

// Client implements llm.Client for a local Ollama server
type Client struct {
	config  llm.Config
	http    *http.Client
	baseURL string
	embed   string
}

// NewClient creates a new Ollama adapter. No API key is required.
func NewClient(config llm.Config) (*Client, error) {
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("invalid config: max_tokens must be non-negative")
	}

	if config.Model == "" {
		config.Model = llm.ModelLlama3
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	embedModel := DefaultEmbeddingModel
	if m, ok := config.Extra["embedding_model"].(string); ok && m != "" {
		embedModel = m
	}

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		baseURL: baseURL,
		embed:   embedModel,
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error,omitempty"`
}

// Chat implements llm.Client
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	start := time.Now()

	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	opts := &chatOptions{Stop: req.Stop}
	if req.Temperature != nil {
		opts.Temperature = req.Temperature
	} else if c.config.Temperature > 0 {
		t := c.config.Temperature
		opts.Temperature = &t
	}

	requested := 0
	if req.MaxTokens != nil {
		requested = *req.MaxTokens
	}
	if n := llm.ClampMaxTokens(requested, c.config.MaxTokens, model); n > 0 {
		opts.NumPredict = &n
	}

	var out chatResponse
	if err := c.post(ctx, "/api/chat", chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  opts,
	}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, llm.NewProviderError(llm.ProviderOllama, llm.ErrorTypeServerError, out.Error)
	}

	var usage *llm.Usage
	if out.EvalCount > 0 {
		usage = &llm.Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		}
	}

	return &llm.Response{
		Text:         out.Message.Content,
		Model:        model,
		Provider:     llm.ProviderOllama,
		Usage:        usage,
		FinishReason: out.DoneReason,
		Latency:      time.Since(start),
		Timestamp:    start,
	}, nil
}

// Completion implements llm.Client
func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed implements llm.Client
func (c *Client) Embed(ctx context.Context, text string) (*llm.EmbeddingResponse, error) {
	var out embedResponse
	if err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.embed, Prompt: text}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, llm.NewProviderError(llm.ProviderOllama, llm.ErrorTypeServerError, out.Error)
	}
	if len(out.Embedding) == 0 {
		return nil, llm.NewProviderError(llm.ProviderOllama, llm.ErrorTypeMalformedReply, "no embedding returned")
	}

	return &llm.EmbeddingResponse{
		Vector:   out.Embedding,
		Model:    c.embed,
		Provider: llm.ProviderOllama,
	}, nil
}

// IsAvailable implements llm.Client by probing the tags endpoint, the
// cheapest call an Ollama server answers
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, llm.ProbeTimeout(c.config.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	res, err := c.http.Do(req)
	if err != nil {
		log.Printf("ollama: availability probe failed: %v", err)
		return false
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode != http.StatusOK {
		log.Printf("ollama: availability probe returned HTTP %d", res.StatusCode)
		return false
	}
	return true
}

// Capabilities implements llm.Client; pure function of static knowledge
func (c *Client) Capabilities() llm.Capabilities {
	cost, speed, quality := llm.RanksFor(llm.ProviderOllama)
	return llm.Capabilities{
		SupportedModels:    llm.SupportedModelNames(llm.ProviderOllama),
		MaxTokensByModel:   llm.MaxOutputByProvider(llm.ProviderOllama),
		SupportsChat:       true,
		SupportsCompletion: true,
		SupportsEmbeddings: true,
		SupportsStreaming:  true,
		CostRank:           cost,
		SpeedRank:          speed,
		QualityRank:        quality,
	}
}

// Model implements llm.Client
func (c *Client) Model() string { return c.config.Model }

// Provider implements llm.Client
func (c *Client) Provider() llm.Provider { return llm.ProviderOllama }

// Validate implements llm.Client
func (c *Client) Validate() error {
	if c.config.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return llm.NewProviderErrorWithCause(llm.ProviderOllama, llm.ErrorTypeInvalidRequest, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return llm.NewProviderErrorWithCause(llm.ProviderOllama, llm.ErrorTypeInvalidRequest, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return llm.NewProviderErrorWithCause(llm.ProviderOllama, llm.ErrorTypeTimeout, "request timeout", err)
		}
		return llm.NewProviderErrorWithCause(llm.ProviderOllama, llm.ErrorTypeConnectionError, "connection error", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return llm.NewProviderErrorWithCause(llm.ProviderOllama, llm.ErrorTypeConnectionError, "read response", err)
	}
	if res.StatusCode != http.StatusOK {
		return llm.ParseHTTPError(llm.ProviderOllama, res.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return llm.NewProviderErrorWithCause(llm.ProviderOllama, llm.ErrorTypeMalformedReply, "decode response", err)
	}
	return nil
}

var _ llm.Client = (*Client)(nil)
