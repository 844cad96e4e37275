// Package anthropic adapts the Anthropic Messages API to the uniform
// llm.Client contract.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/amuslera/bluelabel-aios/llm"
	"github.com/liushuangls/go-anthropic/v2"
)

// Client implements llm.Client for Anthropic Claude
type Client struct {
	client  *anthropic.Client
	config  llm.Config
	retrier *llm.Retrier
}

// NewClient creates a new Anthropic adapter from an immutable config
func NewClient(config llm.Config) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Model == "" {
		config.Model = llm.ModelClaude35Haiku
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retry.MaxRetries == 0 {
		config.Retry = llm.DefaultRetryConfig()
	}

	opts := []anthropic.ClientOption{}
	if config.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, anthropic.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}

	return &Client{
		client:  anthropic.NewClient(config.APIKey, opts...),
		config:  config,
		retrier: llm.NewRetrier(config.Retry),
	}, nil
}

func validateConfig(config llm.Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if config.Model != "" {
		if m, err := llm.GetModel(config.Model); err == nil && m.Provider != llm.ProviderAnthropic {
			return fmt.Errorf("model %s is not an Anthropic model", config.Model)
		}
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}

// Chat implements llm.Client
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	start := time.Now()

	result, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (*llm.Response, error) {
		return c.chat(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	result.Latency = time.Since(start)
	result.Timestamp = start
	return result, nil
}

func (c *Client) chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	// Anthropic carries the system prompt outside the message list; fold any
	// system-role messages into it, preserving the order of the rest.
	messages := make([]anthropic.Message, 0, len(req.Messages))
	var systemPrompt string

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if systemPrompt != "" {
				systemPrompt += "\n\n" + msg.Content
			} else {
				systemPrompt = msg.Content
			}
		case "assistant":
			messages = append(messages, anthropic.NewAssistantTextMessage(msg.Content))
		default:
			messages = append(messages, anthropic.NewUserTextMessage(msg.Content))
		}
	}

	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	requested := 0
	if req.MaxTokens != nil {
		requested = *req.MaxTokens
	}

	anthReq := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: llm.ClampMaxTokens(requested, c.config.MaxTokens, model),
	}
	if systemPrompt != "" {
		anthReq.System = systemPrompt
	}

	if req.Temperature != nil {
		t := float32(*req.Temperature)
		anthReq.Temperature = &t
	} else {
		t := float32(c.config.Temperature)
		anthReq.Temperature = &t
	}

	if len(req.Stop) > 0 {
		anthReq.StopSequences = req.Stop
	}

	resp, err := c.client.CreateMessages(ctx, anthReq)
	if err != nil {
		return nil, c.convertError(err)
	}
	if len(resp.Content) == 0 {
		return nil, llm.NewProviderError(llm.ProviderAnthropic, llm.ErrorTypeMalformedReply, "no content returned")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}

	var usage *llm.Usage
	if resp.Usage.OutputTokens > 0 {
		modelInfo, _ := llm.GetModel(model)
		usage = &llm.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			Cost:             modelInfo.EstimateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		}
	}

	return &llm.Response{
		Text:         text.String(),
		Model:        model,
		Provider:     llm.ProviderAnthropic,
		Usage:        usage,
		FinishReason: string(resp.StopReason),
		Metadata: map[string]string{
			"id":   resp.ID,
			"type": string(resp.Type),
		},
	}, nil
}

// Completion implements llm.Client
func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
}

// Embed implements llm.Client. Anthropic has no embedding model.
func (c *Client) Embed(ctx context.Context, text string) (*llm.EmbeddingResponse, error) {
	return nil, &llm.UnsupportedOperationError{Provider: llm.ProviderAnthropic, Operation: "embed"}
}

// IsAvailable implements llm.Client with a 1-token completion probe
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, llm.ProbeTimeout(c.config.Timeout))
	defer cancel()

	one := 1
	_, err := c.chat(ctx, &llm.ChatRequest{
		Messages:  []llm.Message{{Role: "user", Content: "ping"}},
		MaxTokens: &one,
	})
	if err != nil {
		log.Printf("anthropic: availability probe failed: %v", err)
		return false
	}
	return true
}

// Capabilities implements llm.Client; pure function of static knowledge
func (c *Client) Capabilities() llm.Capabilities {
	model, _ := llm.GetModel(c.config.Model)
	cost, speed, quality := llm.RanksFor(llm.ProviderAnthropic)
	return llm.Capabilities{
		SupportedModels:    llm.SupportedModelNames(llm.ProviderAnthropic),
		MaxTokensByModel:   llm.MaxOutputByProvider(llm.ProviderAnthropic),
		SupportsChat:       true,
		SupportsCompletion: true,
		SupportsEmbeddings: false,
		SupportsStreaming:  true,
		SupportsFunctions:  model.Functions,
		SupportsVision:     model.Vision,
		CostRank:           cost,
		SpeedRank:          speed,
		QualityRank:        quality,
	}
}

// Model implements llm.Client
func (c *Client) Model() string { return c.config.Model }

// Provider implements llm.Client
func (c *Client) Provider() llm.Provider { return llm.ProviderAnthropic }

// Validate implements llm.Client
func (c *Client) Validate() error { return validateConfig(c.config) }

func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		var errType llm.ErrorType
		switch string(apiErr.Type) {
		case "rate_limit_error":
			errType = llm.ErrorTypeRateLimit
		case "authentication_error":
			errType = llm.ErrorTypeAuthentication
		case "permission_error":
			errType = llm.ErrorTypePermission
		case "not_found_error":
			errType = llm.ErrorTypeNotFound
		case "invalid_request_error":
			errType = llm.ErrorTypeInvalidRequest
		case "overloaded_error", "api_error":
			errType = llm.ErrorTypeServerError
		default:
			errType = llm.ErrorTypeUnknown
		}
		pe := llm.NewProviderErrorWithCause(llm.ProviderAnthropic, errType, apiErr.Message, err)
		pe.Code = string(apiErr.Type)
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewProviderErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeTimeout, "request timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return llm.NewProviderErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeUnknown, "request canceled", err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection") {
		return llm.NewProviderErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeConnectionError, "connection error", err)
	}
	return llm.NewProviderErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeUnknown, err.Error(), err)
}

var _ llm.Client = (*Client)(nil)
