// Package openai adapts the OpenAI API to the uniform llm.Client contract.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/amuslera/bluelabel-aios/llm"
	"github.com/sashabaranov/go-openai"
)

// DefaultEmbeddingModel is used when config does not name one
const DefaultEmbeddingModel = llm.ModelTextEmbed3

// Client implements llm.Client for OpenAI
type Client struct {
	client  *openai.Client
	config  llm.Config
	retrier *llm.Retrier
	embed   string
}

// NewClient creates a new OpenAI adapter from an immutable config
func NewClient(config llm.Config) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Model == "" {
		config.Model = llm.ModelGPT4oMini
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

	oaiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oaiConfig.BaseURL = config.BaseURL
	}
	if org, ok := config.Extra["organization"].(string); ok && org != "" {
		oaiConfig.OrgID = org
	}
	oaiConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	embedModel := DefaultEmbeddingModel
	if m, ok := config.Extra["embedding_model"].(string); ok && m != "" {
		embedModel = m
	}

	return &Client{
		client:  openai.NewClientWithConfig(oaiConfig),
		config:  config,
		retrier: llm.NewRetrier(config.Retry),
		embed:   embedModel,
	}, nil
}

func validateConfig(config llm.Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if config.Model != "" {
		if m, err := llm.GetModel(config.Model); err == nil && m.Provider != llm.ProviderOpenAI {
			return fmt.Errorf("model %s is not an OpenAI model", config.Model)
		}
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
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
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		oaiMsg := openai.ChatCompletionMessage{Content: msg.Content}
		switch msg.Role {
		case "system":
			oaiMsg.Role = openai.ChatMessageRoleSystem
		case "assistant":
			oaiMsg.Role = openai.ChatMessageRoleAssistant
		default:
			oaiMsg.Role = openai.ChatMessageRoleUser
		}
		if msg.Name != "" {
			oaiMsg.Name = msg.Name
		}
		messages = append(messages, oaiMsg)
	}

	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	oaiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}

	if req.Temperature != nil {
		oaiReq.Temperature = float32(*req.Temperature)
	} else {
		oaiReq.Temperature = float32(c.config.Temperature)
	}

	requested := 0
	if req.MaxTokens != nil {
		requested = *req.MaxTokens
	}
	oaiReq.MaxTokens = llm.ClampMaxTokens(requested, c.config.MaxTokens, model)

	if len(req.Stop) > 0 {
		oaiReq.Stop = req.Stop
	}

	resp, err := c.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		return nil, c.convertError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewProviderError(llm.ProviderOpenAI, llm.ErrorTypeMalformedReply, "no choices returned")
	}

	choice := resp.Choices[0]

	var usage *llm.Usage
	if resp.Usage.TotalTokens > 0 {
		modelInfo, _ := llm.GetModel(model)
		usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			Cost:             modelInfo.EstimateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		}
	}

	return &llm.Response{
		Text:         choice.Message.Content,
		Model:        model,
		Provider:     llm.ProviderOpenAI,
		Usage:        usage,
		FinishReason: string(choice.FinishReason),
		Metadata: map[string]string{
			"id":      resp.ID,
			"created": fmt.Sprintf("%d", resp.Created),
		},
	}, nil
}

// Completion implements llm.Client
func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
}

// Embed implements llm.Client
func (c *Client) Embed(ctx context.Context, text string) (*llm.EmbeddingResponse, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embed),
	})
	if err != nil {
		return nil, c.convertError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, llm.NewProviderError(llm.ProviderOpenAI, llm.ErrorTypeMalformedReply, "no embedding returned")
	}

	vector := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float64(v)
	}

	return &llm.EmbeddingResponse{
		Vector:   vector,
		Model:    c.embed,
		Provider: llm.ProviderOpenAI,
		Usage: &llm.Usage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
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
		log.Printf("openai: availability probe failed: %v", err)
		return false
	}
	return true
}

// Capabilities implements llm.Client; pure function of static knowledge
func (c *Client) Capabilities() llm.Capabilities {
	model, _ := llm.GetModel(c.config.Model)
	cost, speed, quality := llm.RanksFor(llm.ProviderOpenAI)
	return llm.Capabilities{
		SupportedModels:    llm.SupportedModelNames(llm.ProviderOpenAI),
		MaxTokensByModel:   llm.MaxOutputByProvider(llm.ProviderOpenAI),
		SupportsChat:       true,
		SupportsCompletion: true,
		SupportsEmbeddings: true,
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
func (c *Client) Provider() llm.Provider { return llm.ProviderOpenAI }

// Validate implements llm.Client
func (c *Client) Validate() error { return validateConfig(c.config) }

func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := llm.ParseHTTPError(llm.ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message)
		if code, ok := apiErr.Code.(string); ok {
			pe.Code = code
		}
		pe.Cause = err
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewProviderErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeTimeout, "request timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return llm.NewProviderErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeUnknown, "request canceled", err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection") {
		return llm.NewProviderErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeConnectionError, "connection error", err)
	}
	return llm.NewProviderErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeUnknown, err.Error(), err)
}

var _ llm.Client = (*Client)(nil)
