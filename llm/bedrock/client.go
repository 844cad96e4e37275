// Package bedrock adapts the AWS Bedrock Converse API to the uniform
// llm.Client contract. Credentials come from the default AWS chain.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/amuslera/bluelabel-aios/llm"
)

// converseAPI abstracts the Bedrock runtime call for testability
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements llm.Client for AWS Bedrock
type Client struct {
	client  converseAPI
	config  llm.Config
	retrier *llm.Retrier
}

// NewClient creates a new Bedrock adapter. The region is read from
// config.Extra["region"] and defaults to us-east-1.
func NewClient(config llm.Config) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	region := "us-east-1"
	if r, ok := config.Extra["region"].(string); ok && r != "" {
		region = r
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newClient(bedrockruntime.NewFromConfig(awsCfg), config), nil
}

// NewClientWithAPI creates a Bedrock adapter with an injected runtime client
func NewClientWithAPI(api converseAPI, config llm.Config) *Client {
	return newClient(api, config)
}

func newClient(api converseAPI, config llm.Config) *Client {
	if config.Model == "" {
		config.Model = llm.ModelBedrockClaudeHaiku
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
	return &Client{
		client:  api,
		config:  config,
		retrier: llm.NewRetrier(config.Retry),
	}
}

func validateConfig(config llm.Config) error {
	if config.Model != "" {
		if m, err := llm.GetModel(config.Model); err == nil && m.Provider != llm.ProviderBedrock {
			return fmt.Errorf("model %s is not a Bedrock model", config.Model)
		}
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
	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
	}

	requested := 0
	if req.MaxTokens != nil {
		requested = *req.MaxTokens
	}
	maxTokens := llm.ClampMaxTokens(requested, c.config.MaxTokens, model)
	input.InferenceConfig = &types.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(maxTokens)),
	}
	if req.Temperature != nil {
		input.InferenceConfig.Temperature = aws.Float32(float32(*req.Temperature))
	} else if c.config.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(c.config.Temperature))
	}
	if len(req.Stop) > 0 {
		input.InferenceConfig.StopSequences = req.Stop
	}

	// Bedrock carries system prompts in a dedicated field; conversation
	// messages keep their relative order.
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: m.Content})
		case "assistant":
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		default:
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}

	output, err := c.client.Converse(ctx, input)
	if err != nil {
		return nil, c.convertError(err)
	}

	var text strings.Builder
	if outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			if b, ok := block.(*types.ContentBlockMemberText); ok {
				text.WriteString(b.Value)
			}
		}
	} else {
		return nil, llm.NewProviderError(llm.ProviderBedrock, llm.ErrorTypeMalformedReply, "unexpected converse output shape")
	}

	var usage *llm.Usage
	if output.Usage != nil {
		in := int(aws.ToInt32(output.Usage.InputTokens))
		out := int(aws.ToInt32(output.Usage.OutputTokens))
		modelInfo, _ := llm.GetModel(model)
		usage = &llm.Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
			Cost:             modelInfo.EstimateCost(in, out),
		}
	}

	return &llm.Response{
		Text:         text.String(),
		Model:        model,
		Provider:     llm.ProviderBedrock,
		Usage:        usage,
		FinishReason: string(output.StopReason),
	}, nil
}

// Completion implements llm.Client
func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
}

// Embed implements llm.Client. The Converse API carries no embedding models.
func (c *Client) Embed(ctx context.Context, text string) (*llm.EmbeddingResponse, error) {
	return nil, &llm.UnsupportedOperationError{Provider: llm.ProviderBedrock, Operation: "embed"}
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
		log.Printf("bedrock: availability probe failed: %v", err)
		return false
	}
	return true
}

// Capabilities implements llm.Client; pure function of static knowledge
func (c *Client) Capabilities() llm.Capabilities {
	model, _ := llm.GetModel(c.config.Model)
	cost, speed, quality := llm.RanksFor(llm.ProviderBedrock)
	return llm.Capabilities{
		SupportedModels:    llm.SupportedModelNames(llm.ProviderBedrock),
		MaxTokensByModel:   llm.MaxOutputByProvider(llm.ProviderBedrock),
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
func (c *Client) Provider() llm.Provider { return llm.ProviderBedrock }

// Validate implements llm.Client
func (c *Client) Validate() error { return validateConfig(c.config) }

func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}

	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return llm.NewProviderErrorWithCause(llm.ProviderBedrock, llm.ErrorTypeRateLimit, "throttled by bedrock", err)
	}
	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		return llm.NewProviderErrorWithCause(llm.ProviderBedrock, llm.ErrorTypePermission, "access denied", err)
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return llm.NewProviderErrorWithCause(llm.ProviderBedrock, llm.ErrorTypeInvalidModel, "model not found", err)
	}
	var validation *types.ValidationException
	if errors.As(err, &validation) {
		return llm.NewProviderErrorWithCause(llm.ProviderBedrock, llm.ErrorTypeInvalidRequest, "invalid request", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe := llm.NewProviderErrorWithCause(llm.ProviderBedrock, llm.ErrorTypeServerError, apiErr.ErrorMessage(), err)
		pe.Code = apiErr.ErrorCode()
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewProviderErrorWithCause(llm.ProviderBedrock, llm.ErrorTypeTimeout, "request timeout", err)
	}
	return llm.NewProviderErrorWithCause(llm.ProviderBedrock, llm.ErrorTypeUnknown, err.Error(), err)
}

var _ llm.Client = (*Client)(nil)
