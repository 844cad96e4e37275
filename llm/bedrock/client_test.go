package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/amuslera/bluelabel-aios/llm"
)

type fakeConverse struct {
	lastInput *bedrockruntime.ConverseInput
	output    *bedrockruntime.ConverseOutput
	err       error
	calls     int
}

func (f *fakeConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.calls++
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func textOutput(text string, in, out int32) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			},
		},
		StopReason: types.StopReasonEndTurn,
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(in),
			OutputTokens: aws.Int32(out),
			TotalTokens:  aws.Int32(in + out),
		},
	}
}

func TestChat(t *testing.T) {
	api := &fakeConverse{output: textOutput("response text", 10, 5)}
	c := NewClientWithAPI(api, llm.Config{Model: llm.ModelBedrockClaudeHaiku, MaxTokens: 500})

	maxTokens := 100
	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Text != "response text" || resp.Provider != llm.ProviderBedrock {
		t.Fatalf("response: %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Fatalf("usage: %+v", resp.Usage)
	}

	in := api.lastInput
	if len(in.System) != 1 {
		t.Fatalf("system prompt not lifted: %d blocks", len(in.System))
	}
	if len(in.Messages) != 1 {
		t.Fatalf("conversation messages: %d", len(in.Messages))
	}
	if got := aws.ToInt32(in.InferenceConfig.MaxTokens); got != 100 {
		t.Fatalf("max tokens: %d", got)
	}
}

func TestChatThrottled(t *testing.T) {
	api := &fakeConverse{err: &types.ThrottlingException{Message: aws.String("slow down")}}
	c := NewClientWithAPI(api, llm.Config{
		Retry: llm.RetryConfig{MaxRetries: 1, InitialDelay: 1, MaxDelay: 1, BackoffFactor: 1},
	})

	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if !llm.IsRateLimitError(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if api.calls != 2 {
		t.Fatalf("throttling should be retried once: %d calls", api.calls)
	}
}

func TestChatAccessDeniedNotRetried(t *testing.T) {
	api := &fakeConverse{err: &types.AccessDeniedException{Message: aws.String("no")}}
	c := NewClientWithAPI(api, llm.Config{})

	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Type != llm.ErrorTypePermission {
		t.Fatalf("expected permission error, got %v", err)
	}
	if api.calls != 1 {
		t.Fatalf("permission errors must not retry: %d calls", api.calls)
	}
}

func TestChatModelNotFound(t *testing.T) {
	api := &fakeConverse{err: &types.ResourceNotFoundException{Message: aws.String("gone")}}
	c := NewClientWithAPI(api, llm.Config{})

	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Type != llm.ErrorTypeInvalidModel {
		t.Fatalf("expected invalid model error, got %v", err)
	}
}

func TestChatUnexpectedOutputShape(t *testing.T) {
	api := &fakeConverse{output: &bedrockruntime.ConverseOutput{}}
	c := NewClientWithAPI(api, llm.Config{})

	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Type != llm.ErrorTypeMalformedReply {
		t.Fatalf("expected malformed reply error, got %v", err)
	}
}

func TestEmbedUnsupported(t *testing.T) {
	c := NewClientWithAPI(&fakeConverse{}, llm.Config{})
	_, err := c.Embed(context.Background(), "text")
	if !llm.IsUnsupported(err) {
		t.Fatalf("expected UnsupportedOperationError, got %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	api := &fakeConverse{output: textOutput("pong", 1, 1)}
	c := NewClientWithAPI(api, llm.Config{})
	if !c.IsAvailable(context.Background()) {
		t.Fatalf("expected available")
	}

	api.err = errors.New("network down")
	if c.IsAvailable(context.Background()) {
		t.Fatalf("expected unavailable")
	}
}

func TestCapabilities(t *testing.T) {
	c := NewClientWithAPI(&fakeConverse{}, llm.Config{})
	caps := c.Capabilities()
	if caps.SupportsEmbeddings {
		t.Fatalf("bedrock adapter must not claim embeddings")
	}
	if !caps.SupportsChat || len(caps.SupportedModels) == 0 {
		t.Fatalf("capabilities: %+v", caps)
	}
}

func TestValidateRejectsForeignModel(t *testing.T) {
	if _, err := NewClient(llm.Config{Model: llm.ModelGPT4o}); err == nil {
		t.Fatalf("expected rejection of non-bedrock model")
	}
}

func TestChatPreservesTurnOrder(t *testing.T) {
	api := &fakeConverse{output: textOutput("ok", 1, 1)}
	c := NewClientWithAPI(api, llm.Config{Model: llm.ModelBedrockClaudeHaiku})

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

	in := api.lastInput
	if len(in.System) != 1 || len(in.Messages) != 3 {
		t.Fatalf("system=%d messages=%d", len(in.System), len(in.Messages))
	}
	wantRoles := []types.ConversationRole{
		types.ConversationRoleUser,
		types.ConversationRoleAssistant,
		types.ConversationRoleUser,
	}
	wantText := []string{"first question", "first answer", "second question"}
	for i, msg := range in.Messages {
		if msg.Role != wantRoles[i] {
			t.Fatalf("message %d role = %v", i, msg.Role)
		}
		b, ok := msg.Content[0].(*types.ContentBlockMemberText)
		if !ok || b.Value != wantText[i] {
			t.Fatalf("message %d content = %+v", i, msg.Content)
		}
	}
}
