// Package agent defines the contract for units of AI-driven work and the
// concrete agents shipped with the runtime. Agents consume the LLM router and
// opaque collaborators (prompt rendering, conversation storage) to turn an
// Input into a structured Output.
package agent

import (
	"context"
	"log"

	"github.com/amuslera/bluelabel-aios/llm"
)

func logf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Status reports the outcome carried by an Output
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Input is the opaque unit of work handed to an agent
type Input struct {
	Source   string                 `json:"source"`
	Content  map[string]interface{} `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Output is the structured result of one agent execution. A caller always
// receives a well-formed Output; failure is communicated through its fields.
type Output struct {
	Status Status                 `json:"status"`
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// ErrorOutput builds an error Output with the given message
func ErrorOutput(msg string) Output {
	return Output{Status: StatusError, Error: msg}
}

// SuccessOutput builds a success Output with the given result
func SuccessOutput(result map[string]interface{}) Output {
	return Output{Status: StatusSuccess, Result: result}
}

// Capabilities describes what an agent does and which operations it exposes
type Capabilities struct {
	AgentID        string   `json:"agent_id"`
	Description    string   `json:"description"`
	Operations     []string `json:"operations,omitempty"`
	UsesEmbeddings bool     `json:"uses_embeddings,omitempty"`
}

// Agent is the unit-of-work contract. Process may call the router zero or
// more times, possibly concurrently. Partial LLM failures must be reduced to
// a still-successful Output; only unrecoverable input errors produce an
// explicit error Output, never a raised error past the agent boundary.
type Agent interface {
	Process(ctx context.Context, in Input) (Output, error)
	Capabilities() Capabilities
}

// Initializer is an optional hook run once after instantiation
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner is an optional hook run during runtime shutdown
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Factory constructs an agent instance. Factories are registered with the
// runtime manager at composition time; instantiation is lazy.
type Factory func(cfg map[string]interface{}) (Agent, error)

// LLM is the slice of the router contract agents consume. *llm.Router
// satisfies it; tests substitute fakes.
type LLM interface {
	Chat(ctx context.Context, req *llm.ChatRequest, opts ...llm.RouteOption) (*llm.Response, error)
	Complete(ctx context.Context, prompt string, opts ...llm.RouteOption) (*llm.Response, error)
	Embed(ctx context.Context, text string, opts ...llm.RouteOption) (*llm.EmbeddingResponse, error)
}

// PromptRenderer is the opaque prompt-template collaborator. Template syntax
// and storage live outside this core.
type PromptRenderer interface {
	Render(ctx context.Context, templateID string, vars map[string]interface{}) ([]llm.Message, error)
}
