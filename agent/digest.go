package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/amuslera/bluelabel-aios/llm"
	"github.com/amuslera/bluelabel-aios/memory"
)

// DigestConfig wires the collaborators a Digest agent needs
type DigestConfig struct {
	LLM   LLM
	Store memory.ConversationStore
	// PreferredProvider, when set, is tried first for the digest call and
	// degrades to the router's strategy on failure.
	PreferredProvider string
}

// Digest assembles a readable daily digest from the summaries ContentMind
// has accumulated in the conversation store, using a single routed chat call.
type Digest struct {
	llm       LLM
	store     memory.ConversationStore
	preferred string
}

// NewDigest creates a Digest agent
func NewDigest(cfg DigestConfig) (*Digest, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("digest: nil LLM")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("digest: nil store")
	}
	return &Digest{llm: cfg.LLM, store: cfg.Store, preferred: cfg.PreferredProvider}, nil
}

// Capabilities implements Agent
func (a *Digest) Capabilities() Capabilities {
	return Capabilities{
		AgentID:     "digest",
		Description: "Assembles a digest from accumulated content summaries",
		Operations:  []string{"digest"},
	}
}

// Process implements Agent. The session to digest comes from
// content["session_id"] and defaults to the ContentMind session.
func (a *Digest) Process(ctx context.Context, in Input) (Output, error) {
	session, _ := in.Content["session_id"].(string)
	if session == "" {
		session = contentMindSession
	}

	entries, err := a.store.Entries(ctx, session)
	if err != nil {
		return ErrorOutput(fmt.Sprintf("load session %q: %v", session, err)), nil
	}
	if len(entries) == 0 {
		return ErrorOutput(fmt.Sprintf("no summaries recorded for session %q", session)), nil
	}

	var summaries []string
	for _, e := range entries {
		summaries = append(summaries, "- "+e.Content)
	}
	joined := strings.Join(summaries, "\n")

	var opts []llm.RouteOption
	if a.preferred != "" {
		opts = append(opts, llm.WithProvider(a.preferred))
	}

	resp, err := a.llm.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You write short digests. Combine the given summaries into a few cohesive paragraphs."},
			{Role: "user", Content: "Write a digest of these items:\n\n" + joined},
		},
	}, opts...)
	if err != nil {
		// Degrade to the raw summary list; the digest is still useful.
		logf("digest: llm call failed, returning raw summaries: %v", err)
		return SuccessOutput(map[string]interface{}{
			"digest":     joined,
			"item_count": len(entries),
			"degraded":   true,
		}), nil
	}

	result := map[string]interface{}{
		"digest":     strings.TrimSpace(resp.Text),
		"item_count": len(entries),
	}
	if resp.Provider != "" {
		result["provider"] = string(resp.Provider)
	}
	return SuccessOutput(result), nil
}

var _ Agent = (*Digest)(nil)
