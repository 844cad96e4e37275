package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/amuslera/bluelabel-aios/llm"
	"github.com/amuslera/bluelabel-aios/memory"
)

const (
	// summaryFallbackLen bounds the local truncation fallback when every
	// summarization call fails
	summaryFallbackLen = 500

	contentMindSession = "contentmind"
)

// ContentMindConfig wires the collaborators a ContentMind needs
type ContentMindConfig struct {
	LLM     LLM
	Prompts PromptRenderer           // optional; inline prompts when nil
	Store   memory.ConversationStore // optional; summaries kept per session
	Vectors memory.VectorStore       // optional; summary embeddings persisted
}

// ContentMind digests a piece of content: it produces a summary, extracts
// key concepts, and generates title/tag metadata, issuing the three LLM
// calls concurrently and joining them explicitly. A failed sub-call degrades
// to a local fallback so the agent still returns a successful Output.
type ContentMind struct {
	llm     LLM
	prompts PromptRenderer
	store   memory.ConversationStore
	vectors memory.VectorStore
}

// NewContentMind creates a ContentMind agent
func NewContentMind(cfg ContentMindConfig) (*ContentMind, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("contentmind: nil LLM")
	}
	return &ContentMind{
		llm:     cfg.LLM,
		prompts: cfg.Prompts,
		store:   cfg.Store,
		vectors: cfg.Vectors,
	}, nil
}

// Capabilities implements Agent
func (a *ContentMind) Capabilities() Capabilities {
	return Capabilities{
		AgentID:        "contentmind",
		Description:    "Summarizes content, extracts concepts, and generates metadata",
		Operations:     []string{"summarize", "extract_concepts", "generate_metadata"},
		UsesEmbeddings: a.vectors != nil,
	}
}

// Process implements Agent
func (a *ContentMind) Process(ctx context.Context, in Input) (Output, error) {
	text, _ := in.Content["text"].(string)
	if strings.TrimSpace(text) == "" {
		// Missing required input is unrecoverable; report it in the Output
		// rather than raising past the agent boundary.
		return ErrorOutput("content.text is required"), nil
	}

	var (
		wg       sync.WaitGroup
		summary  string
		concepts []string
		title    string
		tags     []string
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		summary = a.summarize(ctx, text)
	}()

	go func() {
		defer wg.Done()
		concepts = a.extractConcepts(ctx, text)
	}()

	go func() {
		defer wg.Done()
		title, tags = a.generateMetadata(ctx, text)
	}()

	wg.Wait()

	contentID := uuid.NewString()

	if a.store != nil {
		if err := a.store.AppendEntry(ctx, contentMindSession, "assistant", summary); err != nil {
			// Storage is best effort; the digest result stands on its own.
			logf("contentmind: store summary: %v", err)
		}
	}

	if a.vectors != nil {
		if emb, err := a.llm.Embed(ctx, summary); err != nil {
			logf("contentmind: embed summary: %v", err)
		} else if err := a.vectors.AddDocument(ctx, contentID, summary, emb.Vector); err != nil {
			logf("contentmind: index summary: %v", err)
		}
	}

	return SuccessOutput(map[string]interface{}{
		"content_id": contentID,
		"summary":    summary,
		"concepts":   concepts,
		"metadata": map[string]interface{}{
			"title": title,
			"tags":  tags,
		},
	}), nil
}

func (a *ContentMind) summarize(ctx context.Context, text string) string {
	messages, err := a.render(ctx, "contentmind.summarize", map[string]interface{}{"text": text}, []llm.Message{
		{Role: "system", Content: "You summarize documents in three sentences or fewer."},
		{Role: "user", Content: "Summarize the following content:\n\n" + text},
	})
	if err == nil {
		if resp, err := a.llm.Chat(ctx, &llm.ChatRequest{Messages: messages}); err == nil {
			return strings.TrimSpace(resp.Text)
		} else {
			logf("contentmind: summarize call failed, using truncation: %v", err)
		}
	}
	return truncate(text, summaryFallbackLen)
}

func (a *ContentMind) extractConcepts(ctx context.Context, text string) []string {
	messages, err := a.render(ctx, "contentmind.concepts", map[string]interface{}{"text": text}, []llm.Message{
		{Role: "system", Content: "You extract key concepts. Reply with one concept per line, nothing else."},
		{Role: "user", Content: "List the key concepts in the following content:\n\n" + text},
	})
	if err != nil {
		return nil
	}

	// Concept extraction tolerates a weaker model.
	resp, err := a.llm.Chat(ctx, &llm.ChatRequest{Messages: messages}, llm.WithStrategy(llm.StrategyCheapest))
	if err != nil {
		logf("contentmind: concept extraction failed: %v", err)
		return nil
	}
	return splitLines(resp.Text)
}

func (a *ContentMind) generateMetadata(ctx context.Context, text string) (string, []string) {
	messages, err := a.render(ctx, "contentmind.metadata", map[string]interface{}{"text": text}, []llm.Message{
		{Role: "system", Content: "First line: a short title. Following lines: one tag per line."},
		{Role: "user", Content: "Generate a title and tags for the following content:\n\n" + text},
	})
	if err != nil {
		return fallbackTitle(text), nil
	}

	resp, err := a.llm.Chat(ctx, &llm.ChatRequest{Messages: messages}, llm.WithStrategy(llm.StrategyCheapest))
	if err != nil {
		logf("contentmind: metadata generation failed: %v", err)
		return fallbackTitle(text), nil
	}

	lines := splitLines(resp.Text)
	if len(lines) == 0 {
		return fallbackTitle(text), nil
	}
	return lines[0], lines[1:]
}

// render uses the prompt collaborator when wired, otherwise the inline
// default messages
func (a *ContentMind) render(ctx context.Context, templateID string, vars map[string]interface{}, fallback []llm.Message) ([]llm.Message, error) {
	if a.prompts == nil {
		return fallback, nil
	}
	messages, err := a.prompts.Render(ctx, templateID, vars)
	if err != nil {
		logf("contentmind: render %s failed, using inline prompt: %v", templateID, err)
		return fallback, nil
	}
	return messages, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so the cut never splits a UTF-8 sequence.
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut]) + "..."
}

func fallbackTitle(text string) string {
	return truncate(text, 60)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

var _ Agent = (*ContentMind)(nil)
