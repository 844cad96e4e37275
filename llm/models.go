package llm

import (
	"fmt"
	"sort"
)

// Provider identifies an LLM backend type
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
	ProviderOllama    Provider = "ollama"
)

// Model describes one model with its static properties
type Model struct {
	Provider    Provider `json:"provider"`
	Name        string   `json:"name"`
	ContextSize int      `json:"context_size"`
	MaxOutput   int      `json:"max_output"`  // Hard output token limit
	InputCost   float64  `json:"input_cost"`  // USD per 1M input tokens
	OutputCost  float64  `json:"output_cost"` // USD per 1M output tokens
	Embeddings  bool     `json:"embeddings"`  // True for embedding models
	Vision      bool     `json:"vision"`
	Functions   bool     `json:"functions"`
}

// OpenAI models
const (
	ModelGPT4o        = "gpt-4o"
	ModelGPT4oMini    = "gpt-4o-mini"
	ModelGPT4Turbo    = "gpt-4-turbo"
	ModelGPT35Turbo   = "gpt-3.5-turbo"
	ModelTextEmbed3   = "text-embedding-3-small"
	ModelTextEmbed3Lg = "text-embedding-3-large"
)

// Anthropic models
const (
	ModelClaude35Sonnet = "claude-3-5-sonnet-20241022"
	ModelClaude35Haiku  = "claude-3-5-haiku-20241022"
	ModelClaudeOpus     = "claude-3-opus-20240229"
)

// Bedrock model IDs (Converse API)
const (
	ModelBedrockClaudeSonnet = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	ModelBedrockClaudeHaiku  = "anthropic.claude-3-5-haiku-20241022-v1:0"
	ModelBedrockTitanText    = "amazon.titan-text-express-v1"
)

// Ollama models (local; costs are zero)
const (
	ModelLlama3     = "llama3"
	ModelMistral    = "mistral"
	ModelNomicEmbed = "nomic-embed-text"
)

// Catalog holds static metadata for all known models
var Catalog = map[string]Model{
	ModelGPT4o: {
		Provider: ProviderOpenAI, Name: ModelGPT4o,
		ContextSize: 128000, MaxOutput: 16384,
		InputCost: 5.0, OutputCost: 15.0,
		Vision: true, Functions: true,
	},
	ModelGPT4oMini: {
		Provider: ProviderOpenAI, Name: ModelGPT4oMini,
		ContextSize: 128000, MaxOutput: 16384,
		InputCost: 0.15, OutputCost: 0.60,
		Vision: true, Functions: true,
	},
	ModelGPT4Turbo: {
		Provider: ProviderOpenAI, Name: ModelGPT4Turbo,
		ContextSize: 128000, MaxOutput: 4096,
		InputCost: 10.0, OutputCost: 30.0,
		Vision: true, Functions: true,
	},
	ModelGPT35Turbo: {
		Provider: ProviderOpenAI, Name: ModelGPT35Turbo,
		ContextSize: 16385, MaxOutput: 4096,
		InputCost: 0.50, OutputCost: 1.50,
		Functions: true,
	},
	ModelTextEmbed3: {
		Provider: ProviderOpenAI, Name: ModelTextEmbed3,
		ContextSize: 8191, InputCost: 0.02, Embeddings: true,
	},
	ModelTextEmbed3Lg: {
		Provider: ProviderOpenAI, Name: ModelTextEmbed3Lg,
		ContextSize: 8191, InputCost: 0.13, Embeddings: true,
	},

	ModelClaude35Sonnet: {
		Provider: ProviderAnthropic, Name: ModelClaude35Sonnet,
		ContextSize: 200000, MaxOutput: 8192,
		InputCost: 3.0, OutputCost: 15.0,
		Vision: true, Functions: true,
	},
	ModelClaude35Haiku: {
		Provider: ProviderAnthropic, Name: ModelClaude35Haiku,
		ContextSize: 200000, MaxOutput: 8192,
		InputCost: 0.25, OutputCost: 1.25,
		Vision: true, Functions: true,
	},
	ModelClaudeOpus: {
		Provider: ProviderAnthropic, Name: ModelClaudeOpus,
		ContextSize: 200000, MaxOutput: 4096,
		InputCost: 15.0, OutputCost: 75.0,
		Vision: true, Functions: true,
	},

	ModelBedrockClaudeSonnet: {
		Provider: ProviderBedrock, Name: ModelBedrockClaudeSonnet,
		ContextSize: 200000, MaxOutput: 8192,
		InputCost: 3.0, OutputCost: 15.0,
		Vision: true, Functions: true,
	},
	ModelBedrockClaudeHaiku: {
		Provider: ProviderBedrock, Name: ModelBedrockClaudeHaiku,
		ContextSize: 200000, MaxOutput: 8192,
		InputCost: 0.80, OutputCost: 4.0,
		Functions: true,
	},
	ModelBedrockTitanText: {
		Provider: ProviderBedrock, Name: ModelBedrockTitanText,
		ContextSize: 8192, MaxOutput: 8192,
		InputCost: 0.20, OutputCost: 0.60,
	},

	ModelLlama3: {
		Provider: ProviderOllama, Name: ModelLlama3,
		ContextSize: 8192, MaxOutput: 4096,
	},
	ModelMistral: {
		Provider: ProviderOllama, Name: ModelMistral,
		ContextSize: 32768, MaxOutput: 4096,
	},
	ModelNomicEmbed: {
		Provider: ProviderOllama, Name: ModelNomicEmbed,
		ContextSize: 8192, Embeddings: true,
	},
}

// GetModel returns metadata for a model name
func GetModel(name string) (Model, error) {
	model, exists := Catalog[name]
	if !exists {
		return Model{}, fmt.Errorf("unknown model: %s", name)
	}
	return model, nil
}

// ModelsByProvider returns all catalog models for a provider, sorted by name
func ModelsByProvider(provider Provider) []Model {
	var models []Model
	for _, m := range Catalog {
		if m.Provider == provider {
			models = append(models, m)
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}

// MaxOutputByProvider returns the per-model output limits for a provider
func MaxOutputByProvider(provider Provider) map[string]int {
	limits := make(map[string]int)
	for _, m := range Catalog {
		if m.Provider == provider && m.MaxOutput > 0 {
			limits[m.Name] = m.MaxOutput
		}
	}
	return limits
}

// SupportedModelNames returns catalog model names for a provider
func SupportedModelNames(provider Provider) []string {
	models := ModelsByProvider(provider)
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names
}

// EstimateCost estimates the USD cost for given token counts
func (m Model) EstimateCost(inputTokens, outputTokens int) float64 {
	inputCost := (float64(inputTokens) / 1000000) * m.InputCost
	outputCost := (float64(outputTokens) / 1000000) * m.OutputCost
	return inputCost + outputCost
}

// String returns a human-readable representation of the model
func (m Model) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Provider)
}

// providerRank is the static ranking table used by the ordering strategies.
// Lower rank wins; 0 means unranked and sorts last.
type providerRank struct {
	Cost    int
	Speed   int
	Quality int
}

var providerRanks = map[Provider]providerRank{
	ProviderOllama:    {Cost: 1, Speed: 4, Quality: 4},
	ProviderOpenAI:    {Cost: 2, Speed: 1, Quality: 2},
	ProviderBedrock:   {Cost: 3, Speed: 3, Quality: 3},
	ProviderAnthropic: {Cost: 4, Speed: 2, Quality: 1},
}

// RanksFor returns the static cost/speed/quality ranks for a provider.
// Unknown providers yield zero ranks and sort last under ranked strategies.
func RanksFor(provider Provider) (cost, speed, quality int) {
	r := providerRanks[provider]
	return r.Cost, r.Speed, r.Quality
}
