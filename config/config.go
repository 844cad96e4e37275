// Package config loads the composition-time configuration: which provider
// adapters to build, how the router selects among them, and the runtime
// execution deadline. Values come from a YAML file with AIOS_* environment
// overrides applied on top.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amuslera/bluelabel-aios/llm"
)

// ProviderConfig holds settings for one provider adapter.
type ProviderConfig struct {
	Name           string        `yaml:"name"`
	Type           string        `yaml:"type"` // "openai", "anthropic", "bedrock", "ollama"
	APIKey         string        `yaml:"api_key,omitempty"`
	Model          string        `yaml:"model,omitempty"`
	EmbeddingModel string        `yaml:"embedding_model,omitempty"`
	BaseURL        string        `yaml:"base_url,omitempty"`
	Region         string        `yaml:"region,omitempty"`
	Temperature    float64       `yaml:"temperature,omitempty"`
	MaxTokens      int           `yaml:"max_tokens,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// RouterConfig holds router settings.
type RouterConfig struct {
	DefaultStrategy string `yaml:"default_strategy"`
}

// RuntimeConfig holds agent runtime settings.
type RuntimeConfig struct {
	ExecuteTimeout time.Duration `yaml:"execute_timeout"`
}

// RedisConfig holds the conversation store connection settings.
type RedisConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr"`
	DB      int           `yaml:"db"`
	Prefix  string        `yaml:"prefix"`
	TTL     time.Duration `yaml:"ttl"`
}

// PostgresConfig holds the vector store connection settings.
type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Table   string `yaml:"table"`
}

// MemoryConfig holds storage backend settings.
type MemoryConfig struct {
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// Config is the top-level application configuration.
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	Router    RouterConfig     `yaml:"router"`
	Runtime   RuntimeConfig    `yaml:"runtime"`
	Memory    MemoryConfig     `yaml:"memory"`
}

// Defaults returns a Config with sensible defaults: no providers, fallback
// routing, the standard execution deadline, in-process memory only.
func Defaults() *Config {
	return &Config{
		Router:  RouterConfig{DefaultStrategy: llm.StrategyFallback.String()},
		Runtime: RuntimeConfig{ExecuteTimeout: 300 * time.Second},
		Memory: MemoryConfig{
			Redis:    RedisConfig{Addr: "localhost:6379", Prefix: "aios"},
			Postgres: PostgresConfig{Table: "documents"},
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error; defaults plus env overrides are returned instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps AIOS_* env vars to config fields. Per-provider API
// keys follow AIOS_PROVIDER_<NAME>_API_KEY.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AIOS_DEFAULT_STRATEGY"); v != "" {
		cfg.Router.DefaultStrategy = v
	}
	if v := os.Getenv("AIOS_EXECUTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Runtime.ExecuteTimeout = d
		}
	}
	if v := os.Getenv("AIOS_REDIS_ADDR"); v != "" {
		cfg.Memory.Redis.Enabled = true
		cfg.Memory.Redis.Addr = v
	}
	if v := os.Getenv("AIOS_POSTGRES_DSN"); v != "" {
		cfg.Memory.Postgres.Enabled = true
		cfg.Memory.Postgres.DSN = v
	}
	for i := range cfg.Providers {
		envKey := fmt.Sprintf("AIOS_PROVIDER_%s_API_KEY",
			strings.ToUpper(cfg.Providers[i].Name))
		if v := os.Getenv(envKey); v != "" {
			cfg.Providers[i].APIKey = v
		}
	}
}

// Validate rejects configurations the composition root cannot act on.
func (c *Config) Validate() error {
	if _, err := llm.ParseStrategy(c.Router.DefaultStrategy); err != nil {
		return fmt.Errorf("router.default_strategy: %w", err)
	}
	if c.Runtime.ExecuteTimeout <= 0 {
		return fmt.Errorf("runtime.execute_timeout must be positive")
	}
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider entry missing name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case "openai", "anthropic", "bedrock", "ollama":
		default:
			return fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
		if p.Enabled() && p.NeedsAPIKey() && p.APIKey == "" {
			return fmt.Errorf("provider %q: api_key is required", p.Name)
		}
	}
	if c.Memory.Postgres.Enabled && c.Memory.Postgres.DSN == "" {
		return fmt.Errorf("memory.postgres.dsn is required when enabled")
	}
	return nil
}

// Enabled reports whether the provider entry should be built. Entries stay
// in the file with an empty api_key to document the available backends.
func (p ProviderConfig) Enabled() bool {
	return !p.NeedsAPIKey() || p.APIKey != ""
}

// NeedsAPIKey reports whether the provider type calls a keyed remote API.
// Bedrock authenticates through the AWS credential chain and ollama is
// local, so only openai and anthropic require a key here.
func (p ProviderConfig) NeedsAPIKey() bool {
	return p.Type == "openai" || p.Type == "anthropic"
}

// ClientConfig converts one provider entry into the adapter config consumed
// by the llm constructors.
func (p ProviderConfig) ClientConfig() llm.Config {
	cfg := llm.Config{
		APIKey:      p.APIKey,
		Model:       p.Model,
		BaseURL:     p.BaseURL,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Timeout:     p.Timeout,
		Retry:       llm.DefaultRetryConfig(),
	}
	extra := make(map[string]interface{})
	if p.Region != "" {
		extra["region"] = p.Region
	}
	if p.EmbeddingModel != "" {
		extra["embedding_model"] = p.EmbeddingModel
	}
	if len(extra) > 0 {
		cfg.Extra = extra
	}
	return cfg
}

// DefaultStrategy returns the parsed router strategy. Call Validate first;
// an unparsable value falls back to fallback routing.
func (c *Config) DefaultStrategy() llm.Strategy {
	s, err := llm.ParseStrategy(c.Router.DefaultStrategy)
	if err != nil {
		return llm.StrategyFallback
	}
	return s
}
