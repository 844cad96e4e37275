package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amuslera/bluelabel-aios/llm"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aios.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultStrategy() != llm.StrategyFallback {
		t.Fatalf("strategy = %v", cfg.Router.DefaultStrategy)
	}
	if cfg.Runtime.ExecuteTimeout != 300*time.Second {
		t.Fatalf("timeout = %s", cfg.Runtime.ExecuteTimeout)
	}
	if cfg.Memory.Redis.Enabled || cfg.Memory.Postgres.Enabled {
		t.Fatalf("remote stores enabled by default: %+v", cfg.Memory)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: openai
    type: openai
    api_key: sk-test
    model: gpt-4o-mini
  - name: local
    type: ollama
    base_url: http://localhost:11434
router:
  default_strategy: cheapest
runtime:
  execute_timeout: 2m
memory:
  redis:
    enabled: true
    addr: cache:6379
    ttl: 1h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers: %+v", cfg.Providers)
	}
	if cfg.DefaultStrategy() != llm.StrategyCheapest {
		t.Fatalf("strategy = %v", cfg.Router.DefaultStrategy)
	}
	if cfg.Runtime.ExecuteTimeout != 2*time.Minute {
		t.Fatalf("timeout = %s", cfg.Runtime.ExecuteTimeout)
	}
	if !cfg.Memory.Redis.Enabled || cfg.Memory.Redis.Addr != "cache:6379" || cfg.Memory.Redis.TTL != time.Hour {
		t.Fatalf("redis: %+v", cfg.Memory.Redis)
	}
	// File did not set a prefix; the default survives the merge.
	if cfg.Memory.Redis.Prefix != "aios" {
		t.Fatalf("prefix = %q", cfg.Memory.Redis.Prefix)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AIOS_DEFAULT_STRATEGY", "fastest")
	t.Setenv("AIOS_EXECUTE_TIMEOUT", "90s")
	t.Setenv("AIOS_REDIS_ADDR", "envhost:6379")
	t.Setenv("AIOS_PROVIDER_OPENAI_API_KEY", "sk-env")

	path := writeConfig(t, `
providers:
  - name: openai
    type: openai
    api_key: sk-file
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultStrategy() != llm.StrategyFastest {
		t.Fatalf("strategy = %v", cfg.Router.DefaultStrategy)
	}
	if cfg.Runtime.ExecuteTimeout != 90*time.Second {
		t.Fatalf("timeout = %s", cfg.Runtime.ExecuteTimeout)
	}
	if !cfg.Memory.Redis.Enabled || cfg.Memory.Redis.Addr != "envhost:6379" {
		t.Fatalf("redis: %+v", cfg.Memory.Redis)
	}
	if cfg.Providers[0].APIKey != "sk-env" {
		t.Fatalf("api key = %q", cfg.Providers[0].APIKey)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad strategy", "router:\n  default_strategy: psychic\n"},
		{"negative timeout", "runtime:\n  execute_timeout: -5s\n"},
		{"unnamed provider", "providers:\n  - type: openai\n    api_key: k\n"},
		{"unknown type", "providers:\n  - name: x\n    type: cohere\n"},
		{"duplicate name", "providers:\n  - name: x\n    type: ollama\n  - name: x\n    type: ollama\n"},
		{"postgres without dsn", "memory:\n  postgres:\n    enabled: true\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestProviderEnabled(t *testing.T) {
	if (ProviderConfig{Type: "openai"}).Enabled() {
		t.Fatal("keyless openai should be disabled")
	}
	if !(ProviderConfig{Type: "openai", APIKey: "k"}).Enabled() {
		t.Fatal("keyed openai should be enabled")
	}
	if !(ProviderConfig{Type: "ollama"}).Enabled() {
		t.Fatal("ollama needs no key")
	}
	if !(ProviderConfig{Type: "bedrock"}).Enabled() {
		t.Fatal("bedrock authenticates through the AWS chain")
	}
}

func TestClientConfig(t *testing.T) {
	p := ProviderConfig{
		Name:           "aws",
		Type:           "bedrock",
		Model:          llm.ModelBedrockClaudeHaiku,
		Region:         "us-east-1",
		EmbeddingModel: "amazon.titan-embed-text-v2:0",
		MaxTokens:      2048,
		Timeout:        20 * time.Second,
	}
	cfg := p.ClientConfig()
	if cfg.Model != p.Model || cfg.MaxTokens != 2048 || cfg.Timeout != 20*time.Second {
		t.Fatalf("config: %+v", cfg)
	}
	if cfg.Extra["region"] != "us-east-1" {
		t.Fatalf("extra: %v", cfg.Extra)
	}
	if cfg.Extra["embedding_model"] != "amazon.titan-embed-text-v2:0" {
		t.Fatalf("extra: %v", cfg.Extra)
	}
	if cfg.Retry.MaxRetries == 0 {
		t.Fatal("retry defaults not applied")
	}

	bare := ProviderConfig{Name: "local", Type: "ollama"}.ClientConfig()
	if bare.Extra != nil {
		t.Fatalf("extra should be nil: %v", bare.Extra)
	}
}
