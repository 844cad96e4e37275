// Command aiosd wires the orchestration core together: it builds provider
// adapters from configuration, registers them with a router, registers the
// agents with the runtime manager, and keeps the process alive until a
// shutdown signal arrives. All construction is explicit; nothing here is a
// package-level singleton.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	rds "github.com/redis/go-redis/v9"

	"github.com/amuslera/bluelabel-aios/agent"
	"github.com/amuslera/bluelabel-aios/agent/runtime"
	"github.com/amuslera/bluelabel-aios/config"
	"github.com/amuslera/bluelabel-aios/llm"
	"github.com/amuslera/bluelabel-aios/llm/anthropic"
	"github.com/amuslera/bluelabel-aios/llm/bedrock"
	"github.com/amuslera/bluelabel-aios/llm/ollama"
	"github.com/amuslera/bluelabel-aios/llm/openai"
	"github.com/amuslera/bluelabel-aios/memory"
	"github.com/amuslera/bluelabel-aios/memory/inmemory"
	"github.com/amuslera/bluelabel-aios/memory/redis"
	"github.com/amuslera/bluelabel-aios/memory/vector/pgvector"
	"github.com/amuslera/bluelabel-aios/observability"
)

func main() {
	configPath := flag.String("config", "aios.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("aiosd: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewDefaultMetrics()
	tracer := observability.NewDefaultTracer()

	router := llm.NewRouter(
		llm.WithDefaultStrategy(cfg.DefaultStrategy()),
		llm.WithMetrics(metrics),
		llm.WithTracer(tracer),
	)
	registered := 0
	for _, p := range cfg.Providers {
		if !p.Enabled() {
			log.Printf("provider %q disabled (no api key), skipping", p.Name)
			continue
		}
		client, err := buildAdapter(p)
		if err != nil {
			log.Printf("provider %q: %v", p.Name, err)
			continue
		}
		if router.AddProvider(ctx, p.Name, client) {
			registered++
		}
	}
	if registered == 0 {
		return fmt.Errorf("no providers registered; check configuration")
	}
	log.Printf("router ready with %d provider(s): %v", registered, router.Providers())

	store, vectors, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}
	defer cleanup()

	manager := runtime.NewManager(
		runtime.WithTimeout(cfg.Runtime.ExecuteTimeout),
		runtime.WithMetrics(metrics),
		runtime.WithTracer(tracer),
	)
	defer manager.Shutdown(context.Background())

	manager.Register("contentmind", func(map[string]interface{}) (agent.Agent, error) {
		return agent.NewContentMind(agent.ContentMindConfig{
			LLM:     router,
			Store:   store,
			Vectors: vectors,
		})
	}, nil)
	manager.Register("digest", func(map[string]interface{}) (agent.Agent, error) {
		return agent.NewDigest(agent.DigestConfig{LLM: router, Store: store})
	}, nil)

	for _, info := range manager.ListAgents() {
		log.Printf("registered agent %q", info.AgentID)
	}

	<-ctx.Done()
	log.Printf("shutting down")
	return nil
}

// buildAdapter constructs one provider adapter from its config entry.
func buildAdapter(p config.ProviderConfig) (llm.Client, error) {
	cc := p.ClientConfig()
	switch p.Type {
	case "openai":
		return openai.NewClient(cc)
	case "anthropic":
		return anthropic.NewClient(cc)
	case "bedrock":
		return bedrock.NewClient(cc)
	case "ollama":
		return ollama.NewClient(cc)
	default:
		return nil, fmt.Errorf("unknown provider type %q", p.Type)
	}
}

// buildStores constructs the conversation store and, when configured, the
// vector store. The returned cleanup closes any opened connections.
func buildStores(ctx context.Context, cfg *config.Config) (memory.ConversationStore, memory.VectorStore, func(), error) {
	cleanup := func() {}

	var store memory.ConversationStore
	if cfg.Memory.Redis.Enabled {
		client := rds.NewClient(&rds.Options{
			Addr: cfg.Memory.Redis.Addr,
			DB:   cfg.Memory.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, cleanup, fmt.Errorf("redis ping: %w", err)
		}
		store = redis.NewConversationStore(client, cfg.Memory.Redis.TTL, cfg.Memory.Redis.Prefix)
		cleanup = func() { client.Close() }
	} else {
		store = inmemory.NewConversationStore()
	}

	var vectors memory.VectorStore
	if cfg.Memory.Postgres.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Memory.Postgres.DSN)
		if err != nil {
			cleanup()
			return nil, nil, func() {}, fmt.Errorf("postgres connect: %w", err)
		}
		vectors = pgvector.New(pool, cfg.Memory.Postgres.Table)
		prev := cleanup
		cleanup = func() {
			pool.Close()
			prev()
		}
	}

	return store, vectors, cleanup, nil
}
