package llm

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amuslera/bluelabel-aios/observability"
)

// RouteOption adjusts a single routed call
type RouteOption func(*routeOptions)

type routeOptions struct {
	strategy    Strategy
	hasStrategy bool
	preferred   string
}

// WithStrategy overrides the router's default strategy for one call
func WithStrategy(s Strategy) RouteOption {
	return func(o *routeOptions) {
		o.strategy = s
		o.hasStrategy = true
	}
}

// WithProvider asks the router to try the named provider first. If it is
// unavailable or fails, the call degrades to the strategy order instead of
// failing outright.
func WithProvider(key string) RouteOption {
	return func(o *routeOptions) { o.preferred = key }
}

// ProviderStatus is one row of a provider listing
type ProviderStatus struct {
	Key          string        `json:"key"`
	Provider     Provider      `json:"provider"`
	Available    bool          `json:"available"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Router keeps a registry of live provider adapters and routes each call to
// one of them according to a selection strategy, falling back to the next
// candidate when an adapter is unavailable or fails. Availability is probed
// immediately before each use and never cached across calls.
type Router struct {
	mu              sync.RWMutex
	clients         map[string]Client
	order           []string
	defaultStrategy Strategy

	cursor atomic.Uint64 // round-robin cursor

	logger  *log.Logger
	metrics observability.Metrics
	tracer  observability.Tracer
}

// RouterOption configures a Router at construction time
type RouterOption func(*Router)

// WithDefaultStrategy sets the strategy used when a call carries none
func WithDefaultStrategy(s Strategy) RouterOption {
	return func(r *Router) { r.defaultStrategy = s }
}

// WithLogger sets the logger used for fallback and probe failures
func WithLogger(l *log.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// WithMetrics sets the metrics sink that records per-provider call outcomes
func WithMetrics(m observability.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithTracer sets the tracer that spans each routed call
func WithTracer(t observability.Tracer) RouterOption {
	return func(r *Router) { r.tracer = t }
}

// NewRouter creates an empty router. Providers are registered explicitly at
// composition time via AddProvider.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		clients:         make(map[string]Client),
		defaultStrategy: StrategyFallback,
		logger:          log.Default(),
		metrics:         observability.NoOpMetrics{},
		tracer:          &observability.NoOpTracer{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddProvider probes the adapter and registers it under key if the probe
// succeeds. Re-adding an existing key replaces the adapter in place; the
// registration order is unchanged. It never panics and reports success as a
// boolean.
func (r *Router) AddProvider(ctx context.Context, key string, client Client) bool {
	if key == "" || client == nil {
		return false
	}
	if err := client.Validate(); err != nil {
		r.logger.Printf("router: provider %q rejected: %v", key, err)
		return false
	}
	if !client.IsAvailable(ctx) {
		r.logger.Printf("router: provider %q not available, skipping registration", key)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[key]; !exists {
		r.order = append(r.order, key)
	}
	r.clients[key] = client
	return true
}

// RemoveProvider unregisters the adapter under key
func (r *Router) RemoveProvider(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[key]; !exists {
		return false
	}
	delete(r.clients, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// SetDefaultStrategy changes the strategy used when a call carries none
func (r *Router) SetDefaultStrategy(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultStrategy = s
}

// DefaultStrategy returns the current default strategy
func (r *Router) DefaultStrategy() Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultStrategy
}

// snapshot copies the registry state so provider calls proceed without
// holding the registry lock
func (r *Router) snapshot() (map[string]Client, []string, Strategy) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make(map[string]Client, len(r.clients))
	for k, c := range r.clients {
		clients[k] = c
	}
	order := make([]string, len(r.order))
	copy(order, r.order)
	return clients, order, r.defaultStrategy
}

// Chat routes a chat request to the first candidate that is available and
// succeeds. Candidates are tried strictly in strategy order; the first
// success short-circuits the rest.
func (r *Router) Chat(ctx context.Context, req *ChatRequest, opts ...RouteOption) (*Response, error) {
	return route(r, ctx, "chat", nil, opts, func(ctx context.Context, c Client) (*Response, error) {
		return c.Chat(ctx, req)
	})
}

// Complete routes a single-prompt completion
func (r *Router) Complete(ctx context.Context, prompt string, opts ...RouteOption) (*Response, error) {
	return route(r, ctx, "complete", nil, opts, func(ctx context.Context, c Client) (*Response, error) {
		return c.Completion(ctx, prompt)
	})
}

// Embed routes an embedding request. Only adapters whose capabilities report
// embedding support are candidates.
func (r *Router) Embed(ctx context.Context, text string, opts ...RouteOption) (*EmbeddingResponse, error) {
	embeddable := func(c Client) bool { return c.Capabilities().SupportsEmbeddings }
	return route(r, ctx, "embed", embeddable, opts, func(ctx context.Context, c Client) (*EmbeddingResponse, error) {
		return c.Embed(ctx, text)
	})
}

// route implements the shared selection loop: preferred provider first, then
// candidates in strategy order, skipping unavailable adapters and recovering
// per-adapter failures until one succeeds or all are exhausted.
func route[T any](r *Router, ctx context.Context, op string, eligible func(Client) bool, opts []RouteOption, call func(context.Context, Client) (T, error)) (T, error) {
	var zero T

	var ro routeOptions
	for _, opt := range opts {
		opt(&ro)
	}

	clients, order, strategy := r.snapshot()
	if ro.hasStrategy {
		strategy = ro.strategy
	}

	span, ctx := r.tracer.StartSpan(ctx, "llm."+op)
	span.SetAttribute(observability.AttrOperation, op)
	defer span.End()

	var cursor uint64
	if strategy == StrategyRoundRobin {
		// Advance once per routed call so consecutive calls start at
		// successive providers.
		cursor = r.cursor.Add(1) - 1
	}

	var lastErr error
	tried := make(map[string]bool)

	attempt := func(key string, c Client) (T, bool) {
		tried[key] = true
		if !c.IsAvailable(ctx) {
			r.logger.Printf("router: provider %q unavailable for %s", key, op)
			return zero, false
		}
		start := time.Now()
		out, err := call(ctx, c)
		r.metrics.ProviderCall(key, err == nil, time.Since(start))
		if err == nil {
			span.SetAttribute(observability.AttrProvider, key)
			span.SetStatus(observability.StatusCodeOk, "")
			return out, true
		}
		if IsUnsupported(err) {
			// Not a call failure; the adapter simply cannot do this.
			r.logger.Printf("router: provider %q cannot %s", key, op)
			return zero, false
		}
		lastErr = err
		r.logger.Printf("router: provider %q failed %s, trying next: %v", key, op, err)
		return zero, false
	}

	if ro.preferred != "" {
		if c, ok := clients[ro.preferred]; ok && (eligible == nil || eligible(c)) {
			if out, ok := attempt(ro.preferred, c); ok {
				return out, nil
			}
		}
	}

	for _, key := range OrderCandidates(strategy, order, func(k string) Capabilities {
		return clients[k].Capabilities()
	}, cursor) {
		if tried[key] {
			continue
		}
		c := clients[key]
		if eligible != nil && !eligible(c) {
			continue
		}
		if out, ok := attempt(key, c); ok {
			return out, nil
		}
	}

	if lastErr != nil {
		span.SetStatus(observability.StatusCodeError, lastErr.Error())
		return zero, lastErr
	}
	span.SetStatus(observability.StatusCodeError, "no available provider")
	return zero, &NoAvailableProviderError{Operation: op}
}

// AvailableProviders lists every registered adapter with a fresh availability
// probe and its capability descriptor. A failing adapter is reported in its
// row without aborting the listing.
func (r *Router) AvailableProviders(ctx context.Context) []ProviderStatus {
	clients, order, _ := r.snapshot()

	statuses := make([]ProviderStatus, 0, len(order))
	for _, key := range order {
		c := clients[key]
		status := ProviderStatus{Key: key, Provider: c.Provider()}

		func() {
			defer func() {
				if rec := recover(); rec != nil {
					status.Error = "adapter panic during probe"
					status.Available = false
				}
			}()
			status.Available = c.IsAvailable(ctx)
			caps := c.Capabilities()
			status.Capabilities = &caps
		}()

		statuses = append(statuses, status)
	}
	return statuses
}

// Providers returns the registered keys in registration order
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
