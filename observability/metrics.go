// Package observability defines the metrics collaborator used by the router
// and the agent runtime. The default collector is in-process; hosts may plug
// in their own exporter.
package observability

import (
	"sync"
	"time"
)

// Metrics receives counters from the router and runtime
type Metrics interface {
	// ProviderCall records one attempted provider call
	ProviderCall(provider string, success bool, latency time.Duration)

	// AgentExecution records one completed agent execution
	AgentExecution(agentID string, success bool, latency time.Duration)
}

// NoOpMetrics discards everything
type NoOpMetrics struct{}

// ProviderCall implements Metrics
func (NoOpMetrics) ProviderCall(provider string, success bool, latency time.Duration) {}

// AgentExecution implements Metrics
func (NoOpMetrics) AgentExecution(agentID string, success bool, latency time.Duration) {}

type counter struct {
	Calls    int64
	Failures int64
	Latency  time.Duration // cumulative
}

// DefaultMetrics is a simple in-memory collector
type DefaultMetrics struct {
	mu        sync.Mutex
	providers map[string]*counter
	agents    map[string]*counter
}

// NewDefaultMetrics creates an empty collector
func NewDefaultMetrics() *DefaultMetrics {
	return &DefaultMetrics{
		providers: make(map[string]*counter),
		agents:    make(map[string]*counter),
	}
}

func record(m map[string]*counter, key string, success bool, latency time.Duration) {
	c, ok := m[key]
	if !ok {
		c = &counter{}
		m[key] = c
	}
	c.Calls++
	if !success {
		c.Failures++
	}
	c.Latency += latency
}

// ProviderCall implements Metrics
func (d *DefaultMetrics) ProviderCall(provider string, success bool, latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	record(d.providers, provider, success, latency)
}

// AgentExecution implements Metrics
func (d *DefaultMetrics) AgentExecution(agentID string, success bool, latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	record(d.agents, agentID, success, latency)
}

// Stats is a point-in-time view of one counter
type Stats struct {
	Calls    int64         `json:"calls"`
	Failures int64         `json:"failures"`
	Latency  time.Duration `json:"latency"`
}

// ProviderStats returns a snapshot of per-provider counters
func (d *DefaultMetrics) ProviderStats() map[string]Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]Stats, len(d.providers))
	for k, c := range d.providers {
		out[k] = Stats{Calls: c.Calls, Failures: c.Failures, Latency: c.Latency}
	}
	return out
}

// AgentStats returns a snapshot of per-agent counters
func (d *DefaultMetrics) AgentStats() map[string]Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]Stats, len(d.agents))
	for k, c := range d.agents {
		out[k] = Stats{Calls: c.Calls, Failures: c.Failures, Latency: c.Latency}
	}
	return out
}

var _ Metrics = (*NoOpMetrics)(nil)
var _ Metrics = (*DefaultMetrics)(nil)
