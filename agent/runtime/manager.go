// Package runtime owns agent registration, lazy instantiation, concurrent
// dispatch with a bounded timeout, and per-agent metrics. Failures never
// escape Execute as errors; callers always receive a well-formed Output.
package runtime

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amuslera/bluelabel-aios/agent"
	"github.com/amuslera/bluelabel-aios/observability"
)

// DefaultExecuteTimeout bounds one Execute call unless configured otherwise
const DefaultExecuteTimeout = 300 * time.Second

// registration is an agent class known to the manager but possibly not yet
// instantiated
type registration struct {
	factory agent.Factory
	config  map[string]interface{}
}

// Info is a read-only snapshot of one agent's state
type Info struct {
	AgentID      string              `json:"agent_id"`
	Instantiated bool                `json:"instantiated"`
	Capabilities *agent.Capabilities `json:"capabilities,omitempty"`
}

// Snapshot aggregates runtime-wide metrics
type Snapshot struct {
	TotalRegistered   int                `json:"total_registered"`
	TotalInstantiated int                `json:"total_instantiated"`
	Agents            map[string]Metrics `json:"agents"`
}

// Manager is the agent runtime. Registration and metrics mutation serialize
// under one lock; Process calls run outside it so executions proceed
// concurrently.
type Manager struct {
	mu            sync.Mutex
	registrations map[string]registration
	instances     map[string]agent.Agent
	builds        map[string]*build
	metrics       map[string]*Metrics

	timeout time.Duration
	logger  *log.Logger
	sink    observability.Metrics
	tracer  observability.Tracer
}

// Option configures a Manager at construction time
type Option func(*Manager)

// WithTimeout overrides the per-execution deadline
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger for lifecycle and failure events
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics sink that records execution outcomes
func WithMetrics(sink observability.Metrics) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithTracer sets the tracer that spans each execution
func WithTracer(t observability.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// NewManager creates an empty runtime manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registrations: make(map[string]registration),
		instances:     make(map[string]agent.Agent),
		builds:        make(map[string]*build),
		metrics:       make(map[string]*Metrics),
		timeout:       DefaultExecuteTimeout,
		logger:        log.Default(),
		sink:          observability.NoOpMetrics{},
		tracer:        &observability.NoOpTracer{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register records an agent factory under agentID. It reports failure as a
// boolean and never panics: a nil factory, empty ID, or duplicate
// registration all return false.
func (m *Manager) Register(agentID string, factory agent.Factory, config map[string]interface{}) bool {
	if agentID == "" || factory == nil {
		m.logger.Printf("runtime: rejected registration for %q: invalid descriptor", agentID)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.registrations[agentID]; exists {
		m.logger.Printf("runtime: rejected duplicate registration for %q", agentID)
		return false
	}
	m.registrations[agentID] = registration{factory: factory, config: config}
	return true
}

// CreateInstance eagerly instantiates a registered agent. It is a no-op when
// the instance already exists and returns false for unknown IDs or when the
// factory or Initialize hook fails.
func (m *Manager) CreateInstance(ctx context.Context, agentID string) bool {
	_, ok := m.instance(ctx, agentID)
	return ok
}

// build tracks one in-flight instantiation so racing callers wait for it
// instead of constructing spares
type build struct {
	done chan struct{}
	inst agent.Agent
	ok   bool
}

// instance returns the cached instance, building it on first use. The
// factory and Initialize hook run exactly once per successful instantiation;
// callers that arrive during a build block until it finishes.
func (m *Manager) instance(ctx context.Context, agentID string) (agent.Agent, bool) {
	m.mu.Lock()
	if inst, ok := m.instances[agentID]; ok {
		m.mu.Unlock()
		return inst, true
	}
	if b, ok := m.builds[agentID]; ok {
		m.mu.Unlock()
		<-b.done
		return b.inst, b.ok
	}
	reg, registered := m.registrations[agentID]
	if !registered {
		m.mu.Unlock()
		return nil, false
	}
	b := &build{done: make(chan struct{})}
	m.builds[agentID] = b
	m.mu.Unlock()

	// Factory and Initialize run outside the lock; they may be slow.
	inst, err := reg.factory(reg.config)
	if err != nil || inst == nil {
		m.logger.Printf("runtime: factory for %q failed: %v", agentID, err)
		inst = nil
	} else if init, ok := inst.(agent.Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			m.logger.Printf("runtime: initialize %q failed: %v", agentID, err)
			inst = nil
		}
	}

	m.mu.Lock()
	delete(m.builds, agentID)
	if inst != nil {
		m.instances[agentID] = inst
	}
	m.mu.Unlock()

	b.inst = inst
	b.ok = inst != nil
	close(b.done)
	return inst, b.ok
}

type processResult struct {
	out agent.Output
	err error
}

// Execute runs one agent on one input under the manager's deadline. On
// timeout the in-flight Process call is abandoned and its late completion
// discarded. Every outcome is recorded into the agent's metrics.
func (m *Manager) Execute(ctx context.Context, agentID string, in agent.Input) agent.Output {
	start := time.Now()
	execID := uuid.NewString()

	span, ctx := m.tracer.StartSpan(ctx, "agent.execute")
	span.SetAttribute(observability.AttrAgentID, agentID)
	span.SetAttribute(observability.AttrExecutionID, execID)
	defer span.End()

	inst, ok := m.instance(ctx, agentID)
	if !ok {
		out := agent.ErrorOutput(fmt.Sprintf("agent %q is not registered", agentID))
		span.SetStatus(observability.StatusCodeError, out.Error)
		m.record(agentID, time.Since(start), out)
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan processResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- processResult{err: fmt.Errorf("agent panicked: %v", rec)}
			}
		}()
		out, err := inst.Process(ctx, in)
		done <- processResult{out: out, err: err}
	}()

	var out agent.Output
	select {
	case r := <-done:
		if r.err != nil {
			m.logger.Printf("runtime: execution %s of %q failed: %v", execID, agentID, r.err)
			out = agent.ErrorOutput(r.err.Error())
		} else {
			out = r.out
		}
	case <-ctx.Done():
		m.logger.Printf("runtime: execution %s of %q timed out after %s", execID, agentID, m.timeout)
		out = agent.ErrorOutput(fmt.Sprintf("execution timed out after %s", m.timeout))
	}

	if out.Status == agent.StatusSuccess {
		span.SetStatus(observability.StatusCodeOk, "")
	} else {
		span.SetStatus(observability.StatusCodeError, out.Error)
	}
	m.record(agentID, time.Since(start), out)
	return out
}

// record folds one outcome into the agent's metrics under the manager lock
func (m *Manager) record(agentID string, elapsed time.Duration, out agent.Output) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.metrics[agentID]
	if !ok {
		metrics = &Metrics{AgentID: agentID}
		m.metrics[agentID] = metrics
	}

	errMsg := ""
	if out.Status != agent.StatusSuccess {
		errMsg = out.Error
		if errMsg == "" {
			errMsg = "unspecified failure"
		}
	}
	metrics.record(elapsed, errMsg)
	m.sink.AgentExecution(agentID, errMsg == "", elapsed)
}

// AgentInfo returns a read-only snapshot for one agent
func (m *Manager) AgentInfo(agentID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registrations[agentID]; !ok {
		return Info{}, false
	}
	info := Info{AgentID: agentID}
	if inst, ok := m.instances[agentID]; ok {
		info.Instantiated = true
		caps := inst.Capabilities()
		info.Capabilities = &caps
	}
	return info, true
}

// ListAgents returns snapshots for every registered agent
func (m *Manager) ListAgents() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, 0, len(m.registrations))
	for agentID := range m.registrations {
		info := Info{AgentID: agentID}
		if inst, ok := m.instances[agentID]; ok {
			info.Instantiated = true
			caps := inst.Capabilities()
			info.Capabilities = &caps
		}
		out = append(out, info)
	}
	return out
}

// MetricsSnapshot returns the aggregate runtime metrics
func (m *Manager) MetricsSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		TotalRegistered:   len(m.registrations),
		TotalInstantiated: len(m.instances),
		Agents:            make(map[string]Metrics, len(m.metrics)),
	}
	for id, metrics := range m.metrics {
		snap.Agents[id] = metrics.snapshot()
	}
	return snap
}

// Shutdown runs the optional Shutdown hook on every instantiated agent, then
// clears all registrations, instances, and metrics. One agent's failing hook
// does not block the rest.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	instances := make(map[string]agent.Agent, len(m.instances))
	for id, inst := range m.instances {
		instances[id] = inst
	}
	m.mu.Unlock()

	for id, inst := range instances {
		if stopper, ok := inst.(agent.Shutdowner); ok {
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						m.logger.Printf("runtime: shutdown of %q panicked: %v", id, rec)
					}
				}()
				if err := stopper.Shutdown(ctx); err != nil {
					m.logger.Printf("runtime: shutdown of %q failed: %v", id, err)
				}
			}()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = make(map[string]registration)
	m.instances = make(map[string]agent.Agent)
	m.builds = make(map[string]*build)
	m.metrics = make(map[string]*Metrics)
}
