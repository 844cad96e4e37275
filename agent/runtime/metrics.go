package runtime

import (
	"time"
)

// recentErrorCap bounds the per-agent error ring
const recentErrorCap = 10

// Metrics accumulates execution statistics for one agent. All mutation
// happens under the manager's lock; Snapshot returns an independent copy.
type Metrics struct {
	AgentID              string        `json:"agent_id"`
	TotalExecutions      int64         `json:"total_executions"`
	SuccessfulExecutions int64         `json:"successful_executions"`
	FailedExecutions     int64         `json:"failed_executions"`
	AvgExecutionTime     time.Duration `json:"avg_execution_time"`
	LastExecution        time.Time     `json:"last_execution"`
	RecentErrors         []string      `json:"recent_errors,omitempty"`
}

// record folds one execution outcome into the metrics. The running mean uses
// Welford's increment so no execution history is retained.
func (m *Metrics) record(elapsed time.Duration, errMsg string) {
	m.TotalExecutions++
	if errMsg == "" {
		m.SuccessfulExecutions++
	} else {
		m.FailedExecutions++
		m.RecentErrors = append(m.RecentErrors, errMsg)
		if len(m.RecentErrors) > recentErrorCap {
			m.RecentErrors = m.RecentErrors[len(m.RecentErrors)-recentErrorCap:]
		}
	}
	m.AvgExecutionTime += (elapsed - m.AvgExecutionTime) / time.Duration(m.TotalExecutions)
	m.LastExecution = time.Now()
}

// snapshot returns a copy safe to hand outside the lock
func (m *Metrics) snapshot() Metrics {
	out := *m
	out.RecentErrors = append([]string(nil), m.RecentErrors...)
	return out
}
