package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/REZ0AN/TaskPilot/internal/domain"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	started        time.Time
	requestCount   map[string]int64
	requestLatency map[string]time.Duration
	errorCount     map[string]int64
	workflowRuns   map[string]int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	UptimeSeconds    int64            `json:"uptimeSeconds"`
	Requests         map[string]int64 `json:"requests"`
	AvgLatencyMillis map[string]int64 `json:"avgLatencyMillis"`
	Errors           map[string]int64 `json:"errors"`
	WorkflowRuns     map[string]int64 `json:"workflowRuns"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started:        time.Now(),
		requestCount:   make(map[string]int64),
		requestLatency: make(map[string]time.Duration),
		errorCount:     make(map[string]int64),
		workflowRuns:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatency[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordWorkflowRun counts terminal run outcomes per workflow function.
func (m *Metrics) RecordWorkflowRun(functionID string, status domain.WorkflowRunStatus) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflowRuns[functionID+"|"+string(status)]++
}

// Snapshot copies the counters. A nil Metrics yields empty maps.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{
			Requests:         map[string]int64{},
			AvgLatencyMillis: map[string]int64{},
			Errors:           map[string]int64{},
			WorkflowRuns:     map[string]int64{},
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds:    int64(time.Since(m.started).Seconds()),
		Requests:         make(map[string]int64, len(m.requestCount)),
		AvgLatencyMillis: make(map[string]int64, len(m.requestCount)),
		Errors:           make(map[string]int64, len(m.errorCount)),
		WorkflowRuns:     make(map[string]int64, len(m.workflowRuns)),
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		snap.AvgLatencyMillis[k] = (m.requestLatency[k] / time.Duration(v)).Milliseconds()
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.workflowRuns {
		snap.WorkflowRuns[k] = v
	}
	return snap
}
