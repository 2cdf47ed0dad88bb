package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/REZ0AN/TaskPilot/internal/domain"
)

func TestMetricsSnapshot(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.RecordRequest("/api/v1/tickets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/v1/tickets", "GET", 200, 30*time.Millisecond)
	m.RecordError("/api/v1/tickets", "POST", "VALIDATION_FAILED")
	m.RecordWorkflowRun("on-ticket-creation", domain.WorkflowRunCompleted)
	m.RecordWorkflowRun("on-ticket-creation", domain.WorkflowRunFailed)
	m.RecordWorkflowRun("on-ticket-creation", domain.WorkflowRunCompleted)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/v1/tickets|GET|200"])
	assert.Equal(t, int64(20), snap.AvgLatencyMillis["/api/v1/tickets|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/v1/tickets|POST|VALIDATION_FAILED"])
	assert.Equal(t, int64(2), snap.WorkflowRuns["on-ticket-creation|completed"])
	assert.Equal(t, int64(1), snap.WorkflowRuns["on-ticket-creation|failed"])
}

func TestNilMetricsIgnoresRecords(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordWorkflowRun("f", domain.WorkflowRunCompleted)
	})
}

func TestNilMetricsSnapshotIsEmpty(t *testing.T) {
	t.Parallel()

	var m *Metrics
	var snap Snapshot
	assert.NotPanics(t, func() { snap = m.Snapshot() })
	assert.Empty(t, snap.Requests)
	assert.NotNil(t, snap.WorkflowRuns)
}
