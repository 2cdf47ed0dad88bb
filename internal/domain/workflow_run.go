package domain

import "time"

// WorkflowRunStatus tracks the outcome of one workflow run.
type WorkflowRunStatus string

const (
	WorkflowRunRunning   WorkflowRunStatus = "running"
	WorkflowRunCompleted WorkflowRunStatus = "completed"
	WorkflowRunFailed    WorkflowRunStatus = "failed"
)

// WorkflowRun records one execution of a workflow function for one event.
type WorkflowRun struct {
	ID         string
	FunctionID string
	EventID    string
	Status     WorkflowRunStatus
	Attempts   int
	LastError  string
	StartedAt  time.Time
	FinishedAt *time.Time
}
