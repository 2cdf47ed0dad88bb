package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/domain"
)

// Definition names a workflow function and how many times a failed run is
// retried after the first attempt.
type Definition struct {
	ID      string
	Retries int
}

// Handler is the body of a workflow function. It is invoked once per
// attempt; work wrapped in Step survives across attempts.
type Handler func(ctx context.Context, run *Run) error

// RunRecorder persists run outcomes.
type RunRecorder interface {
	GetRun(ctx context.Context, id string) (*domain.WorkflowRun, error)
	SaveRun(ctx context.Context, run *domain.WorkflowRun) error
}

// Observer receives run outcomes, e.g. for metrics.
type Observer interface {
	RecordWorkflowRun(functionID string, status domain.WorkflowRunStatus)
}

// Engine executes workflow functions with step memoization and a bounded
// retry budget.
type Engine struct {
	steps    StepStore
	runs     RunRecorder
	logger   *zap.Logger
	backoff  time.Duration
	observer Observer
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithBackoff sets the base delay between attempts. Attempt n waits n*d.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) { e.backoff = d }
}

// WithObserver reports run outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock overrides the time source used for run records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine.
func NewEngine(steps StepStore, runs RunRecorder, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		steps:   steps,
		runs:    runs,
		logger:  logger,
		backoff: time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunID is the identity under which steps of def are memoized for eventID.
func RunID(def Definition, eventID string) string {
	return def.ID + ":" + eventID
}

// Execute runs handler for the event until it succeeds, fails with a
// non-retriable error, or exhausts 1+def.Retries attempts. A run already
// recorded as finished is not executed again. The terminal error is recorded
// against the run and returned.
func (e *Engine) Execute(ctx context.Context, def Definition, eventID string, handler Handler) error {
	runID := RunID(def, eventID)
	logger := e.logger.With(
		zap.String("run_id", runID),
		zap.String("function", def.ID),
		zap.String("event_id", eventID))

	record, err := e.runs.GetRun(ctx, runID)
	switch {
	case err == nil && record.Status != domain.WorkflowRunRunning:
		logger.Info("run already finished; skipping redelivery", zap.String("status", string(record.Status)))
		return nil
	case err == nil:
		logger.Info("resuming interrupted run", zap.Int("previous_attempts", record.Attempts))
	case errors.Is(err, pgx.ErrNoRows):
		record = &domain.WorkflowRun{
			ID:         runID,
			FunctionID: def.ID,
			EventID:    eventID,
			StartedAt:  e.now(),
		}
	default:
		return err
	}
	record.Status = domain.WorkflowRunRunning

	attempts := def.Retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		record.Attempts++
		e.save(ctx, logger, record)

		run := &Run{
			ID:         runID,
			FunctionID: def.ID,
			EventID:    eventID,
			Attempt:    attempt,
			steps:      e.steps,
			logger:     logger,
		}
		lastErr = handler(ctx, run)
		if lastErr == nil {
			e.finish(ctx, logger, def, record, domain.WorkflowRunCompleted, nil)
			logger.Info("workflow run completed", zap.Int("attempt", attempt))
			return nil
		}
		if IsNonRetriable(lastErr) {
			logger.Warn("workflow run failed permanently", zap.Int("attempt", attempt), zap.Error(lastErr))
			break
		}
		if ctx.Err() != nil {
			// Left as running so a redelivery resumes it.
			return ctx.Err()
		}
		if attempt < attempts {
			logger.Warn("workflow attempt failed; retrying", zap.Int("attempt", attempt), zap.Error(lastErr))
			if err := sleep(ctx, e.backoff*time.Duration(attempt)); err != nil {
				return err
			}
		}
	}

	e.finish(ctx, logger, def, record, domain.WorkflowRunFailed, lastErr)
	logger.Error("workflow run failed", zap.Int("attempts", record.Attempts), zap.Error(lastErr))
	return lastErr
}

func (e *Engine) finish(ctx context.Context, logger *zap.Logger, def Definition, record *domain.WorkflowRun, status domain.WorkflowRunStatus, cause error) {
	finished := e.now()
	record.Status = status
	record.FinishedAt = &finished
	if cause != nil {
		record.LastError = cause.Error()
	}
	e.save(ctx, logger, record)
	if e.observer != nil {
		e.observer.RecordWorkflowRun(def.ID, status)
	}
}

func (e *Engine) save(ctx context.Context, logger *zap.Logger, record *domain.WorkflowRun) {
	if err := e.runs.SaveRun(ctx, record); err != nil {
		logger.Warn("unable to record workflow run", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
