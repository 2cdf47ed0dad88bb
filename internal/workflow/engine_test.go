package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/repository"
)

type outcomeCounter struct {
	outcomes map[domain.WorkflowRunStatus]int
}

func (c *outcomeCounter) RecordWorkflowRun(_ string, status domain.WorkflowRunStatus) {
	c.outcomes[status]++
}

func newTestEngine(t *testing.T) (*Engine, *repository.MemoryStore, *outcomeCounter) {
	t.Helper()
	store := repository.NewMemoryStore()
	counter := &outcomeCounter{outcomes: map[domain.WorkflowRunStatus]int{}}
	engine := NewEngine(NewMemoryStepStore(), store.Runs(), zap.NewNop(),
		WithBackoff(0), WithObserver(counter))
	return engine, store, counter
}

func TestExecuteMemoizesStepsAcrossAttempts(t *testing.T) {
	t.Parallel()

	engine, store, counter := newTestEngine(t)
	def := Definition{ID: "memo", Retries: 2}

	fetches, flaky := 0, 0
	err := engine.Execute(context.Background(), def, "evt-1", func(ctx context.Context, run *Run) error {
		value, err := Step(ctx, run, "fetch", func(context.Context) (string, error) {
			fetches++
			return "payload", nil
		})
		if err != nil {
			return err
		}
		_, err = Step(ctx, run, "flaky", func(context.Context) (int, error) {
			flaky++
			if flaky < 3 {
				return 0, errors.New("timeout")
			}
			return len(value), nil
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fetches, "completed step must not run again on retry")
	assert.Equal(t, 3, flaky)

	record, err := store.Runs().GetRun(context.Background(), RunID(def, "evt-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowRunCompleted, record.Status)
	assert.Equal(t, 3, record.Attempts)
	assert.Equal(t, 1, counter.outcomes[domain.WorkflowRunCompleted])
}

func TestExecuteStopsOnNonRetriable(t *testing.T) {
	t.Parallel()

	engine, store, counter := newTestEngine(t)
	def := Definition{ID: "fatal", Retries: 2}

	calls := 0
	err := engine.Execute(context.Background(), def, "evt-2", func(context.Context, *Run) error {
		calls++
		return NonRetriable(errors.New("ticket not found"))
	})
	require.Error(t, err)
	assert.True(t, IsNonRetriable(err))
	assert.Equal(t, 1, calls)

	record, err := store.Runs().GetRun(context.Background(), RunID(def, "evt-2"))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowRunFailed, record.Status)
	assert.Equal(t, "ticket not found", record.LastError)
	assert.Equal(t, 1, counter.outcomes[domain.WorkflowRunFailed])
}

func TestExecuteExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	engine, _, _ := newTestEngine(t)

	calls := 0
	err := engine.Execute(context.Background(), Definition{ID: "flaky", Retries: 2}, "evt-3", func(context.Context, *Run) error {
		calls++
		return errors.New("upstream unavailable")
	})
	require.EqualError(t, err, "upstream unavailable")
	assert.Equal(t, 3, calls, "one attempt plus two retries")
}

func TestExecuteSkipsFinishedRunOnRedelivery(t *testing.T) {
	t.Parallel()

	engine, _, _ := newTestEngine(t)
	def := Definition{ID: "once", Retries: 2}

	calls := 0
	handler := func(context.Context, *Run) error {
		calls++
		return nil
	}
	require.NoError(t, engine.Execute(context.Background(), def, "evt-4", handler))
	require.NoError(t, engine.Execute(context.Background(), def, "evt-4", handler))
	assert.Equal(t, 1, calls)

	require.NoError(t, engine.Execute(context.Background(), def, "evt-5", handler))
	assert.Equal(t, 2, calls, "a different event is a different run")
}

func TestExecuteResumesInterruptedRun(t *testing.T) {
	t.Parallel()

	steps := NewMemoryStepStore()
	store := repository.NewMemoryStore()
	engine := NewEngine(steps, store.Runs(), zap.NewNop(), WithBackoff(0))
	def := Definition{ID: "resume", Retries: 0}

	ctx, cancel := context.WithCancel(context.Background())
	writes := 0
	err := engine.Execute(ctx, def, "evt-6", func(ctx context.Context, run *Run) error {
		if _, err := Step(ctx, run, "write", func(context.Context) (bool, error) {
			writes++
			return true, nil
		}); err != nil {
			return err
		}
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)

	record, err := store.Runs().GetRun(context.Background(), RunID(def, "evt-6"))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowRunRunning, record.Status)

	err = engine.Execute(context.Background(), def, "evt-6", func(ctx context.Context, run *Run) error {
		_, err := Step(ctx, run, "write", func(context.Context) (bool, error) {
			writes++
			return true, nil
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, writes)
}

func TestNonRetriableUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NonRetriable(cause)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, NonRetriable(nil))
	assert.False(t, IsNonRetriable(cause))
}
