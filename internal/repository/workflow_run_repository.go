package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/REZ0AN/TaskPilot/internal/domain"
)

// WorkflowRunRepository stores the outcome of workflow runs.
type WorkflowRunRepository interface {
	GetRun(ctx context.Context, id string) (*domain.WorkflowRun, error)
	SaveRun(ctx context.Context, run *domain.WorkflowRun) error
}

type workflowRunRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRunRepository returns a Postgres-backed implementation.
func NewWorkflowRunRepository(pool *pgxpool.Pool) WorkflowRunRepository {
	return &workflowRunRepository{pool: pool}
}

func (r *workflowRunRepository) GetRun(ctx context.Context, id string) (*domain.WorkflowRun, error) {
	const query = `
        SELECT id, function_id, event_id, status, attempts, last_error, started_at, finished_at
        FROM workflow_runs WHERE id=$1`

	var run domain.WorkflowRun
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.FunctionID,
		&run.EventID,
		&run.Status,
		&run.Attempts,
		&run.LastError,
		&run.StartedAt,
		&run.FinishedAt,
	); err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *workflowRunRepository) SaveRun(ctx context.Context, run *domain.WorkflowRun) error {
	const query = `
        INSERT INTO workflow_runs (id, function_id, event_id, status, attempts, last_error, started_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET
            status=EXCLUDED.status,
            attempts=EXCLUDED.attempts,
            last_error=EXCLUDED.last_error,
            finished_at=EXCLUDED.finished_at`

	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.FunctionID,
		run.EventID,
		run.Status,
		run.Attempts,
		run.LastError,
		run.StartedAt,
		run.FinishedAt,
	)
	return err
}
