package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Run is one execution of a workflow function for one event. The same Run
// ID is reused across attempts and redeliveries, which is what lets Step
// skip work that already succeeded.
type Run struct {
	ID         string
	FunctionID string
	EventID    string
	Attempt    int

	steps  StepStore
	logger *zap.Logger
}

// Step runs fn once per run. A successful result is stored under
// (run.ID, name) and returned from the store on every later call, so fn is
// never executed again for the same run. Errors are not stored.
//
// T must survive a JSON round trip.
func Step[T any](ctx context.Context, run *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T

	payload, found, err := run.steps.LoadStep(ctx, run.ID, name)
	if err != nil {
		return out, fmt.Errorf("load step %q: %w", name, err)
	}
	if found {
		if err := json.Unmarshal(payload, &out); err != nil {
			return out, fmt.Errorf("decode step %q: %w", name, err)
		}
		run.logger.Debug("step replayed from cache",
			zap.String("run_id", run.ID),
			zap.String("step", name))
		return out, nil
	}

	out, err = fn(ctx)
	if err != nil {
		return out, err
	}

	payload, err = json.Marshal(out)
	if err != nil {
		return out, fmt.Errorf("encode step %q: %w", name, err)
	}
	if err := run.steps.SaveStep(ctx, run.ID, name, payload); err != nil {
		return out, fmt.Errorf("save step %q: %w", name, err)
	}
	run.logger.Debug("step completed",
		zap.String("run_id", run.ID),
		zap.String("step", name),
		zap.Int("attempt", run.Attempt))
	return out, nil
}
