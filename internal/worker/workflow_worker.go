package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/service"
	"github.com/REZ0AN/TaskPilot/internal/workflow"
)

// Workflows groups the workflow functions bound to lifecycle events.
type Workflows struct {
	Enrichment *service.TicketEnrichmentWorkflow
	Signup     *service.SignupNotificationWorkflow
}

// StartWorkflowWorkers subscribes each workflow to its event. Handlers
// return the terminal run error so the dispatcher can log it; the run
// record already holds the outcome.
func StartWorkflowWorkers(dispatcher events.Dispatcher, engine *workflow.Engine, workflows Workflows, logger *zap.Logger) {
	if dispatcher == nil || engine == nil {
		return
	}

	if workflows.Enrichment != nil {
		dispatcher.Subscribe(events.EventTicketCreate, func(ctx context.Context, event events.Event) error {
			var payload events.TicketCreatePayload
			if err := event.Decode(&payload); err != nil {
				logger.Error("dropping malformed ticket.create event", zap.String("event_id", event.ID), zap.Error(err))
				return nil
			}
			return engine.Execute(ctx, service.EnrichmentDefinition, event.ID, func(ctx context.Context, run *workflow.Run) error {
				return workflows.Enrichment.Handle(ctx, run, payload)
			})
		})
	}

	if workflows.Signup != nil {
		dispatcher.Subscribe(events.EventUserSignup, func(ctx context.Context, event events.Event) error {
			var payload events.UserSignupPayload
			if err := event.Decode(&payload); err != nil {
				logger.Error("dropping malformed user.signup event", zap.String("event_id", event.ID), zap.Error(err))
				return nil
			}
			return engine.Execute(ctx, service.SignupDefinition, event.ID, func(ctx context.Context, run *workflow.Run) error {
				return workflows.Signup.Handle(ctx, run, payload)
			})
		})
	}
}
