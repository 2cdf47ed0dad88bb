package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/enrichment"
	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	"github.com/REZ0AN/TaskPilot/internal/workflow"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

// EnrichmentDefinition identifies the ticket enrichment workflow.
var EnrichmentDefinition = workflow.Definition{ID: "on-ticket-creation", Retries: 2}

// TicketEnrichmentWorkflow triages a freshly created ticket: it asks the
// generator for priority, deadline, notes and skills, picks an assignee and
// writes everything in one update.
type TicketEnrichmentWorkflow struct {
	tickets   repository.TicketRepository
	generator enrichment.Generator
	resolver  *AssignmentResolver
	logger    *zap.Logger
	now       func() time.Time
}

// EnrichmentDependencies bundles collaborators for the enrichment workflow.
type EnrichmentDependencies struct {
	TicketRepo repository.TicketRepository
	Generator  enrichment.Generator
	Resolver   *AssignmentResolver
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewTicketEnrichmentWorkflow builds the workflow.
func NewTicketEnrichmentWorkflow(deps EnrichmentDependencies) *TicketEnrichmentWorkflow {
	w := &TicketEnrichmentWorkflow{
		tickets:   deps.TicketRepo,
		generator: deps.Generator,
		resolver:  deps.Resolver,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// ticketSnapshot is what later steps need from the fetched ticket.
type ticketSnapshot struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Handle runs one attempt. Steps that already succeeded for run are
// replayed from the step store.
func (w *TicketEnrichmentWorkflow) Handle(ctx context.Context, run *workflow.Run, payload events.TicketCreatePayload) error {
	ticket, err := workflow.Step(ctx, run, "fetch-ticket", func(ctx context.Context) (ticketSnapshot, error) {
		return w.fetchTicket(ctx, payload.TicketID)
	})
	if err != nil {
		return err
	}

	result, err := workflow.Step(ctx, run, "analyze-ticket", func(ctx context.Context) (enrichment.Result, error) {
		return w.analyze(ctx, ticket)
	})
	if err != nil {
		return err
	}

	plan, err := workflow.Step(ctx, run, "resolve-assignee", func(ctx context.Context) (enrichmentPlan, error) {
		return w.plan(ctx, ticket.ID, result)
	})
	if err != nil {
		return err
	}

	if _, err := workflow.Step(ctx, run, "assign-and-update", func(ctx context.Context) (bool, error) {
		return true, w.write(ctx, ticket.ID, plan)
	}); err != nil {
		return err
	}

	w.logger.Info("ticket enriched",
		zap.String("run_id", run.ID),
		zap.String("ticket_id", ticket.ID),
		zap.String("assigned_to", plan.AssigneeID))
	return nil
}

func (w *TicketEnrichmentWorkflow) fetchTicket(ctx context.Context, id string) (ticketSnapshot, error) {
	if id == "" {
		return ticketSnapshot{}, workflow.NonRetriable(apperrors.NewValidationError("ticket id missing from event", nil))
	}
	ticket, err := w.tickets.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ticketSnapshot{}, workflow.NonRetriable(apperrors.NewNotFound("ticket", map[string]any{"id": id}))
	}
	if err != nil {
		return ticketSnapshot{}, err
	}
	return ticketSnapshot{ID: ticket.ID, Title: ticket.Title, Description: ticket.Description}, nil
}

// analyze never fails on bad generator output; it returns the empty Result
// and leaves the decision to the next step.
func (w *TicketEnrichmentWorkflow) analyze(ctx context.Context, ticket ticketSnapshot) (enrichment.Result, error) {
	raw, err := w.generator.Generate(ctx, enrichment.Request{
		Title:       ticket.Title,
		Description: ticket.Description,
		CurrentDate: w.now().UTC(),
	})
	if errors.Is(err, enrichment.ErrNotConfigured) {
		return enrichment.Result{}, workflow.NonRetriable(err)
	}
	if err != nil {
		return enrichment.Result{}, err
	}

	result := enrichment.Parse(raw)
	if result.Empty() {
		w.logger.Warn("generator output unusable", zap.String("ticket_id", ticket.ID), zap.Int("length", len(raw)))
	}
	return result, nil
}

// enrichmentPlan is every value the final write sets. It is memoized before
// the write so a replayed write repeats the same values.
type enrichmentPlan struct {
	AssigneeID    string                `json:"assigneeId"`
	Priority      domain.TicketPriority `json:"priority"`
	Deadline      *time.Time            `json:"deadline,omitempty"`
	HelpNotes     string                `json:"helpNotes"`
	RelatedSkills []string              `json:"relatedSkills"`
}

func (w *TicketEnrichmentWorkflow) plan(ctx context.Context, ticketID string, result enrichment.Result) (enrichmentPlan, error) {
	if result.Empty() {
		return enrichmentPlan{}, workflow.NonRetriable(apperrors.NewEnrichmentFailed(map[string]any{"ticketId": ticketID}))
	}

	deadline := result.Deadline
	if deadline != nil && !deadline.After(w.now()) {
		w.logger.Info("dropping deadline that is not in the future",
			zap.String("ticket_id", ticketID),
			zap.Time("deadline", *deadline))
		deadline = nil
	}
	skills := result.RelatedSkills
	if skills == nil {
		skills = []string{}
	}

	assignee, err := w.resolver.Resolve(ctx, InProgressPolicy, skills)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeResolutionExhausted) || apperrors.HasCode(err, apperrors.CodeValidationFailed) {
			return enrichmentPlan{}, workflow.NonRetriable(err)
		}
		return enrichmentPlan{}, err
	}

	return enrichmentPlan{
		AssigneeID:    assignee.ID,
		Priority:      domain.NormalizePriority(result.Priority),
		Deadline:      deadline,
		HelpNotes:     result.HelpNotes,
		RelatedSkills: skills,
	}, nil
}

func (w *TicketEnrichmentWorkflow) write(ctx context.Context, ticketID string, plan enrichmentPlan) error {
	state := domain.TicketStateInProgress
	skills := plan.RelatedSkills
	if skills == nil {
		skills = []string{}
	}
	_, err := w.tickets.Update(ctx, ticketID, repository.TicketUpdate{
		State:         &state,
		AssignedTo:    &plan.AssigneeID,
		Priority:      &plan.Priority,
		Deadline:      plan.Deadline,
		HelpNotes:     &plan.HelpNotes,
		RelatedSkills: skills,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return workflow.NonRetriable(apperrors.NewNotFound("ticket", map[string]any{"id": ticketID}))
	}
	return err
}
