package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

const (
	defaultTicketListLimit = 50
	maxTicketListLimit     = 100
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   domain.UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.UserRoleAdmin
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets   repository.TicketRepository
	users     repository.UserRepository
	resolver  *AssignmentResolver
	publisher eventPublisher
	logger    *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Resolver   *AssignmentResolver
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// TicketListInput holds raw list parameters as received from the caller.
type TicketListInput struct {
	State     string
	Priority  string
	SortBy    string
	SortOrder string
	Limit     int
}

// TicketUpdateInput describes a partial ticket update. Nil fields are left
// untouched.
type TicketUpdateInput struct {
	State         *string
	Priority      *string
	AssignedTo    *string
	RelatedSkills []string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = NewAssignmentResolver(AssignmentDependencies{
			TicketRepo: deps.TicketRepo,
			UserRepo:   deps.UserRepo,
			Logger:     logger,
		})
	}
	return &TicketService{
		tickets:   deps.TicketRepo,
		users:     deps.UserRepo,
		resolver:  resolver,
		publisher: newEventPublisher(deps.Dispatcher, logger),
		logger:    logger,
	}
}

// CreateTicket stores a new ticket in Ready For Work and announces it.
// Enrichment runs later; a publication failure does not fail creation.
func (s *TicketService) CreateTicket(ctx context.Context, actor Actor, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}

	ticket := &domain.Ticket{
		Title:         title,
		Description:   description,
		State:         domain.TicketStateReadyForWork,
		CreatedBy:     actor.UserID,
		RelatedSkills: []string{},
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, events.EventTicketCreate, events.TicketCreatePayload{TicketID: ticket.ID})
	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("created_by", actor.UserID))
	return ticket, nil
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, err
}

// ListTickets validates the raw filter and returns matching tickets.
func (s *TicketService) ListTickets(ctx context.Context, input TicketListInput) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		SortBy: repository.SortByCreatedAt,
		Limit:  defaultTicketListLimit,
	}

	if input.State != "" {
		state, ok := domain.ParseTicketState(input.State)
		if !ok {
			return nil, apperrors.NewValidationError("invalid state filter", map[string]any{"allowed": domain.TicketStates})
		}
		filter.State = &state
	}
	if input.Priority != "" {
		priority := domain.TicketPriority(input.Priority)
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority filter", map[string]any{"allowed": domain.TicketPriorities})
		}
		filter.Priority = &priority
	}
	if input.SortBy != "" {
		field := repository.TicketSortField(input.SortBy)
		if !field.Valid() {
			return nil, apperrors.NewValidationError("invalid sortBy", map[string]any{"sortBy": input.SortBy})
		}
		filter.SortBy = field
	}
	switch strings.ToLower(input.SortOrder) {
	case "", "desc":
	case "asc":
		filter.SortAsc = true
	default:
		return nil, apperrors.NewValidationError("sortOrder must be asc or desc", nil)
	}
	if input.Limit < 0 || input.Limit > maxTicketListLimit {
		return nil, apperrors.NewValidationError("limit out of range", map[string]any{"max": maxTicketListLimit})
	}
	if input.Limit > 0 {
		filter.Limit = input.Limit
	}

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// UpdateTicket applies a partial update on behalf of actor. Admins, the
// creator and the current assignee may update. A state change runs the
// transition's side effect unless an explicit assignee is supplied too, in
// which case that assignee is written and the resolver is skipped.
func (s *TicketService) UpdateTicket(ctx context.Context, actor Actor, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, ticket) {
		return nil, apperrors.NewForbidden("only an admin, the creator or the assignee may update this ticket")
	}

	var update repository.TicketUpdate

	if input.RelatedSkills != nil {
		skills, err := normalizeSkills(input.RelatedSkills)
		if err != nil {
			return nil, err
		}
		update.RelatedSkills = skills
		ticket.RelatedSkills = skills
	}

	if input.Priority != nil {
		priority := domain.TicketPriority(strings.TrimSpace(*input.Priority))
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"allowed": domain.TicketPriorities})
		}
		update.Priority = &priority
	}

	if input.AssignedTo != nil {
		assignee := strings.TrimSpace(*input.AssignedTo)
		if assignee == "" {
			return nil, apperrors.NewValidationError("assignedTo must not be empty", nil)
		}
		if _, err := s.users.GetByID(ctx, assignee); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("assignee does not exist", map[string]any{"assignedTo": assignee})
			}
			return nil, err
		}
		update.AssignedTo = &assignee
	}

	if input.State != nil {
		requested, ok := domain.ParseTicketState(*input.State)
		if !ok {
			return nil, apperrors.NewValidationError("invalid ticket state", map[string]any{"allowed": domain.TicketStates})
		}
		if update.AssignedTo != nil {
			state := persistedState(requested)
			update.State = &state
		} else {
			effect, err := s.ApplyStateChange(ctx, ticket, requested)
			if err != nil {
				return nil, err
			}
			update.State = effect.State
			update.AssignedTo = effect.AssignedTo
		}
	}

	if update.Empty() {
		return nil, apperrors.NewValidationError("no updatable fields supplied", nil)
	}

	updated, err := s.tickets.Update(ctx, id, update)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket updated",
		zap.String("ticket_id", id),
		zap.String("actor", actor.UserID),
		zap.String("state", string(updated.State)))
	return updated, nil
}

// DeleteTicket removes a ticket.
func (s *TicketService) DeleteTicket(ctx context.Context, id string) error {
	err := s.tickets.Delete(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return err
}

func canModify(actor Actor, ticket *domain.Ticket) bool {
	if actor.IsAdmin() || ticket.CreatedBy == actor.UserID {
		return true
	}
	return ticket.AssignedTo != nil && *ticket.AssignedTo == actor.UserID
}

func normalizeSkills(raw []string) ([]string, error) {
	skills := make([]string, 0, len(raw))
	for _, skill := range raw {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			return nil, apperrors.NewValidationError("skills must be non-empty strings", nil)
		}
		skills = append(skills, skill)
	}
	return skills, nil
}
