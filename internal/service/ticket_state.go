package service

import (
	"context"

	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

// stateEffect is what moving a ticket into a state does besides setting it.
type stateEffect struct {
	// persistAs replaces the requested state when non-empty.
	persistAs domain.TicketState
	// returnToCreator hands the ticket back to whoever reported it.
	returnToCreator bool
	// policy, when set, picks a new assignee through the resolver.
	policy *AssignmentPolicy
}

// stateEffects is keyed by the requested state only. The current state is
// never consulted, so any state may move to any other.
var stateEffects = map[domain.TicketState]stateEffect{
	domain.TicketStateReadyForWork: {returnToCreator: true},
	domain.TicketStateInProgress:   {policy: &InProgressPolicy},
	domain.TicketStateInPeerReview: {policy: &InPeerReviewPolicy},
	domain.TicketStatePeerReviewed: {persistAs: domain.TicketStateDone},
}

// persistedState is the state actually written when requested is asked for.
func persistedState(requested domain.TicketState) domain.TicketState {
	if effect, ok := stateEffects[requested]; ok && effect.persistAs != "" {
		return effect.persistAs
	}
	return requested
}

// ApplyStateChange computes the fields written when ticket is moved to
// requested. Resolution uses the ticket's RelatedSkills.
func (s *TicketService) ApplyStateChange(ctx context.Context, ticket *domain.Ticket, requested domain.TicketState) (repository.TicketUpdate, error) {
	if !requested.Valid() {
		return repository.TicketUpdate{}, apperrors.NewValidationError("invalid ticket state", map[string]any{
			"state":   requested,
			"allowed": domain.TicketStates,
		})
	}

	state := persistedState(requested)
	update := repository.TicketUpdate{State: &state}

	effect := stateEffects[requested]
	switch {
	case effect.returnToCreator:
		creator := ticket.CreatedBy
		update.AssignedTo = &creator
	case effect.policy != nil:
		assignee, err := s.resolver.Resolve(ctx, *effect.policy, ticket.RelatedSkills)
		if err != nil {
			return repository.TicketUpdate{}, err
		}
		update.AssignedTo = &assignee.ID
	}
	return update, nil
}
