package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/events"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

func newTicketService(f *fixture, dispatcher events.Dispatcher) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: f.store.Tickets(),
		UserRepo:   f.store.Users(),
		Resolver:   f.resolver(),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
}

func TestCreateTicketPublishesEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.user("admin", domain.UserRoleAdmin)
	dispatcher := &recordingDispatcher{}
	svc := newTicketService(f, dispatcher)

	ticket, err := svc.CreateTicket(context.Background(), Actor{UserID: "admin", Role: domain.UserRoleAdmin}, TicketCreateInput{
		Title:       "  Fix login bug ",
		Description: "Cookie not found",
	})
	require.NoError(t, err)
	assert.Equal(t, "Fix login bug", ticket.Title)
	assert.Equal(t, domain.TicketStateReadyForWork, ticket.State)
	assert.Equal(t, "admin", ticket.CreatedBy)
	assert.Nil(t, ticket.AssignedTo)

	published := dispatcher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTicketCreate, published[0].Type)
	var payload events.TicketCreatePayload
	require.NoError(t, published[0].Decode(&payload))
	assert.Equal(t, ticket.ID, payload.TicketID)
}

func TestCreateTicketSurvivesPublishFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := newTicketService(f, &recordingDispatcher{err: errors.New("stream down")})

	ticket, err := svc.CreateTicket(context.Background(), Actor{UserID: "admin", Role: domain.UserRoleAdmin}, TicketCreateInput{
		Title:       "t",
		Description: "d",
	})
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, f.reload(ticket.ID).ID)
}

func TestCreateTicketRequiresTitleAndDescription(t *testing.T) {
	t.Parallel()

	svc := newTicketService(newFixture(t), nil)
	_, err := svc.CreateTicket(context.Background(), Actor{UserID: "admin"}, TicketCreateInput{Title: " ", Description: "d"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestUpdateTicketStateTransitions(t *testing.T) {
	t.Parallel()

	admin := Actor{UserID: "admin", Role: domain.UserRoleAdmin}

	t.Run("ready for work returns to creator", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.user("creator", domain.UserRoleDev)
		f.user("admin", domain.UserRoleAdmin)
		ticket := f.ticket("creator")

		updated, err := newTicketService(f, nil).UpdateTicket(context.Background(), admin, ticket.ID, TicketUpdateInput{
			State: ptr(string(domain.TicketStateReadyForWork)),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStateReadyForWork, updated.State)
		require.NotNil(t, updated.AssignedTo)
		assert.Equal(t, "creator", *updated.AssignedTo)
	})

	t.Run("peer reviewed is stored as done", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.user("admin", domain.UserRoleAdmin)
		ticket := f.ticket("admin")

		updated, err := newTicketService(f, nil).UpdateTicket(context.Background(), admin, ticket.ID, TicketUpdateInput{
			State: ptr(string(domain.TicketStatePeerReviewed)),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStateDone, updated.State)
		assert.Nil(t, updated.AssignedTo)
	})

	t.Run("in progress resolves by ticket skills", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.user("admin", domain.UserRoleAdmin)
		f.user("go-dev", domain.UserRoleDev, "Go")
		f.user("aws-dev", domain.UserRoleDev, "AWS")
		ticket := f.ticket("admin", "AWS")

		updated, err := newTicketService(f, nil).UpdateTicket(context.Background(), admin, ticket.ID, TicketUpdateInput{
			State: ptr(string(domain.TicketStateInProgress)),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStateInProgress, updated.State)
		require.NotNil(t, updated.AssignedTo)
		assert.Equal(t, "aws-dev", *updated.AssignedTo)
	})

	t.Run("in peer review goes to an sdev", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.user("admin", domain.UserRoleAdmin)
		f.user("sdev", domain.UserRoleSdev, "Go")
		ticket := f.ticket("admin", "Go")

		updated, err := newTicketService(f, nil).UpdateTicket(context.Background(), admin, ticket.ID, TicketUpdateInput{
			State: ptr(string(domain.TicketStateInPeerReview)),
		})
		require.NoError(t, err)
		require.NotNil(t, updated.AssignedTo)
		assert.Equal(t, "sdev", *updated.AssignedTo)
	})

	t.Run("ready for peer review keeps assignee", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.user("admin", domain.UserRoleAdmin)
		ticket := f.ticketAssigned("admin", domain.TicketStateInProgress)

		updated, err := newTicketService(f, nil).UpdateTicket(context.Background(), admin, ticket.ID, TicketUpdateInput{
			State: ptr(string(domain.TicketStateReadyForPeerReview)),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStateReadyForPeerReview, updated.State)
		require.NotNil(t, updated.AssignedTo)
		assert.Equal(t, "admin", *updated.AssignedTo)
	})

	t.Run("any state may move backwards", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.user("creator", domain.UserRoleDev)
		ticket := f.ticketAssigned("creator", domain.TicketStateDone)

		updated, err := newTicketService(f, nil).UpdateTicket(context.Background(), admin, ticket.ID, TicketUpdateInput{
			State: ptr(string(domain.TicketStateReadyForWork)),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStateReadyForWork, updated.State)
	})

	t.Run("exhausted resolution leaves ticket untouched", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ticket := f.ticket("ghost", "Go")

		_, err := newTicketService(f, nil).UpdateTicket(context.Background(), admin, ticket.ID, TicketUpdateInput{
			State: ptr(string(domain.TicketStateInProgress)),
		})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeResolutionExhausted))
		assert.Equal(t, domain.TicketStateReadyForWork, f.reload(ticket.ID).State)
	})
}

func TestUpdateTicketExplicitAssigneeWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.user("admin", domain.UserRoleAdmin)
	f.user("dev", domain.UserRoleDev, "Go")
	f.user("chosen", domain.UserRoleSdev)
	ticket := f.ticket("admin", "Go")

	updated, err := newTicketService(f, nil).UpdateTicket(context.Background(),
		Actor{UserID: "admin", Role: domain.UserRoleAdmin}, ticket.ID,
		TicketUpdateInput{
			State:      ptr(string(domain.TicketStatePeerReviewed)),
			AssignedTo: ptr("chosen"),
		})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateDone, updated.State)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, "chosen", *updated.AssignedTo)
}

func TestUpdateTicketUsesNewSkillsForResolution(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.user("admin", domain.UserRoleAdmin)
	f.user("go-dev", domain.UserRoleDev, "Go")
	f.user("sql-dev", domain.UserRoleDev, "SQL")
	ticket := f.ticket("admin", "Go")

	updated, err := newTicketService(f, nil).UpdateTicket(context.Background(),
		Actor{UserID: "admin", Role: domain.UserRoleAdmin}, ticket.ID,
		TicketUpdateInput{
			State:         ptr(string(domain.TicketStateInProgress)),
			RelatedSkills: []string{" SQL "},
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"SQL"}, updated.RelatedSkills)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, "sql-dev", *updated.AssignedTo)
}

func TestUpdateTicketAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.user("creator", domain.UserRoleDev)
	f.user("stranger", domain.UserRoleDev)
	ticket := f.ticket("creator")
	svc := newTicketService(f, nil)

	_, err := svc.UpdateTicket(context.Background(), Actor{UserID: "stranger", Role: domain.UserRoleDev}, ticket.ID,
		TicketUpdateInput{Priority: ptr("High")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	updated, err := svc.UpdateTicket(context.Background(), Actor{UserID: "creator", Role: domain.UserRoleDev}, ticket.ID,
		TicketUpdateInput{Priority: ptr("High")})
	require.NoError(t, err)
	require.NotNil(t, updated.Priority)
	assert.Equal(t, domain.TicketPriorityHigh, *updated.Priority)
}

func TestUpdateTicketValidation(t *testing.T) {
	t.Parallel()

	admin := Actor{UserID: "admin", Role: domain.UserRoleAdmin}
	tests := map[string]TicketUpdateInput{
		"unknown state":     {State: ptr("Archived")},
		"lowercase state":   {State: ptr("done")},
		"unknown priority":  {Priority: ptr("urgent")},
		"missing assignee":  {AssignedTo: ptr("nobody")},
		"blank assignee":    {AssignedTo: ptr("  ")},
		"blank skill":       {RelatedSkills: []string{"Go", " "}},
		"nothing to update": {},
	}

	for name, input := range tests {
		input := input
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.user("admin", domain.UserRoleAdmin)
			ticket := f.ticket("admin")

			_, err := newTicketService(f, nil).UpdateTicket(context.Background(), admin, ticket.ID, input)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "got %v", err)
		})
	}
}

func TestGetAndDeleteMissingTicket(t *testing.T) {
	t.Parallel()

	svc := newTicketService(newFixture(t), nil)

	_, err := svc.GetTicket(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	err = svc.DeleteTicket(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListTickets(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.user("dev", domain.UserRoleDev)
	f.ticket("dev")
	f.ticket("dev")
	f.ticketAssigned("dev", domain.TicketStateDone)
	svc := newTicketService(f, nil)

	all, err := svc.ListTickets(context.Background(), TicketListInput{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	done, err := svc.ListTickets(context.Background(), TicketListInput{State: string(domain.TicketStateDone)})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, domain.TicketStateDone, done[0].State)

	limited, err := svc.ListTickets(context.Background(), TicketListInput{Limit: 2, SortOrder: "asc"})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := svc.ListTickets(context.Background(), TicketListInput{Priority: string(domain.TicketPriorityCritical)})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	for name, input := range map[string]TicketListInput{
		"bad state":  {State: "nope"},
		"bad sort":   {SortBy: "password"},
		"bad order":  {SortOrder: "sideways"},
		"over limit": {Limit: 101},
	} {
		_, err := svc.ListTickets(context.Background(), input)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), name)
	}
}
