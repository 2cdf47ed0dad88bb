package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/bootstrap"
	"github.com/REZ0AN/TaskPilot/internal/config"
	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	"github.com/REZ0AN/TaskPilot/internal/workflow"
)

func useMemoryBackends(t *testing.T, store *repository.MemoryStore) {
	t.Helper()

	prevCfg, prevLogger, prevOpen := cfg, logger, openBackends
	cfg = &config.Config{}
	logger = zap.NewNop()
	openBackends = func(context.Context, *config.Config, *zap.Logger) (*bootstrap.Backends, error) {
		return &bootstrap.Backends{
			Tickets:    store.Tickets(),
			Users:      store.Users(),
			Runs:       store.Runs(),
			Steps:      workflow.NewMemoryStepStore(),
			Dispatcher: events.NewInMemoryDispatcher(zap.NewNop(), 0),
		}, nil
	}
	t.Cleanup(func() {
		cfg, logger, openBackends = prevCfg, prevLogger, prevOpen
		resolveFlags.role, resolveFlags.threshold, resolveFlags.skills = string(domain.UserRoleDev), 0, nil
		enrichTicketID = ""
	})
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestResolveFallsBackToNewestAdmin(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, email := range []string{"old@x.io", "new@x.io"} {
		require.NoError(t, store.Users().Create(ctx, &domain.User{
			ID:        email,
			Email:     email,
			Role:      domain.UserRoleAdmin,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	useMemoryBackends(t, store)

	out, err := run(t, "resolve", "--role", "dev", "--skills", "Docker,AWS")
	require.NoError(t, err)
	assert.Contains(t, out, "Under-threshold dev users (< 3): 0")
	assert.Contains(t, out, "Assignee: new@x.io")
}

func TestResolveRejectsRoleWithoutPolicy(t *testing.T) {
	useMemoryBackends(t, repository.NewMemoryStore())

	_, err := run(t, "resolve", "--role", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no assignment policy")
}

func TestEnrichRequiresTicket(t *testing.T) {
	useMemoryBackends(t, repository.NewMemoryStore())

	_, err := run(t, "enrich")
	require.EqualError(t, err, "--ticket is required")
}

func TestEnrichWithoutGeneratorFails(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "u1", Email: "a@x.io", Role: domain.UserRoleAdmin}))
	ticket := &domain.Ticket{Title: "t", Description: "d", State: domain.TicketStateReadyForWork, CreatedBy: "u1"}
	require.NoError(t, store.Tickets().Create(ctx, ticket))
	useMemoryBackends(t, store)

	_, err := run(t, "enrich", "--ticket", ticket.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	unchanged, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateReadyForWork, unchanged.State)
	assert.Nil(t, unchanged.AssignedTo)
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "taskpilotctl 1.2.3\n", out)
}
