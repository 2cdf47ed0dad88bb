package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/enrichment"
	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	"github.com/REZ0AN/TaskPilot/internal/workflow"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	store  *repository.MemoryStore
	tenure int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, store: repository.NewMemoryStore()}
}

// user creates a user; each call is one hour younger than the previous.
func (f *fixture) user(id string, role domain.UserRole, skills ...string) *domain.User {
	f.t.Helper()
	f.tenure++
	user := &domain.User{
		ID:        id,
		Name:      id,
		Email:     id + "@example.com",
		Role:      role,
		Skills:    skills,
		CreatedAt: epoch.Add(time.Duration(f.tenure) * time.Hour),
	}
	require.NoError(f.t, f.store.Users().Create(context.Background(), user))
	return user
}

// load gives the user n in-flight tickets.
func (f *fixture) load(userID string, n int) {
	f.t.Helper()
	for i := 0; i < n; i++ {
		f.ticketAssigned(userID, domain.TicketStateInProgress)
	}
}

func (f *fixture) ticketAssigned(userID string, state domain.TicketState) *domain.Ticket {
	f.t.Helper()
	assignee := userID
	ticket := &domain.Ticket{
		Title:       "busy",
		Description: "busy",
		State:       state,
		CreatedBy:   userID,
		AssignedTo:  &assignee,
	}
	require.NoError(f.t, f.store.Tickets().Create(context.Background(), ticket))
	return ticket
}

func (f *fixture) ticket(createdBy string, skills ...string) *domain.Ticket {
	f.t.Helper()
	ticket := &domain.Ticket{
		Title:         "Fix login bug",
		Description:   "Cookie not found after redirect",
		State:         domain.TicketStateReadyForWork,
		CreatedBy:     createdBy,
		RelatedSkills: skills,
	}
	require.NoError(f.t, f.store.Tickets().Create(context.Background(), ticket))
	return ticket
}

func (f *fixture) reload(id string) *domain.Ticket {
	f.t.Helper()
	ticket, err := f.store.Tickets().GetByID(context.Background(), id)
	require.NoError(f.t, err)
	return ticket
}

func (f *fixture) resolver() *AssignmentResolver {
	return NewAssignmentResolver(AssignmentDependencies{
		TicketRepo: f.store.Tickets(),
		UserRepo:   f.store.Users(),
		Logger:     zap.NewNop(),
	})
}

func (f *fixture) engine() *workflow.Engine {
	return workflow.NewEngine(workflow.NewMemoryStepStore(), f.store.Runs(), zap.NewNop(), workflow.WithBackoff(0))
}

// recordingDispatcher keeps published events in memory.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) Run(context.Context) error { return nil }

func (d *recordingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.events...)
}

// scriptedGenerator returns replies in order, repeating the last one.
type scriptedGenerator struct {
	mu       sync.Mutex
	replies  []generatorReply
	requests []enrichment.Request
}

type generatorReply struct {
	text string
	err  error
}

func (g *scriptedGenerator) Generate(_ context.Context, req enrichment.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	idx := len(g.requests) - 1
	if idx >= len(g.replies) {
		idx = len(g.replies) - 1
	}
	return g.replies[idx].text, g.replies[idx].err
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// countingTickets counts Update calls on top of a real repository.
type countingTickets struct {
	repository.TicketRepository
	updates atomic.Int32
}

func (c *countingTickets) Update(ctx context.Context, id string, fields repository.TicketUpdate) (*domain.Ticket, error) {
	c.updates.Add(1)
	return c.TicketRepository.Update(ctx, id, fields)
}

func ptr[T any](v T) *T {
	return &v
}
