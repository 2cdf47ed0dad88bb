package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/REZ0AN/TaskPilot/internal/domain"
)

// MemoryStore is an in-process implementation of the ticket, user and
// workflow run repositories. It backs the service when no Postgres DSN is
// configured and is used throughout the tests. Errors mirror the Postgres
// implementations: a missing row is pgx.ErrNoRows.
type MemoryStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	users   map[string]*domain.User
	runs    map[string]*domain.WorkflowRun
	seq     map[string]int
	next    int
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets: make(map[string]*domain.Ticket),
		users:   make(map[string]*domain.User),
		runs:    make(map[string]*domain.WorkflowRun),
		seq:     make(map[string]int),
		now:     time.Now,
	}
}

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Users exposes the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Runs exposes the store as a WorkflowRunRepository.
func (s *MemoryStore) Runs() WorkflowRunRepository { return memoryRuns{s} }

// stamp records insertion order so equal timestamps still sort stably.
func (s *MemoryStore) stamp(id string) {
	s.next++
	s.seq[id] = s.next
}

type memoryTickets struct{ s *MemoryStore }

func (m memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.State == "" {
		ticket.State = domain.TicketStateReadyForWork
	}
	if ticket.RelatedSkills == nil {
		ticket.RelatedSkills = []string{}
	}
	now := s.now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	s.tickets[ticket.ID] = cloneTicket(ticket)
	s.stamp(ticket.ID)
	return nil
}

func (m memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (m memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if filter.State != nil && ticket.State != *filter.State {
			continue
		}
		if filter.Priority != nil && (ticket.Priority == nil || *ticket.Priority != *filter.Priority) {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}

	less := ticketLess(filter.SortBy)
	sort.SliceStable(result, func(i, j int) bool {
		a, b := &result[i], &result[j]
		if c := less(a, b); c != 0 {
			if filter.SortAsc {
				return c < 0
			}
			return c > 0
		}
		return a.ID < b.ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func ticketLess(field TicketSortField) func(a, b *domain.Ticket) int {
	switch field {
	case SortByUpdatedAt:
		return func(a, b *domain.Ticket) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case SortByPriority:
		return func(a, b *domain.Ticket) int {
			return strings.Compare(priorityString(a.Priority), priorityString(b.Priority))
		}
	case SortByState:
		return func(a, b *domain.Ticket) int { return strings.Compare(string(a.State), string(b.State)) }
	case SortByTitle:
		return func(a, b *domain.Ticket) int { return strings.Compare(a.Title, b.Title) }
	default:
		return func(a, b *domain.Ticket) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

func priorityString(p *domain.TicketPriority) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func (m memoryTickets) Update(_ context.Context, id string, fields TicketUpdate) (*domain.Ticket, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if fields.Empty() {
		return cloneTicket(ticket), nil
	}
	if fields.State != nil {
		ticket.State = *fields.State
	}
	if fields.AssignedTo != nil {
		assignee := *fields.AssignedTo
		ticket.AssignedTo = &assignee
	}
	if fields.Priority != nil {
		priority := *fields.Priority
		ticket.Priority = &priority
	}
	if fields.Deadline != nil {
		deadline := *fields.Deadline
		ticket.Deadline = &deadline
	}
	if fields.HelpNotes != nil {
		ticket.HelpNotes = *fields.HelpNotes
	}
	if fields.RelatedSkills != nil {
		ticket.RelatedSkills = append([]string{}, fields.RelatedSkills...)
	}
	ticket.UpdatedAt = s.now()
	return cloneTicket(ticket), nil
}

func (m memoryTickets) Delete(_ context.Context, id string) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.tickets, id)
	return nil
}

func (m memoryTickets) WorkloadByRole(_ context.Context, role domain.UserRole) ([]Workload, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, ticket := range s.tickets {
		if ticket.AssignedTo == nil || ticket.State == domain.TicketStateDone {
			continue
		}
		counts[*ticket.AssignedTo]++
	}

	var result []Workload
	for _, user := range s.usersByTenure(role) {
		result = append(result, Workload{UserID: user.ID, Assigned: counts[user.ID]})
	}
	return result, nil
}

// usersByTenure returns users of role oldest first. Callers hold s.mu.
func (s *MemoryStore) usersByTenure(role domain.UserRole) []*domain.User {
	var users []*domain.User
	for _, user := range s.users {
		if user.Role == role {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if c := users[i].CreatedAt.Compare(users[j].CreatedAt); c != 0 {
			return c < 0
		}
		return s.seq[users[i].ID] < s.seq[users[j].ID]
	})
	return users
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, user *domain.User) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.UserRoleDev
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	s.stamp(user.ID)
	return nil
}

func (m memoryUsers) Update(_ context.Context, user *domain.User) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = s.now()
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (m memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneUser(user), nil
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m memoryUsers) SkillProfiles(_ context.Context, ids []string) ([]domain.SkillProfile, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var profiles []domain.SkillProfile
	for _, id := range ids {
		user, ok := s.users[id]
		if !ok {
			continue
		}
		profiles = append(profiles, domain.SkillProfile{
			UserID: user.ID,
			Skills: append([]string{}, user.Skills...),
		})
	}
	return profiles, nil
}

func (m memoryUsers) FirstByRole(_ context.Context, role domain.UserRole, order TenureOrder) (*domain.User, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := s.usersByTenure(role)
	if len(users) == 0 {
		return nil, pgx.ErrNoRows
	}
	if order == NewestFirst {
		return cloneUser(users[len(users)-1]), nil
	}
	return cloneUser(users[0]), nil
}

type memoryRuns struct{ s *MemoryStore }

func (m memoryRuns) GetRun(_ context.Context, id string) (*domain.WorkflowRun, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *run
	return &copied, nil
}

func (m memoryRuns) SaveRun(_ context.Context, run *domain.WorkflowRun) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	copied := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		copied.AssignedTo = &assignee
	}
	if t.Priority != nil {
		priority := *t.Priority
		copied.Priority = &priority
	}
	if t.Deadline != nil {
		deadline := *t.Deadline
		copied.Deadline = &deadline
	}
	copied.RelatedSkills = append([]string{}, t.RelatedSkills...)
	return &copied
}

func cloneUser(u *domain.User) *domain.User {
	copied := *u
	copied.Skills = append([]string{}, u.Skills...)
	return &copied
}
