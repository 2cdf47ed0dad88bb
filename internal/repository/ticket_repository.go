package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/REZ0AN/TaskPilot/internal/domain"
)

// TicketSortField names a sortable ticket column.
type TicketSortField string

const (
	SortByCreatedAt TicketSortField = "createdAt"
	SortByUpdatedAt TicketSortField = "updatedAt"
	SortByPriority  TicketSortField = "priority"
	SortByState     TicketSortField = "state"
	SortByTitle     TicketSortField = "title"
)

var ticketSortColumns = map[TicketSortField]string{
	SortByCreatedAt: "created_at",
	SortByUpdatedAt: "updated_at",
	SortByPriority:  "priority",
	SortByState:     "state",
	SortByTitle:     "title",
}

// Valid reports whether f names a sortable column.
func (f TicketSortField) Valid() bool {
	_, ok := ticketSortColumns[f]
	return ok
}

// TicketFilter captures list parameters.
type TicketFilter struct {
	State      *domain.TicketState
	Priority   *domain.TicketPriority
	AssignedTo *string
	CreatedBy  *string
	SortBy     TicketSortField
	SortAsc    bool
	Limit      int
}

// TicketUpdate lists the fields to overwrite. Nil fields are left untouched.
type TicketUpdate struct {
	State         *domain.TicketState
	AssignedTo    *string
	Priority      *domain.TicketPriority
	Deadline      *time.Time
	HelpNotes     *string
	RelatedSkills []string
}

// Empty reports whether the update would change nothing.
func (u TicketUpdate) Empty() bool {
	return u.State == nil && u.AssignedTo == nil && u.Priority == nil &&
		u.Deadline == nil && u.HelpNotes == nil && u.RelatedSkills == nil
}

// Workload is the number of in-flight tickets held by one user.
type Workload struct {
	UserID   string
	Assigned int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Update(ctx context.Context, id string, fields TicketUpdate) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	// WorkloadByRole returns one entry per user of role, including users
	// with no tickets, ordered by the user's creation time.
	WorkloadByRole(ctx context.Context, role domain.UserRole) ([]Workload, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, state, created_by, assigned_to, priority,
               deadline, help_notes, related_skills, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, state, created_by, assigned_to, priority, deadline, help_notes, related_skills)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.State == "" {
		ticket.State = domain.TicketStateReadyForWork
	}
	if ticket.RelatedSkills == nil {
		ticket.RelatedSkills = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.State,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.Priority,
		ticket.Deadline,
		ticket.HelpNotes,
		ticket.RelatedSkills,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.State != nil {
		args = append(args, *filter.State)
		clauses = append(clauses, fmt.Sprintf("state=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}

	column, ok := ticketSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if filter.SortAsc {
		direction = "ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s %s, id ASC LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), column, direction, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Update(ctx context.Context, id string, fields TicketUpdate) (*domain.Ticket, error) {
	sets := []string{}
	args := []any{}

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if fields.State != nil {
		set("state", *fields.State)
	}
	if fields.AssignedTo != nil {
		set("assigned_to", *fields.AssignedTo)
	}
	if fields.Priority != nil {
		set("priority", *fields.Priority)
	}
	if fields.Deadline != nil {
		set("deadline", *fields.Deadline)
	}
	if fields.HelpNotes != nil {
		set("help_notes", *fields.HelpNotes)
	}
	if fields.RelatedSkills != nil {
		set("related_skills", fields.RelatedSkills)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), ticketColumns)
	return scanTicket(r.pool.QueryRow(ctx, query, args...))
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) WorkloadByRole(ctx context.Context, role domain.UserRole) ([]Workload, error) {
	const query = `
        SELECT u.id, COUNT(t.id)
        FROM users u
        LEFT JOIN tickets t ON t.assigned_to = u.id AND t.state <> $2
        WHERE u.role = $1
        GROUP BY u.id, u.created_at
        ORDER BY u.created_at ASC, u.id ASC`

	rows, err := r.pool.Query(ctx, query, role, domain.TicketStateDone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Workload
	for rows.Next() {
		var w Workload
		if err := rows.Scan(&w.UserID, &w.Assigned); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.State,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Priority,
		&ticket.Deadline,
		&ticket.HelpNotes,
		&ticket.RelatedSkills,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
