package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/REZ0AN/TaskPilot/internal/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

const uniqueViolation = "23505"

// TenureOrder picks which end of a role's creation timeline to read from.
type TenureOrder int

const (
	// OldestFirst selects the longest-tenured user.
	OldestFirst TenureOrder = iota
	// NewestFirst selects the most recently created user.
	NewestFirst
)

func (o TenureOrder) String() string {
	if o == NewestFirst {
		return "newest"
	}
	return "oldest"
}

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// SkillProfiles returns the skills of the given users in the order of ids.
	// Unknown ids are skipped.
	SkillProfiles(ctx context.Context, ids []string) ([]domain.SkillProfile, error)
	// FirstByRole returns pgx.ErrNoRows when nobody holds the role.
	FirstByRole(ctx context.Context, role domain.UserRole, order TenureOrder) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, skills, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, email, password_hash, role, skills)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.UserRoleDev
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}
	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Skills,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, password_hash=$3, role=$4, skills=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Skills,
		user.ID,
	).Scan(&user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) SkillProfiles(ctx context.Context, ids []string) ([]domain.SkillProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `
        SELECT u.id, u.skills
        FROM unnest($1::text[]) WITH ORDINALITY AS wanted(id, position)
        JOIN users u ON u.id = wanted.id
        ORDER BY wanted.position`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.SkillProfile
	for rows.Next() {
		var profile domain.SkillProfile
		if err := rows.Scan(&profile.UserID, &profile.Skills); err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (r *userRepository) FirstByRole(ctx context.Context, role domain.UserRole, order TenureOrder) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role=$1 ORDER BY created_at ASC, id ASC LIMIT 1`
	if order == NewestFirst {
		query = `SELECT ` + userColumns + ` FROM users WHERE role=$1 ORDER BY created_at DESC, id DESC LIMIT 1`
	}
	return scanUser(r.pool.QueryRow(ctx, query, role))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Skills,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
