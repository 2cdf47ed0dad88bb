package domain

import "time"

// UserRole determines which assignment pool a user belongs to.
type UserRole string

const (
	UserRoleDev   UserRole = "dev"
	UserRoleSdev  UserRole = "sdev"
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleDev, UserRoleSdev, UserRoleAdmin:
		return true
	}
	return false
}

// User is a member of staff who can create and own tickets.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Skills       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRef identifies a user without carrying profile fields.
type UserRef struct {
	ID string
}

// SkillProfile is the slice of a user the skill ranker needs.
type SkillProfile struct {
	UserID string
	Skills []string
}
