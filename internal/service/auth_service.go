package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/auth"
	"github.com/REZ0AN/TaskPilot/internal/config"
	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

const minPasswordLength = 8

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	publisher  eventPublisher
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UserUpdateInput carries admin changes to an account. Nil fields are kept.
type UserUpdateInput struct {
	Role   *string
	Skills []string
}

// Session is an issued access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		bcryptCost: cfg.BcryptCost,
		publisher:  newEventPublisher(deps.Dispatcher, logger),
		logger:     logger,
	}
}

// Register creates a dev account and announces the signup. The signup
// event is fire-and-forget: a publication failure never fails the request.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("a valid email is required", nil)
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password too short", map[string]any{"min": minPasswordLength})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("user already exists", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.UserRoleDev,
		Skills:       []string{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("user already exists", nil)
		}
		return nil, err
	}

	s.publisher.publish(ctx, events.EventUserSignup, events.UserSignupPayload{Email: user.Email})
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login authenticates a user by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password must be filled", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnauthorized("invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid email or password")
	}
	return s.issue(user)
}

// Profile returns the user with the given id.
func (s *AuthService) Profile(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return user, err
}

// UpdateUser changes role and skills. Skills feed the assignment ranker.
func (s *AuthService) UpdateUser(ctx context.Context, id string, input UserUpdateInput) (*domain.User, error) {
	if input.Role == nil && input.Skills == nil {
		return nil, apperrors.NewValidationError("no updatable fields supplied", nil)
	}
	user, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Role != nil {
		role := domain.UserRole(strings.TrimSpace(*input.Role))
		if !role.Valid() {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"allowed": []domain.UserRole{domain.UserRoleDev, domain.UserRoleSdev, domain.UserRoleAdmin}})
		}
		user.Role = role
	}
	if input.Skills != nil {
		skills, err := normalizeSkills(input.Skills)
		if err != nil {
			return nil, err
		}
		user.Skills = skills
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
