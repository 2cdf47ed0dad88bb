package service

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

// FallbackRule picks a single user of Role when skill matching finds nobody.
type FallbackRule struct {
	Role  domain.UserRole
	Order repository.TenureOrder
}

// AssignmentPolicy describes how one transition picks its assignee.
type AssignmentPolicy struct {
	Name      string
	Role      domain.UserRole
	Threshold int
	Fallbacks []FallbackRule
}

var (
	// InProgressPolicy routes work to under-loaded devs, then to the
	// longest-tenured sdev, then to the newest admin.
	InProgressPolicy = AssignmentPolicy{
		Name:      "in-progress",
		Role:      domain.UserRoleDev,
		Threshold: 3,
		Fallbacks: []FallbackRule{
			{Role: domain.UserRoleSdev, Order: repository.OldestFirst},
			{Role: domain.UserRoleAdmin, Order: repository.NewestFirst},
		},
	}

	// InPeerReviewPolicy routes reviews to under-loaded sdevs, then to the
	// newest admin.
	InPeerReviewPolicy = AssignmentPolicy{
		Name:      "in-peer-review",
		Role:      domain.UserRoleSdev,
		Threshold: 4,
		Fallbacks: []FallbackRule{
			{Role: domain.UserRoleAdmin, Order: repository.NewestFirst},
		},
	}
)

// WorkloadSampler finds users of a role who hold fewer in-flight tickets
// than a threshold.
type WorkloadSampler struct {
	tickets repository.TicketRepository
}

// NewWorkloadSampler builds a sampler.
func NewWorkloadSampler(tickets repository.TicketRepository) *WorkloadSampler {
	return &WorkloadSampler{tickets: tickets}
}

// Sample returns users of role whose in-flight ticket count is strictly
// below threshold, oldest account first. Users with no tickets are included.
func (s *WorkloadSampler) Sample(ctx context.Context, role domain.UserRole, threshold int) ([]domain.UserRef, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	if threshold <= 0 {
		return nil, apperrors.NewValidationError("threshold must be positive", map[string]any{"threshold": threshold})
	}

	loads, err := s.tickets.WorkloadByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	refs := make([]domain.UserRef, 0, len(loads))
	for _, load := range loads {
		if load.Assigned < threshold {
			refs = append(refs, domain.UserRef{ID: load.UserID})
		}
	}
	return refs, nil
}

// RankBySkills returns the candidate sharing the most skills with required.
// Candidates sharing none are never chosen; ties go to the earlier candidate.
func RankBySkills(candidates []domain.SkillProfile, required []string) (domain.UserRef, bool) {
	wanted := toSet(required)

	type scored struct {
		userID  string
		matches int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		matches := 0
		for skill := range toSet(candidate.Skills) {
			if _, ok := wanted[skill]; ok {
				matches++
			}
		}
		if matches > 0 {
			ranked = append(ranked, scored{userID: candidate.UserID, matches: matches})
		}
	}
	if len(ranked) == 0 {
		return domain.UserRef{}, false
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].matches > ranked[j].matches
	})
	return domain.UserRef{ID: ranked[0].userID}, true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// AssignmentResolver picks exactly one assignee for a transition.
type AssignmentResolver struct {
	sampler *WorkloadSampler
	users   repository.UserRepository
	logger  *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Logger     *zap.Logger
}

// NewAssignmentResolver creates the resolver.
func NewAssignmentResolver(deps AssignmentDependencies) *AssignmentResolver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentResolver{
		sampler: NewWorkloadSampler(deps.TicketRepo),
		users:   deps.UserRepo,
		logger:  logger,
	}
}

// Resolve samples under-loaded users for the policy, ranks them by skill
// fit and falls back along the policy's chain. It never returns an empty
// reference: when every level is empty it fails with RESOLUTION_EXHAUSTED.
//
// Nothing is locked between sampling and the caller's write, so concurrent
// resolutions may pick the same user.
func (r *AssignmentResolver) Resolve(ctx context.Context, policy AssignmentPolicy, requiredSkills []string) (domain.UserRef, error) {
	candidates, err := r.sampler.Sample(ctx, policy.Role, policy.Threshold)
	if err != nil {
		return domain.UserRef{}, err
	}

	if len(candidates) > 0 && len(requiredSkills) > 0 {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		profiles, err := r.users.SkillProfiles(ctx, ids)
		if err != nil {
			return domain.UserRef{}, err
		}
		if best, ok := RankBySkills(profiles, requiredSkills); ok {
			r.logger.Debug("assignee matched by skills",
				zap.String("policy", policy.Name),
				zap.String("user_id", best.ID),
				zap.Int("candidates", len(candidates)))
			return best, nil
		}
	}

	for _, rule := range policy.Fallbacks {
		user, err := r.users.FirstByRole(ctx, rule.Role, rule.Order)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return domain.UserRef{}, err
		}
		r.logger.Info("assignee chosen by fallback",
			zap.String("policy", policy.Name),
			zap.String("role", string(rule.Role)),
			zap.String("order", rule.Order.String()),
			zap.String("user_id", user.ID))
		return domain.UserRef{ID: user.ID}, nil
	}

	r.logger.Error("assignment fallback chain exhausted; staff roster has no eligible user",
		zap.String("policy", policy.Name))
	return domain.UserRef{}, apperrors.NewResolutionExhausted(map[string]any{"policy": policy.Name})
}
