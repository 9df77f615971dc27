package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service guards the 1:1 identity-to-profile invariant and owns profile
// reads and writes.
type Service interface {
	// EnsureProfile is the single idempotent provisioning operation used by
	// sign-up, sign-in and session observation. It returns the existing
	// profile when one is present and creates it otherwise. A lost insert
	// race resolves to the winner's row.
	EnsureProfile(ctx context.Context, userID, email, username string) (*types.Profile, error)
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*types.Profile, error)
	// UpdateProfile allows the owning user or an admin to mutate a profile.
	UpdateProfile(ctx context.Context, actorID, targetID string, params types.UpdateProfileParams) (*types.Profile, error)
	// GetRole backs the access guard's admin check; callers must fail
	// closed on error.
	GetRole(ctx context.Context, userID string) (types.Role, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewService(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// UsernameFromEmail derives the default username from the email local-part.
func UsernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	if email != "" {
		return email
	}
	return "user"
}

func (s *ServiceImpl) EnsureProfile(ctx context.Context, userID, email, username string) (*types.Profile, error) {
	l := s.logger.With(slog.String("operation", "EnsureProfile"), slog.String("user_id", userID))

	// Check-then-insert: the common path is an existing profile.
	existing, err := s.repo.GetByID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		return nil, err
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id '%s': %w", userID, err)
	}

	if username == "" {
		username = UsernameFromEmail(email)
	}

	created, err := s.repo.Create(ctx, types.Profile{
		ID:          id,
		Username:    username,
		DisplayName: username,
		Email:       email,
		Role:        types.RoleUser,
	})
	if err == nil {
		l.InfoContext(ctx, "Profile provisioned", slog.String("username", username))
		return created, nil
	}

	// Concurrent provisioning attempts race on the insert; the store's
	// uniqueness constraint is the backstop. Losing means the profile now
	// exists, so re-fetch it.
	if errors.Is(err, api.ErrConflict) {
		l.InfoContext(ctx, "Profile insert lost a provisioning race, re-fetching")
		return s.repo.GetByID(ctx, userID)
	}
	return nil, err
}

func (s *ServiceImpl) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *ServiceImpl) GetProfileByUsername(ctx context.Context, username string) (*types.Profile, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *ServiceImpl) UpdateProfile(ctx context.Context, actorID, targetID string, params types.UpdateProfileParams) (*types.Profile, error) {
	if actorID != targetID {
		role, err := s.repo.GetRole(ctx, actorID)
		if err != nil || role != types.RoleAdmin {
			return nil, fmt.Errorf("profile update by '%s' on '%s': %w", actorID, targetID, api.ErrForbidden)
		}
	}
	return s.repo.Update(ctx, targetID, params)
}

func (s *ServiceImpl) GetRole(ctx context.Context, userID string) (types.Role, error) {
	return s.repo.GetRole(ctx, userID)
}
