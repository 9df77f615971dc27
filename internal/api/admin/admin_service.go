package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/api/profile"
	"github.com/quizdeck/quizdeck-api/internal/api/quiz"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

// Service is the moderation surface. Route-level role checks gate access;
// the service itself assumes the caller is an admin.
type Service interface {
	ListUsers(ctx context.Context) ([]*types.Profile, error)
	UpdateUserRole(ctx context.Context, actorID, userID string, role types.Role) error
	// DeleteUser removes the account and, first, every quiz the user owns.
	DeleteUser(ctx context.Context, actorID, userID string) error
	ListAllQuizzes(ctx context.Context) ([]*types.Quiz, error)
	SetQuizVisibility(ctx context.Context, quizID string, isPublic bool) error
	DeleteQuiz(ctx context.Context, quizID string) error
	GetStats(ctx context.Context) (*types.QuizStats, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	profiles profile.Repository
	quizzes  quiz.Repository
}

func NewService(profiles profile.Repository, quizzes quiz.Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, profiles: profiles, quizzes: quizzes}
}

func (s *ServiceImpl) ListUsers(ctx context.Context) ([]*types.Profile, error) {
	return s.profiles.ListAll(ctx)
}

func (s *ServiceImpl) UpdateUserRole(ctx context.Context, actorID, userID string, role types.Role) error {
	l := s.logger.With(slog.String("operation", "UpdateUserRole"), slog.String("target_user_id", userID))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q: %w", role, api.ErrValidation)
	}
	// Admins cannot change their own role; demoting the last admin would
	// lock everyone out of moderation.
	if actorID == userID {
		return fmt.Errorf("cannot change own role: %w", api.ErrForbidden)
	}
	if err := s.profiles.UpdateRole(ctx, userID, role); err != nil {
		l.ErrorContext(ctx, "Failed to update role", slog.Any("error", err))
		return err
	}
	l.InfoContext(ctx, "Role updated", slog.String("role", string(role)))
	return nil
}

func (s *ServiceImpl) DeleteUser(ctx context.Context, actorID, userID string) error {
	l := s.logger.With(slog.String("operation", "DeleteUser"), slog.String("target_user_id", userID))
	if actorID == userID {
		return fmt.Errorf("cannot delete own account via moderation: %w", api.ErrForbidden)
	}

	// The user's quizzes go first, questions before each quiz row.
	quizzes, err := s.quizzes.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing quizzes for user %s: %w", userID, err)
	}
	for _, qz := range quizzes {
		id := qz.ID.String()
		if err := s.quizzes.DeleteQuestionsByQuizID(ctx, id); err != nil {
			return fmt.Errorf("deleting questions for quiz %s: %w", id, err)
		}
		if err := s.quizzes.DeleteQuiz(ctx, id); err != nil {
			return fmt.Errorf("deleting quiz %s: %w", id, err)
		}
	}

	if err := s.profiles.DeleteUser(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		return err
	}
	l.InfoContext(ctx, "User deleted", slog.Int("quizzes_removed", len(quizzes)))
	return nil
}

func (s *ServiceImpl) ListAllQuizzes(ctx context.Context) ([]*types.Quiz, error) {
	return s.quizzes.ListAll(ctx)
}

func (s *ServiceImpl) SetQuizVisibility(ctx context.Context, quizID string, isPublic bool) error {
	return s.quizzes.UpdateStatus(ctx, quizID, isPublic)
}

func (s *ServiceImpl) DeleteQuiz(ctx context.Context, quizID string) error {
	l := s.logger.With(slog.String("operation", "AdminDeleteQuiz"), slog.String("quiz_id", quizID))
	if err := s.quizzes.DeleteQuestionsByQuizID(ctx, quizID); err != nil {
		return fmt.Errorf("deleting questions for quiz %s: %w", quizID, err)
	}
	if err := s.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		l.ErrorContext(ctx, "Failed to delete quiz", slog.Any("error", err))
		return err
	}
	l.InfoContext(ctx, "Quiz deleted")
	return nil
}

func (s *ServiceImpl) GetStats(ctx context.Context) (*types.QuizStats, error) {
	totalQuizzes, err := s.quizzes.CountQuizzes(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting quizzes: %w", err)
	}
	publicQuizzes, err := s.quizzes.CountPublicQuizzes(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting public quizzes: %w", err)
	}
	totalUsers, err := s.profiles.CountProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	return &types.QuizStats{
		TotalQuizzes:  totalQuizzes,
		PublicQuizzes: publicQuizzes,
		TotalUsers:    totalUsers,
	}, nil
}
