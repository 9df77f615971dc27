package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/quizdeck/quizdeck-api/app/observability/metrics"
	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// ValidationError reports an authoring rule violation and the form section
// the user should be routed back to.
type ValidationError struct {
	Section string // "details" or "questions"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Section, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == api.ErrValidation
}

// RoleLookup resolves a profile role for owner-or-admin checks.
type RoleLookup interface {
	GetRole(ctx context.Context, userID string) (types.Role, error)
}

// Service owns quiz authoring, browsing, visibility and deletion.
type Service interface {
	// CreateQuiz validates the draft, then inserts the quiz row followed by
	// its question rows. A question-insert failure after the quiz row
	// succeeded is surfaced without rolling back the quiz row.
	CreateQuiz(ctx context.Context, ownerID string, req types.CreateQuizRequest) (*types.Quiz, error)
	GetQuizWithQuestions(ctx context.Context, quizID string) (*types.QuizWithQuestions, error)
	ListPublic(ctx context.Context, limit int) ([]*types.Quiz, error)
	ListByUser(ctx context.Context, userID string) ([]*types.Quiz, error)
	// SetVisibility toggles is_public; allowed for the owner or an admin.
	SetVisibility(ctx context.Context, actorID, quizID string, isPublic bool) error
	// DeleteQuiz removes a quiz and its questions, questions first; allowed
	// for the owner or an admin.
	DeleteQuiz(ctx context.Context, actorID, quizID string) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	roles  RoleLookup
}

func NewService(repo Repository, roles RoleLookup, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		roles:  roles,
	}
}

// ValidateDraft enforces the authoring rules before anything touches the
// store: non-empty title, per question non-empty text, at least two options
// all with non-empty text, and exactly one option flagged correct whose id
// matches the designated correct answer.
func ValidateDraft(req types.CreateQuizRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return &ValidationError{Section: "details", Message: "please provide a title for your quiz"}
	}
	if len(req.Questions) == 0 {
		return &ValidationError{Section: "questions", Message: "a quiz needs at least one question"}
	}
	for i, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return &ValidationError{Section: "questions", Message: fmt.Sprintf("question %d has no text", i+1)}
		}
		if len(q.Options) < 2 {
			return &ValidationError{Section: "questions", Message: fmt.Sprintf("question %d needs at least 2 options", i+1)}
		}
		correct := 0
		correctID := ""
		for j, o := range q.Options {
			if strings.TrimSpace(o.Text) == "" {
				return &ValidationError{Section: "questions", Message: fmt.Sprintf("question %d option %d has no text", i+1, j+1)}
			}
			if o.IsCorrect {
				correct++
				correctID = o.ID
			}
		}
		if correct != 1 {
			return &ValidationError{Section: "questions", Message: fmt.Sprintf("question %d must have exactly one correct option", i+1)}
		}
		if q.CorrectAnswer != correctID {
			return &ValidationError{Section: "questions", Message: fmt.Sprintf("question %d correct answer does not match its options", i+1)}
		}
	}
	return nil
}

func (s *ServiceImpl) CreateQuiz(ctx context.Context, ownerID string, req types.CreateQuizRequest) (*types.Quiz, error) {
	l := s.logger.With(slog.String("operation", "CreateQuiz"), slog.String("user_id", ownerID))

	if err := ValidateDraft(req); err != nil {
		l.WarnContext(ctx, "Quiz draft rejected", slog.Any("error", err))
		return nil, err
	}

	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id '%s': %w", ownerID, err)
	}

	created, err := s.repo.CreateQuiz(ctx, types.Quiz{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		UserID:      owner,
	})
	if err != nil {
		return nil, err
	}

	questions := make([]types.Question, 0, len(req.Questions))
	for i, draft := range req.Questions {
		options := make([]types.Option, 0, len(draft.Options))
		for _, o := range draft.Options {
			options = append(options, types.Option{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect})
		}
		questions = append(questions, types.Question{
			QuizID:        created.ID,
			QuestionText:  draft.Text,
			Options:       options,
			CorrectAnswer: draft.CorrectAnswer,
			Position:      i + 1,
		})
	}

	if err := s.repo.InsertQuestions(ctx, questions); err != nil {
		// The quiz row is already committed and deliberately not rolled
		// back; operators clean up orphaned quiz rows manually.
		l.ErrorContext(ctx, "Question insert failed after quiz row was created",
			slog.Any("error", err),
			slog.String("quiz_id", created.ID.String()))
		return nil, fmt.Errorf("quiz '%s' created but question insert failed: %w", created.ID, err)
	}

	metrics.Get().QuizzesCreatedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Quiz created", slog.String("quiz_id", created.ID.String()), slog.Int("questions", len(questions)))
	return created, nil
}

func (s *ServiceImpl) GetQuizWithQuestions(ctx context.Context, quizID string) (*types.QuizWithQuestions, error) {
	quiz, err := s.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.GetQuestionsByQuizID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return &types.QuizWithQuestions{Quiz: *quiz, Questions: questions}, nil
}

func (s *ServiceImpl) ListPublic(ctx context.Context, limit int) ([]*types.Quiz, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.ListPublic(ctx, limit)
}

func (s *ServiceImpl) ListByUser(ctx context.Context, userID string) ([]*types.Quiz, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *ServiceImpl) SetVisibility(ctx context.Context, actorID, quizID string, isPublic bool) error {
	if err := s.authorizeOwnerOrAdmin(ctx, actorID, quizID); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, quizID, isPublic)
}

func (s *ServiceImpl) DeleteQuiz(ctx context.Context, actorID, quizID string) error {
	l := s.logger.With(slog.String("operation", "DeleteQuiz"), slog.String("quiz_id", quizID))

	if err := s.authorizeOwnerOrAdmin(ctx, actorID, quizID); err != nil {
		return err
	}

	// Questions must go before the quiz row; nothing at the store level
	// enforces this ordering.
	if err := s.repo.DeleteQuestionsByQuizID(ctx, quizID); err != nil {
		return err
	}
	if err := s.repo.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	l.InfoContext(ctx, "Quiz deleted")
	return nil
}

func (s *ServiceImpl) authorizeOwnerOrAdmin(ctx context.Context, actorID, quizID string) error {
	quiz, err := s.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.UserID.String() == actorID {
		return nil
	}
	role, err := s.roles.GetRole(ctx, actorID)
	if err != nil {
		// Fail closed on role lookup errors.
		return fmt.Errorf("role lookup for '%s' failed: %w", actorID, api.ErrForbidden)
	}
	if role != types.RoleAdmin {
		return fmt.Errorf("quiz '%s' is not owned by '%s': %w", quizID, actorID, api.ErrForbidden)
	}
	return nil
}
