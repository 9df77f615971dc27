package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/quizdeck/quizdeck-api/app/observability/metrics"
	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

// Live attempts are short-lived per-user state, not worth a table. They sit
// in an in-process cache and expire after an hour of inactivity.
const (
	attemptTTL      = 1 * time.Hour
	cleanupInterval = 10 * time.Minute
)

// QuizLoader is the read side of the quiz service the engine needs.
type QuizLoader interface {
	GetQuizWithQuestions(ctx context.Context, quizID string) (*types.QuizWithQuestions, error)
}

type Service interface {
	// Start loads the quiz and begins a fresh attempt, replacing any
	// previous attempt by the same user on the same quiz.
	Start(ctx context.Context, userID, quizID string) (View, error)
	// State returns the current attempt view without mutating it.
	State(ctx context.Context, userID, quizID string) (View, error)
	Select(ctx context.Context, userID, quizID, optionID string) (View, error)
	Next(ctx context.Context, userID, quizID string) (View, error)
	Previous(ctx context.Context, userID, quizID string) (View, error)
	Restart(ctx context.Context, userID, quizID string) (View, error)
	Result(ctx context.Context, userID, quizID string) (Result, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger  *slog.Logger
	quizzes QuizLoader
	live    *cache.Cache
}

func NewService(quizzes QuizLoader, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		quizzes: quizzes,
		live:    cache.New(attemptTTL, cleanupInterval),
	}
}

func attemptKey(userID, quizID string) string {
	return userID + ":" + quizID
}

func (s *ServiceImpl) Start(ctx context.Context, userID, quizID string) (View, error) {
	l := s.logger.With(slog.String("operation", "StartAttempt"), slog.String("user_id", userID), slog.String("quiz_id", quizID))

	qz, err := s.quizzes.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		l.WarnContext(ctx, "Failed to load quiz for attempt", slog.Any("error", err))
		return View{}, fmt.Errorf("loading quiz %s: %w", quizID, err)
	}

	a := New(quizID, qz.Quiz.Title, qz.Questions)
	s.live.Set(attemptKey(userID, quizID), a, attemptTTL)
	metrics.Get().AttemptsStartedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Attempt started", slog.Int("questions", len(qz.Questions)))
	return a.View(), nil
}

// get fetches the live attempt and refreshes its TTL.
func (s *ServiceImpl) get(userID, quizID string) (*Attempt, error) {
	raw, found := s.live.Get(attemptKey(userID, quizID))
	if !found {
		return nil, fmt.Errorf("no live attempt for quiz %s: %w", quizID, api.ErrNotFound)
	}
	a := raw.(*Attempt)
	s.live.Set(attemptKey(userID, quizID), a, attemptTTL)
	return a, nil
}

func (s *ServiceImpl) State(_ context.Context, userID, quizID string) (View, error) {
	a, err := s.get(userID, quizID)
	if err != nil {
		return View{}, err
	}
	return a.View(), nil
}

func (s *ServiceImpl) Select(_ context.Context, userID, quizID, optionID string) (View, error) {
	a, err := s.get(userID, quizID)
	if err != nil {
		return View{}, err
	}
	a.Select(optionID)
	return a.View(), nil
}

func (s *ServiceImpl) Next(ctx context.Context, userID, quizID string) (View, error) {
	a, err := s.get(userID, quizID)
	if err != nil {
		return View{}, err
	}
	wasSubmitted := a.Submitted
	a.Next()
	if !wasSubmitted && a.Submitted {
		metrics.Get().AttemptsSubmittedTotal.Add(ctx, 1)
	}
	return a.View(), nil
}

func (s *ServiceImpl) Previous(_ context.Context, userID, quizID string) (View, error) {
	a, err := s.get(userID, quizID)
	if err != nil {
		return View{}, err
	}
	a.Previous()
	return a.View(), nil
}

func (s *ServiceImpl) Restart(ctx context.Context, userID, quizID string) (View, error) {
	a, err := s.get(userID, quizID)
	if err != nil {
		return View{}, err
	}
	if a.Restart() {
		s.logger.InfoContext(ctx, "Attempt restarted", slog.String("user_id", userID), slog.String("quiz_id", quizID))
	}
	return a.View(), nil
}

func (s *ServiceImpl) Result(_ context.Context, userID, quizID string) (Result, error) {
	a, err := s.get(userID, quizID)
	if err != nil {
		return Result{}, err
	}
	if !a.Submitted {
		return Result{}, fmt.Errorf("attempt for quiz %s is still in progress: %w", quizID, api.ErrValidation)
	}
	return a.Result(), nil
}
