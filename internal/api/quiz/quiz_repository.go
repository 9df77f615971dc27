package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

var _ Repository = (*PostgresRepo)(nil)

// Repository defines the contract for quiz and question persistence.
type Repository interface {
	// CreateQuiz inserts the quiz row and returns it with the generated id.
	CreateQuiz(ctx context.Context, quiz types.Quiz) (*types.Quiz, error)
	// InsertQuestions inserts question rows for a quiz. Position is taken
	// from each question as provided (insertion index + 1).
	InsertQuestions(ctx context.Context, questions []types.Question) error
	GetQuizByID(ctx context.Context, quizID string) (*types.Quiz, error)
	// GetQuestionsByQuizID returns questions ordered by position.
	GetQuestionsByQuizID(ctx context.Context, quizID string) ([]types.Question, error)
	// ListPublic returns the newest public quizzes with their creators.
	ListPublic(ctx context.Context, limit int) ([]*types.Quiz, error)
	ListByUser(ctx context.Context, userID string) ([]*types.Quiz, error)
	// ListAll returns quizzes of any visibility (admin read).
	ListAll(ctx context.Context) ([]*types.Quiz, error)
	UpdateStatus(ctx context.Context, quizID string, isPublic bool) error
	// DeleteQuestionsByQuizID must be called before DeleteQuiz; there is no
	// cascade on questions.quiz_id.
	DeleteQuestionsByQuizID(ctx context.Context, quizID string) error
	DeleteQuiz(ctx context.Context, quizID string) error
	CountQuizzes(ctx context.Context) (int64, error)
	CountPublicQuizzes(ctx context.Context) (int64, error)
}

type PostgresRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresRepo {
	return &PostgresRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresRepo) CreateQuiz(ctx context.Context, quiz types.Quiz) (*types.Quiz, error) {
	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO quizzes (title, description, is_public, user_id, created_at)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, title, description, is_public, user_id, created_at`,
		quiz.Title, quiz.Description, quiz.IsPublic, quiz.UserID, time.Now())

	var created types.Quiz
	err := row.Scan(&created.ID, &created.Title, &created.Description, &created.IsPublic, &created.UserID, &created.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create quiz", slog.Any("error", err), slog.String("user_id", quiz.UserID.String()))
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}
	return &created, nil
}

func (r *PostgresRepo) InsertQuestions(ctx context.Context, questions []types.Question) error {
	for _, q := range questions {
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("failed to encode options for question %d: %w", q.Position, err)
		}
		_, err = r.pgpool.Exec(ctx,
			`INSERT INTO questions (quiz_id, question_text, options, correct_answer, position, created_at)
             VALUES ($1, $2, $3, $4, $5, $6)`,
			q.QuizID, q.QuestionText, optionsJSON, q.CorrectAnswer, q.Position, time.Now())
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to insert question",
				slog.Any("error", err),
				slog.String("quiz_id", q.QuizID.String()),
				slog.Int("position", q.Position))
			return fmt.Errorf("failed to insert question at position %d: %w", q.Position, err)
		}
	}
	return nil
}

func (r *PostgresRepo) GetQuizByID(ctx context.Context, quizID string) (*types.Quiz, error) {
	var quiz types.Quiz
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, title, description, is_public, user_id, created_at
         FROM quizzes WHERE id = $1`, quizID).
		Scan(&quiz.ID, &quiz.Title, &quiz.Description, &quiz.IsPublic, &quiz.UserID, &quiz.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quiz '%s': %w", quizID, api.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get quiz", slog.Any("error", err), slog.String("quiz_id", quizID))
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return &quiz, nil
}

func (r *PostgresRepo) GetQuestionsByQuizID(ctx context.Context, quizID string) ([]types.Question, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT id, quiz_id, question_text, options, correct_answer, position, created_at
         FROM questions
         WHERE quiz_id = $1
         ORDER BY position`, quizID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to get questions", slog.Any("error", err), slog.String("quiz_id", quizID))
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []types.Question
	for rows.Next() {
		var q types.Question
		var optionsJSON []byte
		err := rows.Scan(&q.ID, &q.QuizID, &q.QuestionText, &optionsJSON, &q.CorrectAnswer, &q.Position, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options for question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question rows: %w", err)
	}
	return questions, nil
}

func (r *PostgresRepo) ListPublic(ctx context.Context, limit int) ([]*types.Quiz, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT q.id, q.title, q.description, q.is_public, q.user_id, q.created_at,
                p.username, p.display_name, p.avatar_url
         FROM quizzes q
         JOIN profiles p ON p.id = q.user_id
         WHERE q.is_public = true
         ORDER BY q.created_at DESC
         LIMIT $1`, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list public quizzes", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list public quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []*types.Quiz
	for rows.Next() {
		var quiz types.Quiz
		var creator types.QuizCreator
		err := rows.Scan(&quiz.ID, &quiz.Title, &quiz.Description, &quiz.IsPublic, &quiz.UserID, &quiz.CreatedAt,
			&creator.Username, &creator.DisplayName, &creator.AvatarURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quiz.Creator = &creator
		quizzes = append(quizzes, &quiz)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz rows: %w", err)
	}
	return quizzes, nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]*types.Quiz, error) {
	return r.listQuizzes(ctx,
		`SELECT id, title, description, is_public, user_id, created_at
         FROM quizzes
         WHERE user_id = $1
         ORDER BY created_at DESC`, userID)
}

func (r *PostgresRepo) ListAll(ctx context.Context) ([]*types.Quiz, error) {
	return r.listQuizzes(ctx,
		`SELECT id, title, description, is_public, user_id, created_at
         FROM quizzes
         ORDER BY created_at DESC`)
}

func (r *PostgresRepo) listQuizzes(ctx context.Context, query string, args ...any) ([]*types.Quiz, error) {
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list quizzes", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []*types.Quiz
	for rows.Next() {
		var quiz types.Quiz
		err := rows.Scan(&quiz.ID, &quiz.Title, &quiz.Description, &quiz.IsPublic, &quiz.UserID, &quiz.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quizzes = append(quizzes, &quiz)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz rows: %w", err)
	}
	return quizzes, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, quizID string, isPublic bool) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE quizzes SET is_public = $1 WHERE id = $2`, isPublic, quizID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update quiz status", slog.Any("error", err), slog.String("quiz_id", quizID))
		return fmt.Errorf("failed to update quiz status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quiz '%s': %w", quizID, api.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepo) DeleteQuestionsByQuizID(ctx context.Context, quizID string) error {
	_, err := r.pgpool.Exec(ctx, `DELETE FROM questions WHERE quiz_id = $1`, quizID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete questions", slog.Any("error", err), slog.String("quiz_id", quizID))
		return fmt.Errorf("failed to delete questions: %w", err)
	}
	return nil
}

func (r *PostgresRepo) DeleteQuiz(ctx context.Context, quizID string) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, quizID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete quiz", slog.Any("error", err), slog.String("quiz_id", quizID))
		return fmt.Errorf("failed to delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quiz '%s': %w", quizID, api.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepo) CountQuizzes(ctx context.Context) (int64, error) {
	var count int64
	err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count quizzes: %w", err)
	}
	return count, nil
}

func (r *PostgresRepo) CountPublicQuizzes(ctx context.Context) (int64, error) {
	var count int64
	err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes WHERE is_public = true`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count public quizzes: %w", err)
	}
	return count, nil
}
