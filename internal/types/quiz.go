package types

import (
	"time"

	"github.com/google/uuid"
)

// Option is one possible answer of a question. IsCorrect is carried inside
// the stored options payload alongside Question.CorrectAnswer, mirroring the
// authoring format.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect,omitempty"`
}

// Question is one multiple-choice prompt belonging to a quiz. Options keep
// their authoring order; Position is 1-based and contiguous within a quiz.
type Question struct {
	ID            uuid.UUID `json:"id"`
	QuizID        uuid.UUID `json:"quiz_id"`
	QuestionText  string    `json:"question_text"`
	Options       []Option  `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	Position      int       `json:"order"`
	CreatedAt     time.Time `json:"created_at"`
}

// Quiz is a titled, ordered collection of questions owned by one profile.
type Quiz struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	UserID      uuid.UUID `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`

	// Creator is attached on listing reads; nil elsewhere.
	Creator *QuizCreator `json:"creator,omitempty"`
}

// QuizCreator is the slim profile view attached to quiz listings.
type QuizCreator struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// QuizWithQuestions is the read model consumed by the quiz-taking flow.
type QuizWithQuestions struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// OptionDraft mirrors the authoring form's option rows.
type OptionDraft struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuestionDraft is one question accumulated by the authoring flow.
type QuestionDraft struct {
	Text    string        `json:"text"`
	Options []OptionDraft `json:"options"`
	// CorrectAnswer references the id of the single option flagged correct.
	CorrectAnswer string `json:"correctAnswer"`
}

// CreateQuizRequest is the authoring flow's submission payload.
type CreateQuizRequest struct {
	Title       string          `json:"title" validate:"required"`
	Description *string         `json:"description,omitempty"`
	CategoryID  *string         `json:"category_id,omitempty"` // advisory only; no FK is enforced
	IsPublic    bool            `json:"is_public"`
	Questions   []QuestionDraft `json:"questions" validate:"required,min=1,dive"`
}

// UpdateQuizStatusRequest toggles quiz visibility.
type UpdateQuizStatusRequest struct {
	IsPublic bool `json:"is_public"`
}

// QuizStats is the count-only admin dashboard read.
type QuizStats struct {
	TotalQuizzes  int64 `json:"total_quizzes"`
	PublicQuizzes int64 `json:"public_quizzes"`
	TotalUsers    int64 `json:"total_users"`
}
