package quiz

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateQuiz(ctx context.Context, quiz types.Quiz) (*types.Quiz, error) {
	args := m.Called(ctx, quiz)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Quiz), args.Error(1)
}

func (m *MockRepository) InsertQuestions(ctx context.Context, questions []types.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockRepository) GetQuizByID(ctx context.Context, quizID string) (*types.Quiz, error) {
	args := m.Called(ctx, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Quiz), args.Error(1)
}

func (m *MockRepository) GetQuestionsByQuizID(ctx context.Context, quizID string) ([]types.Question, error) {
	args := m.Called(ctx, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Question), args.Error(1)
}

func (m *MockRepository) ListPublic(ctx context.Context, limit int) ([]*types.Quiz, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Quiz), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID string) ([]*types.Quiz, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Quiz), args.Error(1)
}

func (m *MockRepository) ListAll(ctx context.Context) ([]*types.Quiz, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Quiz), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, quizID string, isPublic bool) error {
	args := m.Called(ctx, quizID, isPublic)
	return args.Error(0)
}

func (m *MockRepository) DeleteQuestionsByQuizID(ctx context.Context, quizID string) error {
	args := m.Called(ctx, quizID)
	return args.Error(0)
}

func (m *MockRepository) DeleteQuiz(ctx context.Context, quizID string) error {
	args := m.Called(ctx, quizID)
	return args.Error(0)
}

func (m *MockRepository) CountQuizzes(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) CountPublicQuizzes(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockRoleLookup is a mock implementation of RoleLookup
type MockRoleLookup struct {
	mock.Mock
}

func (m *MockRoleLookup) GetRole(ctx context.Context, userID string) (types.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.Role), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func validDraft() types.CreateQuizRequest {
	return types.CreateQuizRequest{
		Title: "Capitals",
		Questions: []types.QuestionDraft{
			{
				Text: "Capital of France?",
				Options: []types.OptionDraft{
					{ID: "o1", Text: "Paris", IsCorrect: true},
					{ID: "o2", Text: "Lyon"},
				},
				CorrectAnswer: "o1",
			},
		},
	}
}

func TestValidateDraft(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*types.CreateQuizRequest)
		wantSection string
	}{
		{"valid draft", func(r *types.CreateQuizRequest) {}, ""},
		{"blank title", func(r *types.CreateQuizRequest) { r.Title = "  " }, "details"},
		{"no questions", func(r *types.CreateQuizRequest) { r.Questions = nil }, "questions"},
		{"blank question text", func(r *types.CreateQuizRequest) { r.Questions[0].Text = "" }, "questions"},
		{"single option", func(r *types.CreateQuizRequest) {
			r.Questions[0].Options = r.Questions[0].Options[:1]
		}, "questions"},
		{"blank option text", func(r *types.CreateQuizRequest) { r.Questions[0].Options[1].Text = " " }, "questions"},
		{"no correct option", func(r *types.CreateQuizRequest) {
			r.Questions[0].Options[0].IsCorrect = false
		}, "questions"},
		{"two correct options", func(r *types.CreateQuizRequest) {
			r.Questions[0].Options[1].IsCorrect = true
		}, "questions"},
		{"correct answer mismatch", func(r *types.CreateQuizRequest) {
			r.Questions[0].CorrectAnswer = "o2"
		}, "questions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validDraft()
			tt.mutate(&req)

			err := ValidateDraft(req)
			if tt.wantSection == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, api.ErrValidation)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantSection, vErr.Section)
		})
	}
}

func TestCreateQuiz_InvalidDraftNeverTouchesStore(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, new(MockRoleLookup), testLogger())

	req := validDraft()
	req.Title = ""

	_, err := svc.CreateQuiz(context.Background(), uuid.New().String(), req)
	assert.ErrorIs(t, err, api.ErrValidation)
	repo.AssertNotCalled(t, "CreateQuiz", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "InsertQuestions", mock.Anything, mock.Anything)
}

func TestCreateQuiz_AssignsContiguousPositions(t *testing.T) {
	ownerID := uuid.New()
	quizID := uuid.New()

	req := validDraft()
	req.Questions = append(req.Questions, types.QuestionDraft{
		Text: "Capital of Spain?",
		Options: []types.OptionDraft{
			{ID: "o3", Text: "Madrid", IsCorrect: true},
			{ID: "o4", Text: "Seville"},
		},
		CorrectAnswer: "o3",
	})

	repo := new(MockRepository)
	repo.On("CreateQuiz", mock.Anything, mock.MatchedBy(func(q types.Quiz) bool {
		return q.Title == "Capitals" && q.UserID == ownerID
	})).Return(&types.Quiz{ID: quizID, Title: "Capitals", UserID: ownerID}, nil)
	repo.On("InsertQuestions", mock.Anything, mock.MatchedBy(func(qs []types.Question) bool {
		if len(qs) != 2 {
			return false
		}
		return qs[0].Position == 1 && qs[1].Position == 2 && qs[0].QuizID == quizID
	})).Return(nil)

	svc := NewService(repo, new(MockRoleLookup), testLogger())

	created, err := svc.CreateQuiz(context.Background(), ownerID.String(), req)
	require.NoError(t, err)
	assert.Equal(t, quizID, created.ID)
	repo.AssertExpectations(t)
}

func TestCreateQuiz_QuestionInsertFailureLeavesQuizRow(t *testing.T) {
	ownerID := uuid.New()
	quizID := uuid.New()
	boom := errors.New("insert failed")

	repo := new(MockRepository)
	repo.On("CreateQuiz", mock.Anything, mock.Anything).Return(&types.Quiz{ID: quizID, UserID: ownerID}, nil)
	repo.On("InsertQuestions", mock.Anything, mock.Anything).Return(boom)

	svc := NewService(repo, new(MockRoleLookup), testLogger())

	_, err := svc.CreateQuiz(context.Background(), ownerID.String(), validDraft())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	// The quiz row stays behind; there is no compensating delete.
	repo.AssertNotCalled(t, "DeleteQuiz", mock.Anything, mock.Anything)
}

func TestDeleteQuiz_QuestionsGoFirst(t *testing.T) {
	ownerID := uuid.New()
	quizID := uuid.New()

	var calls []string
	repo := new(MockRepository)
	repo.On("GetQuizByID", mock.Anything, quizID.String()).Return(&types.Quiz{ID: quizID, UserID: ownerID}, nil)
	repo.On("DeleteQuestionsByQuizID", mock.Anything, quizID.String()).Run(func(mock.Arguments) {
		calls = append(calls, "questions")
	}).Return(nil)
	repo.On("DeleteQuiz", mock.Anything, quizID.String()).Run(func(mock.Arguments) {
		calls = append(calls, "quiz")
	}).Return(nil)

	svc := NewService(repo, new(MockRoleLookup), testLogger())

	err := svc.DeleteQuiz(context.Background(), ownerID.String(), quizID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"questions", "quiz"}, calls)
}

func TestDeleteQuiz_StrangerForbidden(t *testing.T) {
	quizID := uuid.New()
	stranger := uuid.New().String()

	repo := new(MockRepository)
	repo.On("GetQuizByID", mock.Anything, quizID.String()).Return(&types.Quiz{ID: quizID, UserID: uuid.New()}, nil)
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, stranger).Return(types.RoleUser, nil)

	svc := NewService(repo, roles, testLogger())

	err := svc.DeleteQuiz(context.Background(), stranger, quizID.String())
	assert.ErrorIs(t, err, api.ErrForbidden)
	repo.AssertNotCalled(t, "DeleteQuestionsByQuizID", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "DeleteQuiz", mock.Anything, mock.Anything)
}

func TestDeleteQuiz_AdminAllowed(t *testing.T) {
	quizID := uuid.New()
	admin := uuid.New().String()

	repo := new(MockRepository)
	repo.On("GetQuizByID", mock.Anything, quizID.String()).Return(&types.Quiz{ID: quizID, UserID: uuid.New()}, nil)
	repo.On("DeleteQuestionsByQuizID", mock.Anything, quizID.String()).Return(nil)
	repo.On("DeleteQuiz", mock.Anything, quizID.String()).Return(nil)
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, admin).Return(types.RoleAdmin, nil)

	svc := NewService(repo, roles, testLogger())

	err := svc.DeleteQuiz(context.Background(), admin, quizID.String())
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSetVisibility_RoleLookupFailureFailsClosed(t *testing.T) {
	quizID := uuid.New()
	stranger := uuid.New().String()

	repo := new(MockRepository)
	repo.On("GetQuizByID", mock.Anything, quizID.String()).Return(&types.Quiz{ID: quizID, UserID: uuid.New()}, nil)
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, stranger).Return(types.Role(""), errors.New("db down"))

	svc := NewService(repo, roles, testLogger())

	err := svc.SetVisibility(context.Background(), stranger, quizID.String(), true)
	assert.ErrorIs(t, err, api.ErrForbidden)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestListPublic_DefaultLimit(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListPublic", mock.Anything, 10).Return([]*types.Quiz{}, nil)

	svc := NewService(repo, new(MockRoleLookup), testLogger())

	_, err := svc.ListPublic(context.Background(), 0)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
