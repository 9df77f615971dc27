package attempt

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/internal/types"
)

func threeQuestions() []types.Question {
	return []types.Question{
		{
			ID:           uuid.New(),
			QuestionText: "Q1",
			Options: []types.Option{
				{ID: "a1", Text: "A"},
				{ID: "b1", Text: "B"},
			},
			CorrectAnswer: "a1",
			Position:      1,
		},
		{
			ID:           uuid.New(),
			QuestionText: "Q2",
			Options: []types.Option{
				{ID: "a2", Text: "A"},
				{ID: "b2", Text: "B"},
			},
			CorrectAnswer: "b2",
			Position:      2,
		},
		{
			ID:           uuid.New(),
			QuestionText: "Q3",
			Options: []types.Option{
				{ID: "a3", Text: "A"},
				{ID: "b3", Text: "B"},
			},
			CorrectAnswer: "a3",
			Position:      3,
		},
	}
}

func TestNext_RequiresAnswer(t *testing.T) {
	a := New("quiz-1", "Capitals", threeQuestions())

	assert.False(t, a.Next(), "advancing without an answer should be refused")
	assert.Equal(t, 0, a.CurrentIndex)

	a.Select("a1")
	assert.True(t, a.Next())
	assert.Equal(t, 1, a.CurrentIndex)
	assert.False(t, a.Submitted)
}

func TestNext_LastQuestionSubmits(t *testing.T) {
	a := New("quiz-1", "Capitals", threeQuestions())

	a.Select("a1")
	require.True(t, a.Next())
	a.Select("b2")
	require.True(t, a.Next())
	a.Select("a3")
	require.True(t, a.Next())

	assert.True(t, a.Submitted)
	assert.False(t, a.Next(), "a submitted attempt must not advance further")
}

func TestPrevious_FlooredAtFirstQuestion(t *testing.T) {
	a := New("quiz-1", "Capitals", threeQuestions())

	a.Previous()
	assert.Equal(t, 0, a.CurrentIndex)

	a.Select("a1")
	a.Next()
	a.Previous()
	assert.Equal(t, 0, a.CurrentIndex)
	assert.Equal(t, "a1", a.Answers[0], "going back keeps the prior answer")
}

func TestPrevious_NeverUnsubmits(t *testing.T) {
	a := New("quiz-1", "Capitals", threeQuestions())
	for range a.Questions {
		a.Select("a1")
		a.Next()
	}
	require.True(t, a.Submitted)

	a.Previous()
	assert.True(t, a.Submitted)
}

func TestRestart_OnlyFromSubmitted(t *testing.T) {
	a := New("quiz-1", "Capitals", threeQuestions())

	a.Select("a1")
	a.Next()
	assert.False(t, a.Restart(), "restart mid-attempt should be refused")
	assert.Equal(t, 1, a.CurrentIndex)

	a.Select("b2")
	a.Next()
	a.Select("a3")
	a.Next()
	require.True(t, a.Submitted)

	assert.True(t, a.Restart())
	assert.False(t, a.Submitted)
	assert.Equal(t, 0, a.CurrentIndex)
	assert.Empty(t, a.Answers)
}

func TestSelect_IgnoredAfterSubmission(t *testing.T) {
	a := New("quiz-1", "Capitals", threeQuestions())
	for range a.Questions {
		a.Select("a1")
		a.Next()
	}
	require.True(t, a.Submitted)

	before := a.Score()
	a.Select("b1")
	assert.Equal(t, before, a.Score())
}

func TestResult_Scoring(t *testing.T) {
	tests := []struct {
		name           string
		answers        []string
		wantScore      int
		wantPercentage int
		wantArc        float64
	}{
		{"all correct", []string{"a1", "b2", "a3"}, 3, 100, 251},
		{"two of three", []string{"a1", "b2", "b3"}, 2, 67, 167},
		{"one of three", []string{"a1", "a2", "b3"}, 1, 33, 84},
		{"none correct", []string{"b1", "a2", "b3"}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New("quiz-1", "Capitals", threeQuestions())
			for _, answer := range tt.answers {
				a.Select(answer)
				a.Next()
			}
			require.True(t, a.Submitted)

			res := a.Result()
			assert.Equal(t, tt.wantScore, res.Score)
			assert.Equal(t, 3, res.Total)
			assert.Equal(t, tt.wantPercentage, res.Percentage)
			assert.Equal(t, tt.wantArc, res.Arc)
		})
	}
}

func TestEmptyQuiz_IsImmediatelySubmitted(t *testing.T) {
	a := New("quiz-1", "Empty", nil)

	assert.True(t, a.Submitted)
	assert.False(t, a.Next())

	res := a.Result()
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0, res.Percentage)
	assert.Equal(t, float64(0), res.Arc)

	// Restarting an empty quiz leaves it in the terminal state.
	assert.True(t, a.Restart())
	assert.True(t, a.Submitted)
}

func TestView_HidesCorrectAnswersInProgress(t *testing.T) {
	a := New("quiz-1", "Capitals", threeQuestions())

	v := a.View()
	require.NotNil(t, v.Question)
	assert.Equal(t, "Q1", v.Question.Text)
	for _, o := range v.Question.Options {
		assert.False(t, o.IsCorrect, "option correctness must not leak mid-attempt")
	}
	assert.Nil(t, v.Result)

	a.Select("a1")
	v = a.View()
	assert.Equal(t, "a1", v.Selected)
}

func TestView_SubmittedCarriesResult(t *testing.T) {
	a := New("quiz-1", "Capitals", threeQuestions())
	for range a.Questions {
		a.Select("a1")
		a.Next()
	}

	v := a.View()
	assert.True(t, v.Submitted)
	assert.Nil(t, v.Question)
	require.NotNil(t, v.Result)
	assert.Equal(t, 1, v.Result.Score)
}
