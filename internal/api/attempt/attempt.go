package attempt

import (
	"math"

	"github.com/quizdeck/quizdeck-api/internal/types"
)

// fullArc is the circumference used by the score dial on the results view.
const fullArc = 251.2

// Attempt is the in-progress state of one user taking one quiz. Answers are
// kept per question index so revisiting a question shows the prior selection.
type Attempt struct {
	QuizID       string           `json:"quizId"`
	QuizTitle    string           `json:"quizTitle"`
	Questions    []types.Question `json:"-"`
	CurrentIndex int              `json:"currentIndex"`
	Answers      map[int]string   `json:"answers"`
	Submitted    bool             `json:"submitted"`
}

func New(quizID, quizTitle string, questions []types.Question) *Attempt {
	a := &Attempt{
		QuizID:    quizID,
		QuizTitle: quizTitle,
		Questions: questions,
		Answers:   make(map[int]string),
	}
	// A quiz with no questions has nothing to answer, so the attempt is
	// already in its terminal state.
	if len(questions) == 0 {
		a.Submitted = true
	}
	return a
}

// Select records an option for the current question. Selecting after
// submission, or re-selecting, simply overwrites nothing or the prior answer.
func (a *Attempt) Select(optionID string) {
	if a.Submitted {
		return
	}
	a.Answers[a.CurrentIndex] = optionID
}

// Next advances to the following question. It refuses to move until the
// current question has an answer; advancing past the last question submits
// the attempt.
func (a *Attempt) Next() bool {
	if a.Submitted {
		return false
	}
	if _, answered := a.Answers[a.CurrentIndex]; !answered {
		return false
	}
	if a.CurrentIndex >= len(a.Questions)-1 {
		a.Submitted = true
		return true
	}
	a.CurrentIndex++
	return true
}

// Previous steps back one question, floored at the first. It never
// un-submits a finished attempt.
func (a *Attempt) Previous() {
	if a.Submitted {
		return
	}
	if a.CurrentIndex > 0 {
		a.CurrentIndex--
	}
}

// Restart clears all progress so the quiz can be taken again. It only acts
// on a submitted attempt; mid-attempt restarts are not a thing.
func (a *Attempt) Restart() bool {
	if !a.Submitted {
		return false
	}
	a.CurrentIndex = 0
	a.Answers = make(map[int]string)
	a.Submitted = len(a.Questions) == 0
	return true
}

// Score counts answers matching each question's correct option.
func (a *Attempt) Score() int {
	score := 0
	for i, q := range a.Questions {
		if selected, ok := a.Answers[i]; ok && selected == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// Result is the summary shown after submission.
type Result struct {
	QuizID     string  `json:"quizId"`
	QuizTitle  string  `json:"quizTitle"`
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage int     `json:"percentage"`
	Arc        float64 `json:"arc"`
}

// Result computes the final score summary. The arc value is the filled
// portion of the results dial, proportional to the score.
func (a *Attempt) Result() Result {
	total := len(a.Questions)
	res := Result{
		QuizID:    a.QuizID,
		QuizTitle: a.QuizTitle,
		Total:     total,
	}
	if total == 0 {
		return res
	}
	score := a.Score()
	ratio := float64(score) / float64(total)
	res.Score = score
	res.Percentage = int(math.Round(ratio * 100))
	res.Arc = math.Round(ratio * fullArc)
	return res
}

// View is the state payload sent to clients. Correct answers are withheld
// while the attempt is still in progress.
type View struct {
	QuizID         string        `json:"quizId"`
	QuizTitle      string        `json:"quizTitle"`
	TotalQuestions int           `json:"totalQuestions"`
	CurrentIndex   int           `json:"currentIndex"`
	Question       *QuestionView `json:"question,omitempty"`
	Selected       string        `json:"selected,omitempty"`
	Submitted      bool          `json:"submitted"`
	Result         *Result       `json:"result,omitempty"`
}

type QuestionView struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Options []types.Option `json:"options"`
}

func (a *Attempt) View() View {
	v := View{
		QuizID:         a.QuizID,
		QuizTitle:      a.QuizTitle,
		TotalQuestions: len(a.Questions),
		CurrentIndex:   a.CurrentIndex,
		Submitted:      a.Submitted,
	}
	if a.Submitted {
		r := a.Result()
		v.Result = &r
		return v
	}
	q := a.Questions[a.CurrentIndex]
	opts := make([]types.Option, len(q.Options))
	for i, o := range q.Options {
		opts[i] = types.Option{ID: o.ID, Text: o.Text}
	}
	v.Question = &QuestionView{ID: q.ID.String(), Text: q.QuestionText, Options: opts}
	v.Selected = a.Answers[a.CurrentIndex]
	return v
}
