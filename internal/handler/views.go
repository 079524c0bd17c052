package handler

import (
	"github.com/iliyamo/proctored-exam/internal/model"
)

type answerView struct {
	QuestionIndex  int   `json:"questionIndex"`
	SelectedAnswer *int  `json:"selectedAnswer"`
	IsCorrect      *bool `json:"isCorrect,omitempty"`
}

// attemptView is the client shape of an attempt.  Correctness and score
// are withheld while the attempt is still in progress.
type attemptView struct {
	ID                uint64              `json:"id"`
	ExamID            uint64              `json:"examId"`
	Status            model.AttemptStatus `json:"status"`
	Answers           []answerView        `json:"answers"`
	Score             *int                `json:"score,omitempty"`
	TotalQuestions    int                 `json:"totalQuestions"`
	ViolationCount    int                 `json:"violationCount"`
	MaxViolations     int                 `json:"maxViolations"`
	WarningsRemaining int                 `json:"warningsRemaining"`
	StartTime         string              `json:"startTime"`
	EndTime           *string             `json:"endTime"`
	SubmittedAt       *string             `json:"submittedAt"`
}

func newAttemptView(a *model.ExamAttempt) attemptView {
	done := !a.InProgress()
	v := attemptView{
		ID:                a.ID,
		ExamID:            a.ExamID,
		Status:            a.Status,
		Answers:           make([]answerView, len(a.Answers)),
		TotalQuestions:    a.TotalQuestions,
		ViolationCount:    a.ViolationCount,
		MaxViolations:     a.MaxViolations,
		WarningsRemaining: a.WarningsRemaining(),
		StartTime:         *formatTime(&a.StartTime),
		EndTime:           formatTime(a.EndTime),
		SubmittedAt:       formatTime(a.SubmittedAt),
	}
	for i, ans := range a.Answers {
		av := answerView{QuestionIndex: ans.QuestionIndex, SelectedAnswer: ans.Selected}
		if done {
			ok := ans.IsCorrect
			av.IsCorrect = &ok
		}
		v.Answers[i] = av
	}
	if done {
		score := a.Score
		v.Score = &score
	}
	return v
}

type violationView struct {
	ID          uint64         `json:"id"`
	AttemptID   uint64         `json:"attemptId"`
	UserID      uint64         `json:"userId"`
	ExamID      uint64         `json:"examId"`
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Timestamp   string         `json:"timestamp"`
}

func newViolationView(v *model.Violation) violationView {
	meta := v.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return violationView{
		ID:          v.ID,
		AttemptID:   v.AttemptID,
		UserID:      v.UserID,
		ExamID:      v.ExamID,
		Type:        string(v.Type),
		Severity:    string(v.Severity),
		Description: v.Description,
		Metadata:    meta,
		Timestamp:   *formatTime(&v.CreatedAt),
	}
}

func newViolationViews(vs []model.Violation) []violationView {
	out := make([]violationView, len(vs))
	for i := range vs {
		out[i] = newViolationView(&vs[i])
	}
	return out
}
