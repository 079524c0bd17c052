package model

import "time"

// AttemptStatus is the closed set of attempt lifecycle states.
type AttemptStatus string

const (
	StatusInProgress    AttemptStatus = "in_progress"
	StatusCompleted     AttemptStatus = "completed"
	StatusAutoSubmitted AttemptStatus = "auto_submitted"
	// StatusFlagged is reserved for manual review; no flow produces it yet.
	StatusFlagged AttemptStatus = "flagged"
)

// transitions lists every legal move.  Terminal states have no entry.
var transitions = map[AttemptStatus]map[AttemptStatus]bool{
	StatusInProgress: {
		StatusCompleted:     true,
		StatusAutoSubmitted: true,
		StatusFlagged:       true,
	},
}

// Valid reports whether s is one of the declared states.
func (s AttemptStatus) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusAutoSubmitted, StatusFlagged:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s AttemptStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether s -> to is legal.
func (s AttemptStatus) CanTransitionTo(to AttemptStatus) bool {
	return transitions[s][to]
}

// Answer is one answer slot.  Selected is nil until the student picks an
// option; IsCorrect is always computed server-side.
type Answer struct {
	QuestionIndex int
	Selected      *int
	IsCorrect     bool
}

// ExamAttempt is a single user's run through an exam.  It is mutated only
// while Status is in_progress and becomes immutable afterwards.
type ExamAttempt struct {
	ID             uint64
	UserID         uint64
	ExamID         uint64
	Answers        []Answer
	Score          int
	TotalQuestions int
	ViolationCount int
	MaxViolations  int
	Status         AttemptStatus
	StartTime      time.Time
	EndTime        *time.Time
	SubmittedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAttempt builds a fresh in-progress attempt with one unselected answer
// slot per question.
func NewAttempt(userID uint64, exam *Exam, maxViolations int, now time.Time) *ExamAttempt {
	answers := make([]Answer, len(exam.Questions))
	for i := range answers {
		answers[i] = Answer{QuestionIndex: i}
	}
	return &ExamAttempt{
		UserID:         userID,
		ExamID:         exam.ID,
		Answers:        answers,
		TotalQuestions: len(exam.Questions),
		MaxViolations:  maxViolations,
		Status:         StatusInProgress,
		StartTime:      now,
	}
}

// InProgress reports whether the attempt still accepts answers and
// violations.
func (a *ExamAttempt) InProgress() bool {
	return a.Status == StatusInProgress
}

// Finish moves the attempt into a terminal state, recording the score and
// the end/submission times.  Illegal transitions (anything not leaving
// in_progress) return ErrAttemptNotActive and leave the attempt untouched.
func (a *ExamAttempt) Finish(to AttemptStatus, score int, now time.Time) error {
	if !a.Status.CanTransitionTo(to) {
		if a.Status.Terminal() {
			return ErrAttemptNotActive
		}
		return ErrIllegalTransition
	}
	end := now
	submitted := now
	a.Status = to
	a.Score = score
	a.EndTime = &end
	a.SubmittedAt = &submitted
	return nil
}

// WarningsRemaining is the number of further violations tolerated before
// auto-submission.
func (a *ExamAttempt) WarningsRemaining() int {
	if n := a.MaxViolations - a.ViolationCount; n > 0 {
		return n
	}
	return 0
}

// Clone returns a deep copy, so storage layers can hand out snapshots
// without sharing answer slices.
func (a *ExamAttempt) Clone() *ExamAttempt {
	cp := *a
	cp.Answers = make([]Answer, len(a.Answers))
	for i, ans := range a.Answers {
		if ans.Selected != nil {
			v := *ans.Selected
			ans.Selected = &v
		}
		cp.Answers[i] = ans
	}
	if a.EndTime != nil {
		t := *a.EndTime
		cp.EndTime = &t
	}
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		cp.SubmittedAt = &t
	}
	return &cp
}
