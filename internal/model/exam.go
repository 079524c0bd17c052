package model

import "time"

// Question is one multiple-choice item.  CorrectAnswer is the server-held
// answer key and must never leave the service.
type Question struct {
	Prompt        string
	Options       []string
	CorrectAnswer int
}

// Exam is the authoring-side shape the proctor depends on: an ordered
// question list, a publish/active flag and an availability window.
// Assignment lives in the `exam_assignments` table.
type Exam struct {
	ID          uint64
	Title       string
	Description string
	DurationMin int
	Questions   []Question
	StartTime   time.Time
	EndTime     time.Time
	Published   bool
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open reports whether the exam can be taken at now: published, active and
// inside [StartTime, EndTime].
func (e *Exam) Open(now time.Time) bool {
	if !e.Published || !e.Active {
		return false
	}
	return !now.Before(e.StartTime) && !now.After(e.EndTime)
}

// PublicQuestion is a question stripped of its answer key.
type PublicQuestion struct {
	Index   int      `json:"index"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// PublicExam is the sanitized exam shown to students.
type PublicExam struct {
	ID          uint64           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	DurationMin int              `json:"duration"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Questions   []PublicQuestion `json:"questions"`
}

// Sanitize returns the exam without correct-answer indices.
func (e *Exam) Sanitize() PublicExam {
	qs := make([]PublicQuestion, len(e.Questions))
	for i, q := range e.Questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		qs[i] = PublicQuestion{Index: i, Prompt: q.Prompt, Options: opts}
	}
	return PublicExam{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		DurationMin: e.DurationMin,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Questions:   qs,
	}
}
