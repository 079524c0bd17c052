package proctor

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/repository"
)

// StartResult is a started (or resumed) attempt plus the sanitized exam.
type StartResult struct {
	Attempt *model.ExamAttempt
	Exam    model.PublicExam
	Resumed bool
}

// CheckAccess verifies that userID may see examID at now: the exam exists,
// the user is assigned and the exam is published, active and in its
// window.
func (s *Service) CheckAccess(ctx context.Context, userID, examID uint64, now time.Time) (*model.Exam, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	ok, err := s.exams.IsAssigned(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrNotAssigned
	}
	if !exam.Open(now) {
		return nil, model.ErrNotAvailable
	}
	return exam, nil
}

// StartAttempt opens an attempt for userID on examID.  An existing
// in-progress attempt is returned unchanged.
func (s *Service) StartAttempt(ctx context.Context, userID, examID uint64, now time.Time) (*StartResult, error) {
	exam, err := s.CheckAccess(ctx, userID, examID, now)
	if err != nil {
		return nil, err
	}

	existing, err := s.attempts.FindInProgress(ctx, userID, examID)
	if err == nil {
		return &StartResult{Attempt: existing, Exam: exam.Sanitize(), Resumed: true}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	a := model.NewAttempt(userID, exam, s.maxViolations, now)
	if err := s.attempts.Create(ctx, a); err != nil {
		if !errors.Is(err, repository.ErrAttemptExists) {
			return nil, err
		}
		// Lost a concurrent start; the winner's attempt is the one to resume.
		existing, err := s.attempts.FindInProgress(ctx, userID, examID)
		if err != nil {
			return nil, err
		}
		return &StartResult{Attempt: existing, Exam: exam.Sanitize(), Resumed: true}, nil
	}
	s.logger.InfoContext(ctx, "attempt started", "attempt_id", a.ID, "user_id", userID, "exam_id", examID)
	return &StartResult{Attempt: a, Exam: exam.Sanitize()}, nil
}

// RecordAnswer stores selection for questionIndex and recomputes its
// correctness against the answer key.  Re-answering overwrites.
func (s *Service) RecordAnswer(ctx context.Context, attemptID, userID uint64, questionIndex, selection int) (*model.ExamAttempt, error) {
	pre, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	exam, err := s.loadExam(ctx, pre.ExamID)
	if err != nil {
		return nil, err
	}
	if questionIndex < 0 || questionIndex >= len(exam.Questions) {
		return nil, model.ErrInvalidQuestionIndex
	}
	q := exam.Questions[questionIndex]
	if selection < 0 || selection >= len(q.Options) {
		return nil, model.ErrInvalidSelection
	}

	var out *model.ExamAttempt
	err = s.update(ctx, attemptID, func(m *repository.AttemptMutation) error {
		a := m.Attempt
		if a.UserID != userID {
			return model.ErrAttemptNotFound
		}
		if !a.InProgress() {
			return model.ErrAttemptNotActive
		}
		if questionIndex >= len(a.Answers) {
			return model.ErrInvalidQuestionIndex
		}
		sel := selection
		a.Answers[questionIndex] = model.Answer{
			QuestionIndex: questionIndex,
			Selected:      &sel,
			IsCorrect:     sel == q.CorrectAnswer,
		}
		out = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitResult is returned by Submit.
type SubmitResult struct {
	Score          int
	TotalQuestions int
	Status         model.AttemptStatus
	SubmittedAt    time.Time
}

// Submit scores the attempt and moves it to completed.  A second call, or
// a call after auto-submission, fails with ErrAttemptNotActive.
func (s *Service) Submit(ctx context.Context, attemptID, userID uint64, now time.Time) (*SubmitResult, error) {
	pre, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if !pre.InProgress() {
		return nil, model.ErrAttemptNotActive
	}
	exam, err := s.loadExam(ctx, pre.ExamID)
	if err != nil {
		return nil, err
	}

	var done *model.ExamAttempt
	err = s.update(ctx, attemptID, func(m *repository.AttemptMutation) error {
		a := m.Attempt
		if a.UserID != userID {
			return model.ErrAttemptNotFound
		}
		score := ComputeScore(a, exam)
		if err := a.Finish(model.StatusCompleted, score.Correct, now); err != nil {
			return err
		}
		done = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "attempt submitted",
		"attempt_id", done.ID, "user_id", userID, "score", done.Score, "total", done.TotalQuestions)
	s.publishFinished(ctx, done)
	return &SubmitResult{
		Score:          done.Score,
		TotalQuestions: done.TotalQuestions,
		Status:         done.Status,
		SubmittedAt:    *done.SubmittedAt,
	}, nil
}

// GetAttempt returns one of the user's attempts.
func (s *Service) GetAttempt(ctx context.Context, attemptID, userID uint64) (*model.ExamAttempt, error) {
	return s.loadOwned(ctx, attemptID, userID)
}

// LatestAttempt returns the user's most recent attempt for examID.
func (s *Service) LatestAttempt(ctx context.Context, userID, examID uint64) (*model.ExamAttempt, error) {
	a, err := s.attempts.LatestForUserExam(ctx, userID, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrAttemptNotFound
	}
	return a, err
}

// ListCompleted returns the user's submitted attempts, newest first.
func (s *Service) ListCompleted(ctx context.Context, userID uint64) ([]model.ExamAttempt, error) {
	return s.attempts.ListFinishedByUser(ctx, userID)
}

// AssignedExams returns the sanitized exams assigned to userID.
func (s *Service) AssignedExams(ctx context.Context, userID uint64) ([]model.PublicExam, error) {
	exams, err := s.exams.ListAssigned(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicExam, 0, len(exams))
	for i := range exams {
		out = append(out, exams[i].Sanitize())
	}
	return out, nil
}
