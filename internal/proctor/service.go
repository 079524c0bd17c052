// Package proctor owns the exam attempt lifecycle: starting attempts,
// recording answers, submission, violation accumulation with auto-submit
// and scoring.  Every mutation of an attempt goes through
// AttemptRepository.Update so operations on one attempt are linearized
// while distinct attempts proceed in parallel.
package proctor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/iliyamo/proctored-exam/internal/metrics"
	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/queue"
	"github.com/iliyamo/proctored-exam/internal/repository"
)

// DefaultMaxViolations is the threshold used when none is configured.
const DefaultMaxViolations = 3

// Deps are the collaborators of a Service.
type Deps struct {
	Users      repository.UserRepository
	Exams      repository.ExamRepository
	Attempts   repository.AttemptRepository
	Violations repository.ViolationRepository
	Publisher  queue.Publisher
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// Service implements the attempt ledger, violation accumulator and
// scoring engine.
type Service struct {
	users      repository.UserRepository
	exams      repository.ExamRepository
	attempts   repository.AttemptRepository
	violations repository.ViolationRepository
	publisher  queue.Publisher
	metrics    metrics.Recorder
	logger     *slog.Logger
	policy     *bluemonday.Policy

	maxViolations int
}

// NewService builds a Service.  maxViolations below 1 falls back to
// DefaultMaxViolations.
func NewService(d Deps, maxViolations int) *Service {
	if maxViolations < 1 {
		maxViolations = DefaultMaxViolations
	}
	s := &Service{
		users:         d.Users,
		exams:         d.Exams,
		attempts:      d.Attempts,
		violations:    d.Violations,
		publisher:     d.Publisher,
		metrics:       d.Metrics,
		logger:        d.Logger,
		policy:        bluemonday.StrictPolicy(),
		maxViolations: maxViolations,
	}
	if s.publisher == nil {
		s.publisher = queue.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// MaxViolations returns the threshold new attempts are created with.
func (s *Service) MaxViolations() int { return s.maxViolations }

// update runs fn under the attempt lock, retrying once when the store
// reports a lost race.
func (s *Service) update(ctx context.Context, attemptID uint64, fn func(m *repository.AttemptMutation) error) error {
	err := s.attempts.Update(ctx, attemptID, fn)
	if errors.Is(err, model.ErrConcurrentUpdate) {
		s.logger.WarnContext(ctx, "attempt update lost race, retrying", "attempt_id", attemptID)
		err = s.attempts.Update(ctx, attemptID, fn)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return model.ErrAttemptNotFound
	}
	return err
}

// loadOwned returns the attempt when it belongs to userID.  Attempts owned
// by someone else are reported as missing.
func (s *Service) loadOwned(ctx context.Context, attemptID, userID uint64) (*model.ExamAttempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, model.ErrAttemptNotFound
	}
	return a, nil
}

func (s *Service) loadExam(ctx context.Context, examID uint64) (*model.Exam, error) {
	e, err := s.exams.GetByID(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrExamNotFound
	}
	return e, err
}

// publishFinished emits attempt.finished after commit.  Delivery failures
// are logged and swallowed.
func (s *Service) publishFinished(ctx context.Context, a *model.ExamAttempt) {
	s.metrics.RecordSubmission(string(a.Status))
	ev := queue.AttemptFinishedEvent{
		AttemptID:      a.ID,
		UserID:         a.UserID,
		ExamID:         a.ExamID,
		Status:         string(a.Status),
		Score:          a.Score,
		TotalQuestions: a.TotalQuestions,
		ViolationCount: a.ViolationCount,
	}
	if a.SubmittedAt != nil {
		ev.SubmittedAt = a.SubmittedAt.UTC().Format(time.RFC3339)
	}
	if err := s.publisher.PublishAttemptFinished(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.WarnContext(ctx, "attempt.finished publish failed", "attempt_id", a.ID, "error", err)
	}
}
