package repository

import (
	"context"
	"time"

	"github.com/iliyamo/proctored-exam/internal/model"
)

// UserRepository persists accounts.
type UserRepository interface {
	// Create inserts the user and sets its ID.  Returns model.ErrUserExists
	// when the handle or email is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByID returns ErrNotFound when no such user exists.
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByHandle(ctx context.Context, handle string) (*model.User, error)
}

// SessionRepository persists login sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	// GetByID returns ErrNotFound when the session does not exist.
	GetByID(ctx context.Context, id string) (*model.Session, error)
	// Deactivate is idempotent and does not fail for unknown ids.
	Deactivate(ctx context.Context, id string) error
	DeactivateAllForUser(ctx context.Context, userID uint64) (int64, error)
	// DeleteExpired removes sessions whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExamRepository exposes the exam metadata the proctor consumes.  Exam
// authoring is owned elsewhere; Create and Assign exist for fixtures.
type ExamRepository interface {
	Create(ctx context.Context, e *model.Exam) error
	Assign(ctx context.Context, examID uint64, userIDs []uint64) error
	// GetByID returns ErrNotFound when the exam does not exist.
	GetByID(ctx context.Context, id uint64) (*model.Exam, error)
	IsAssigned(ctx context.Context, examID, userID uint64) (bool, error)
	// ListAssigned returns published, active exams assigned to userID.
	ListAssigned(ctx context.Context, userID uint64) ([]model.Exam, error)
}

// AttemptMutation is the unit of work handed to AttemptRepository.Update.
// The callback mutates Attempt in place and may set Violation to append a
// record in the same atomic step.
type AttemptMutation struct {
	Attempt   *model.ExamAttempt
	Violation *model.Violation
}

// AttemptRepository persists exam attempts.
type AttemptRepository interface {
	// Create inserts a new in-progress attempt.  Returns ErrAttemptExists
	// when the user already has an in-progress attempt for the exam.
	Create(ctx context.Context, a *model.ExamAttempt) error
	// GetByID returns ErrNotFound when the attempt does not exist.
	GetByID(ctx context.Context, id uint64) (*model.ExamAttempt, error)
	FindInProgress(ctx context.Context, userID, examID uint64) (*model.ExamAttempt, error)
	LatestForUserExam(ctx context.Context, userID, examID uint64) (*model.ExamAttempt, error)
	ListFinishedByUser(ctx context.Context, userID uint64) ([]model.ExamAttempt, error)
	ListByExam(ctx context.Context, examID uint64) ([]model.ExamAttempt, error)
	// Update runs fn against the attempt while holding its write lock and
	// persists the result (plus m.Violation, if set) atomically.  If fn
	// returns an error nothing is written.  Lost races surface as
	// model.ErrConcurrentUpdate.
	Update(ctx context.Context, id uint64, fn func(m *AttemptMutation) error) error
}

// ViolationFilter narrows admin listings; zero values mean "any".
type ViolationFilter struct {
	ExamID uint64
	UserID uint64
}

// ViolationRepository reads violation records.  Writes go through
// AttemptRepository.Update.
type ViolationRepository interface {
	// ListByAttempt returns violations newest first.
	ListByAttempt(ctx context.Context, attemptID uint64) ([]model.Violation, error)
	List(ctx context.Context, f ViolationFilter) ([]model.Violation, error)
	CountByExam(ctx context.Context, examID uint64) (int, error)
}
