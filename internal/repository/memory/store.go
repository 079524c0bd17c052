// Package memory is an in-process implementation of the repository
// contracts.  It backs the test suites and the STORE_DRIVER=memory mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/repository"
)

// Store holds every table behind one mutex for reads and index updates,
// plus a lock per attempt that Update holds while the callback runs.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	nextUser, nextExam, nextAttempt, nextViolation uint64

	users      map[uint64]*model.User
	sessions   map[string]*model.Session
	exams      map[uint64]*model.Exam
	assigned   map[uint64]map[uint64]bool
	attempts   map[uint64]*model.ExamAttempt
	violations []*model.Violation

	lockMu       sync.Mutex
	attemptLocks map[uint64]*sync.Mutex
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		users:        map[uint64]*model.User{},
		sessions:     map[string]*model.Session{},
		exams:        map[uint64]*model.Exam{},
		assigned:     map[uint64]map[uint64]bool{},
		attempts:     map[uint64]*model.ExamAttempt{},
		attemptLocks: map[uint64]*sync.Mutex{},
	}
}

// Users returns the store as a UserRepository.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Sessions returns the store as a SessionRepository.
func (s *Store) Sessions() repository.SessionRepository { return sessionRepo{s} }

// Exams returns the store as an ExamRepository.
func (s *Store) Exams() repository.ExamRepository { return examRepo{s} }

// Attempts returns the store as an AttemptRepository.
func (s *Store) Attempts() repository.AttemptRepository { return attemptRepo{s} }

// Violations returns the store as a ViolationRepository.
func (s *Store) Violations() repository.ViolationRepository { return violationRepo{s} }

func (s *Store) attemptLock(id uint64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.attemptLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.attemptLocks[id] = l
	}
	return l
}

// ---- users ----

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Handle == u.Handle || (u.Email != "" && existing.Email == u.Email) {
			return model.ErrUserExists
		}
	}
	s.nextUser++
	now := s.now()
	u.ID = s.nextUser
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uint64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByHandle(_ context.Context, handle string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	handle = strings.TrimSpace(handle)
	for _, u := range r.s.users {
		if u.Handle == handle {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ---- sessions ----

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, sess *model.Session) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess.CreatedAt, sess.UpdatedAt = now, now
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (r sessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r sessionRepo) Deactivate(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok && sess.Active {
		sess.Active = false
		sess.UpdatedAt = r.s.now()
	}
	return nil
}

func (r sessionRepo) DeactivateAllForUser(_ context.Context, userID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && sess.Active {
			sess.Active = false
			sess.UpdatedAt = r.s.now()
			n++
		}
	}
	return n, nil
}

func (r sessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// ---- exams ----

type examRepo struct{ s *Store }

func cloneExam(e *model.Exam) *model.Exam {
	cp := *e
	cp.Questions = make([]model.Question, len(e.Questions))
	for i, q := range e.Questions {
		q.Options = append([]string(nil), q.Options...)
		cp.Questions[i] = q
	}
	return &cp
}

func (r examRepo) Create(_ context.Context, e *model.Exam) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExam++
	now := s.now()
	e.ID = s.nextExam
	e.CreatedAt, e.UpdatedAt = now, now
	s.exams[e.ID] = cloneExam(e)
	return nil
}

func (r examRepo) Assign(_ context.Context, examID uint64, userIDs []uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.assigned[examID]
	if !ok {
		set = map[uint64]bool{}
		s.assigned[examID] = set
	}
	for _, uid := range userIDs {
		set[uid] = true
	}
	return nil
}

func (r examRepo) GetByID(_ context.Context, id uint64) (*model.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneExam(e), nil
}

func (r examRepo) IsAssigned(_ context.Context, examID, userID uint64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.assigned[examID][userID], nil
}

func (r examRepo) ListAssigned(_ context.Context, userID uint64) ([]model.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Exam{}
	for examID, set := range r.s.assigned {
		e, ok := r.s.exams[examID]
		if !ok || !set[userID] || !e.Published || !e.Active {
			continue
		}
		out = append(out, *cloneExam(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// ---- attempts ----

type attemptRepo struct{ s *Store }

func (r attemptRepo) Create(_ context.Context, a *model.ExamAttempt) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attempts {
		if existing.UserID == a.UserID && existing.ExamID == a.ExamID && existing.InProgress() {
			return repository.ErrAttemptExists
		}
	}
	s.nextAttempt++
	now := s.now()
	a.ID = s.nextAttempt
	a.CreatedAt, a.UpdatedAt = now, now
	s.attempts[a.ID] = a.Clone()
	return nil
}

func (r attemptRepo) GetByID(_ context.Context, id uint64) (*model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a.Clone(), nil
}

func (r attemptRepo) FindInProgress(_ context.Context, userID, examID uint64) (*model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.attempts {
		if a.UserID == userID && a.ExamID == examID && a.InProgress() {
			return a.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r attemptRepo) LatestForUserExam(_ context.Context, userID, examID uint64) (*model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *model.ExamAttempt
	for _, a := range r.s.attempts {
		if a.UserID != userID || a.ExamID != examID {
			continue
		}
		if latest == nil || a.ID > latest.ID {
			latest = a
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest.Clone(), nil
}

func (r attemptRepo) ListFinishedByUser(_ context.Context, userID uint64) ([]model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.ExamAttempt{}
	for _, a := range r.s.attempts {
		if a.UserID == userID && a.SubmittedAt != nil {
			out = append(out, *a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(*out[j].SubmittedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SubmittedAt.After(*out[j].SubmittedAt)
	})
	return out, nil
}

func (r attemptRepo) ListByExam(_ context.Context, examID uint64) ([]model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.ExamAttempt{}
	for _, a := range r.s.attempts {
		if a.ExamID == examID {
			out = append(out, *a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update serializes callers per attempt.  fn works on a copy which is
// stored only when fn succeeds.
func (r attemptRepo) Update(ctx context.Context, id uint64, fn func(m *repository.AttemptMutation) error) error {
	s := r.s
	l := s.attemptLock(id)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	cur, ok := s.attempts[id]
	var work *model.ExamAttempt
	if ok {
		work = cur.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	m := &repository.AttemptMutation{Attempt: work}
	if err := fn(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m.Attempt.ID = id
	m.Attempt.UpdatedAt = s.now()
	s.attempts[id] = m.Attempt.Clone()
	if v := m.Violation; v != nil {
		s.nextViolation++
		v.ID = s.nextViolation
		cp := *v
		cp.Metadata = copyMeta(v.Metadata)
		s.violations = append(s.violations, &cp)
	}
	return nil
}

// ---- violations ----

type violationRepo struct{ s *Store }

func copyMeta(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (r violationRepo) collect(keep func(v *model.Violation) bool) []model.Violation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Violation{}
	for i := len(r.s.violations) - 1; i >= 0; i-- {
		v := r.s.violations[i]
		if keep(v) {
			cp := *v
			cp.Metadata = copyMeta(v.Metadata)
			out = append(out, cp)
		}
	}
	return out
}

func (r violationRepo) ListByAttempt(_ context.Context, attemptID uint64) ([]model.Violation, error) {
	return r.collect(func(v *model.Violation) bool { return v.AttemptID == attemptID }), nil
}

func (r violationRepo) List(_ context.Context, f repository.ViolationFilter) ([]model.Violation, error) {
	return r.collect(func(v *model.Violation) bool {
		return (f.ExamID == 0 || v.ExamID == f.ExamID) && (f.UserID == 0 || v.UserID == f.UserID)
	}), nil
}

func (r violationRepo) CountByExam(_ context.Context, examID uint64) (int, error) {
	return len(r.collect(func(v *model.Violation) bool { return v.ExamID == examID })), nil
}
