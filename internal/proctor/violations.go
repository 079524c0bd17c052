package proctor

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/queue"
	"github.com/iliyamo/proctored-exam/internal/repository"
)

// maxDescriptionLen bounds stored descriptions; longer input is truncated.
const maxDescriptionLen = 500

// ViolationReport is one incident reported by a client sensor.
type ViolationReport struct {
	AttemptID   uint64
	UserID      uint64
	Type        string
	Description string
	Metadata    map[string]any
}

// ViolationResult tells the client what to render: the new count, whether
// the attempt was auto-submitted and, if not, how many warnings remain.
type ViolationResult struct {
	Violation         *model.Violation
	ViolationCount    int
	MaxViolations     int
	AutoSubmitted     bool
	WarningsRemaining *int
}

// LogViolation appends a violation to an in-progress attempt and
// increments its counter by one.  When the count reaches the threshold the
// attempt is auto-submitted in the same atomic step, scored on the answers
// recorded so far.
func (s *Service) LogViolation(ctx context.Context, r ViolationReport, now time.Time) (*ViolationResult, error) {
	vt, err := model.ParseViolationType(strings.TrimSpace(r.Type))
	if err != nil {
		return nil, err
	}
	pre, err := s.loadOwned(ctx, r.AttemptID, r.UserID)
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

	desc := s.sanitizeDescription(r.Description, vt)
	meta := s.sanitizeMetadata(r.Metadata)

	var (
		after *model.ExamAttempt
		rec   *model.Violation
		auto  bool
	)
	err = s.update(ctx, r.AttemptID, func(m *repository.AttemptMutation) error {
		a := m.Attempt
		if a.UserID != r.UserID {
			return model.ErrAttemptNotFound
		}
		if !a.InProgress() {
			return model.ErrAttemptNotActive
		}
		a.ViolationCount++
		auto = false
		if a.ViolationCount >= a.MaxViolations {
			score := ComputeScore(a, exam)
			if err := a.Finish(model.StatusAutoSubmitted, score.Correct, now); err != nil {
				return err
			}
			auto = true
		}
		rec = &model.Violation{
			AttemptID:   a.ID,
			UserID:      a.UserID,
			ExamID:      a.ExamID,
			Type:        vt,
			Severity:    vt.Severity(),
			Description: desc,
			Metadata:    meta,
			CreatedAt:   now,
		}
		m.Violation = rec
		after = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordViolation(string(rec.Type), string(rec.Severity))
	s.logger.InfoContext(ctx, "violation logged",
		"attempt_id", after.ID, "user_id", after.UserID, "type", rec.Type,
		"severity", rec.Severity, "count", after.ViolationCount)

	res := &ViolationResult{
		Violation:      rec,
		ViolationCount: after.ViolationCount,
		MaxViolations:  after.MaxViolations,
		AutoSubmitted:  auto,
	}
	if auto {
		s.logger.WarnContext(ctx, "attempt auto-submitted",
			"attempt_id", after.ID, "user_id", after.UserID, "score", after.Score, "violations", after.ViolationCount)
	} else {
		left := after.WarningsRemaining()
		res.WarningsRemaining = &left
	}

	ev := queue.ViolationLoggedEvent{
		ViolationID:    rec.ID,
		AttemptID:      rec.AttemptID,
		UserID:         rec.UserID,
		ExamID:         rec.ExamID,
		Type:           string(rec.Type),
		Severity:       string(rec.Severity),
		ViolationCount: after.ViolationCount,
		MaxViolations:  after.MaxViolations,
		AutoSubmitted:  auto,
		OccurredAt:     now.UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishViolationLogged(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.WarnContext(ctx, "violation.logged publish failed", "attempt_id", rec.AttemptID, "error", err)
	}
	if auto {
		s.publishFinished(ctx, after)
	}
	return res, nil
}

// AttemptViolations is an attempt's violation history.
type AttemptViolations struct {
	Violations     []model.Violation
	ViolationCount int
	MaxViolations  int
}

// ListViolations returns the user's violations for one attempt, newest
// first.
func (s *Service) ListViolations(ctx context.Context, attemptID, userID uint64) (*AttemptViolations, error) {
	a, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	vs, err := s.violations.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return &AttemptViolations{Violations: vs, ViolationCount: a.ViolationCount, MaxViolations: a.MaxViolations}, nil
}

func (s *Service) sanitizeDescription(in string, vt model.ViolationType) string {
	d := strings.TrimSpace(s.policy.Sanitize(in))
	if d == "" {
		return "Violation: " + string(vt)
	}
	if r := []rune(d); len(r) > maxDescriptionLen {
		d = string(r[:maxDescriptionLen])
	}
	return d
}

// sanitizeMetadata strips markup from string values, recursing into nested
// objects and arrays.  Nil input yields an empty object.
func (s *Service) sanitizeMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[s.policy.Sanitize(k)] = s.sanitizeValue(v)
	}
	return out
}

func (s *Service) sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return s.policy.Sanitize(t)
	case map[string]any:
		return s.sanitizeMetadata(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = s.sanitizeValue(e)
		}
		return out
	}
	return v
}
