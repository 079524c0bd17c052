package proctor

import (
	"context"
	"errors"

	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/repository"
)

// MonitoringStats are exam-wide totals.
type MonitoringStats struct {
	TotalAttempts     int `json:"totalAttempts"`
	CompletedAttempts int `json:"completedAttempts"`
	TotalViolations   int `json:"totalViolations"`
}

// StudentRow summarizes one attempt on the monitoring screen.
type StudentRow struct {
	AttemptID      uint64              `json:"attemptId"`
	UserID         uint64              `json:"userId"`
	Handle         string              `json:"handle"`
	Name           string              `json:"name"`
	Status         model.AttemptStatus `json:"status"`
	Score          int                 `json:"score"`
	ViolationCount int                 `json:"violationCount"`
	SubmittedAt    *string             `json:"submittedAt"`
}

// Monitoring is the admin view of one exam.
type Monitoring struct {
	ExamID      uint64          `json:"examId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Stats       MonitoringStats `json:"stats"`
	Students    []StudentRow    `json:"studentsAttempted"`
}

// Monitoring aggregates attempts and violations for examID.
func (s *Service) Monitoring(ctx context.Context, examID uint64) (*Monitoring, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	total, err := s.violations.CountByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	out := &Monitoring{
		ExamID:      exam.ID,
		Title:       exam.Title,
		Description: exam.Description,
		Stats:       MonitoringStats{TotalAttempts: len(attempts), TotalViolations: total},
		Students:    make([]StudentRow, 0, len(attempts)),
	}
	users := map[uint64]*model.User{}
	for _, a := range attempts {
		if a.SubmittedAt != nil {
			out.Stats.CompletedAttempts++
		}
		u, ok := users[a.UserID]
		if !ok {
			u, err = s.users.GetByID(ctx, a.UserID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			users[a.UserID] = u
		}
		row := StudentRow{
			AttemptID:      a.ID,
			UserID:         a.UserID,
			Status:         a.Status,
			Score:          a.Score,
			ViolationCount: a.ViolationCount,
		}
		if u != nil {
			row.Handle, row.Name = u.Handle, u.Name
		}
		if a.SubmittedAt != nil {
			ts := a.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			row.SubmittedAt = &ts
		}
		out.Students = append(out.Students, row)
	}
	return out, nil
}

// ListAllViolations returns violations across attempts, newest first.
func (s *Service) ListAllViolations(ctx context.Context, f repository.ViolationFilter) ([]model.Violation, error) {
	return s.violations.List(ctx, f)
}
