package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/iliyamo/proctored-exam/internal/model"
)

// ViolationRepo reads the append-only `violations` table.  Inserts happen
// inside AttemptRepo.Update so the counter and the record never diverge.
type ViolationRepo struct {
	db *sql.DB
}

// NewViolationRepo returns a new ViolationRepo bound to the given database.
func NewViolationRepo(db *sql.DB) *ViolationRepo { return &ViolationRepo{db: db} }

const violationColumns = `id, attempt_id, user_id, exam_id, type, severity, description, metadata, created_at`

// ListByAttempt returns an attempt's violations newest first.
func (r *ViolationRepo) ListByAttempt(ctx context.Context, attemptID uint64) ([]model.Violation, error) {
	return r.query(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE attempt_id = ? ORDER BY created_at DESC, id DESC`,
		attemptID)
}

// List returns violations matching the filter, newest first.
func (r *ViolationRepo) List(ctx context.Context, f ViolationFilter) ([]model.Violation, error) {
	q := `SELECT ` + violationColumns + ` FROM violations`
	var (
		where []string
		args  []interface{}
	)
	if f.ExamID != 0 {
		where = append(where, "exam_id = ?")
		args = append(args, f.ExamID)
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	return r.query(ctx, q, args...)
}

// CountByExam returns the number of violations recorded for an exam.
func (r *ViolationRepo) CountByExam(ctx context.Context, examID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations WHERE exam_id = ?`, examID).Scan(&n)
	return n, err
}

func (r *ViolationRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Violation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Violation{}
	for rows.Next() {
		var (
			v             model.Violation
			typ, severity string
			meta          []byte
		)
		if err := rows.Scan(&v.ID, &v.AttemptID, &v.UserID, &v.ExamID, &typ, &severity,
			&v.Description, &meta, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Type = model.ViolationType(typ)
		v.Severity = model.Severity(severity)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &v.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

var _ ViolationRepository = (*ViolationRepo)(nil)
