package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/proctored-exam/internal/model"
)

// ExamRepo reads exams, their ordered questions and assignments.  Questions
// live in `exam_questions` keyed by (exam_id, position); the answer key is a
// plain column that never leaves the service.
type ExamRepo struct {
	db *sql.DB
}

// NewExamRepo returns a new ExamRepo bound to the provided database.
func NewExamRepo(db *sql.DB) *ExamRepo { return &ExamRepo{db: db} }

// Create inserts an exam and its questions in one transaction.
func (r *ExamRepo) Create(ctx context.Context, e *model.Exam) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO exams (title, description, duration_min, start_time, end_time, is_published, is_active)
		 VALUES (?,?,?,?,?,?,?)`,
		e.Title, e.Description, e.DurationMin, e.StartTime.UTC(), e.EndTime.UTC(), e.Published, e.Active)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)

	if len(e.Questions) > 0 {
		query := `INSERT INTO exam_questions (exam_id, position, prompt, options, correct_answer) VALUES `
		args := make([]interface{}, 0, len(e.Questions)*5)
		for i, q := range e.Questions {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			opts, err := json.Marshal(q.Options)
			if err != nil {
				return err
			}
			args = append(args, e.ID, i, q.Prompt, opts, q.CorrectAnswer)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Assign adds users to the exam's assignment set.  Existing assignments are
// kept.
func (r *ExamRepo) Assign(ctx context.Context, examID uint64, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO exam_assignments (exam_id, user_id) VALUES `
	args := make([]interface{}, 0, len(userIDs)*2)
	for i, uid := range userIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, examID, uid)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// GetByID loads an exam with its questions in position order.
func (r *ExamRepo) GetByID(ctx context.Context, id uint64) (*model.Exam, error) {
	var e model.Exam
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, duration_min, start_time, end_time, is_published, is_active, created_at, updated_at
		 FROM exams WHERE id = ?`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.DurationMin, &e.StartTime, &e.EndTime,
			&e.Published, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	qs, err := r.questions(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Questions = qs
	return &e, nil
}

func (r *ExamRepo) questions(ctx context.Context, examID uint64) ([]model.Question, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT prompt, options, correct_answer FROM exam_questions WHERE exam_id = ? ORDER BY position`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var qs []model.Question
	for rows.Next() {
		var (
			q    model.Question
			opts []byte
		)
		if err := rows.Scan(&q.Prompt, &opts, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(opts, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// IsAssigned reports whether userID is in the exam's assignment set.
func (r *ExamRepo) IsAssigned(ctx context.Context, examID, userID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM exam_assignments WHERE exam_id = ? AND user_id = ? LIMIT 1`, examID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListAssigned returns published, active exams assigned to the user,
// soonest first.
func (r *ExamRepo) ListAssigned(ctx context.Context, userID uint64) ([]model.Exam, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id
		 FROM exams e
		 JOIN exam_assignments a ON a.exam_id = e.id
		 WHERE a.user_id = ? AND e.is_published = TRUE AND e.is_active = TRUE
		 ORDER BY e.start_time, e.id`, userID)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	exams := make([]model.Exam, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, nil
}

var _ ExamRepository = (*ExamRepo)(nil)
