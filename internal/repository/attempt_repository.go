package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/proctored-exam/internal/model"
)

// AttemptRepo provides persistence for exam attempts.  Answers are stored as
// a JSON array on the attempt row so a read-modify-write touches exactly one
// row, which Update locks with SELECT ... FOR UPDATE for the duration of the
// transaction.  The `in_progress_key` generated column carries a unique
// index that allows at most one in-progress attempt per (user, exam).
type AttemptRepo struct {
	db *sql.DB
}

// NewAttemptRepo returns a new AttemptRepo bound to the given database.
func NewAttemptRepo(db *sql.DB) *AttemptRepo { return &AttemptRepo{db: db} }

// answerRecord is the JSON shape of one answer slot in attempts.answers.
type answerRecord struct {
	QuestionIndex int  `json:"q"`
	Selected      *int `json:"s"`
	IsCorrect     bool `json:"c"`
}

const attemptColumns = `id, user_id, exam_id, answers, score, total_questions, violation_count,
	max_violations, status, start_time, end_time, submitted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (*model.ExamAttempt, error) {
	var (
		a              model.ExamAttempt
		raw            []byte
		status         string
		end, submitted sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &a.ExamID, &raw, &a.Score, &a.TotalQuestions, &a.ViolationCount,
		&a.MaxViolations, &status, &a.StartTime, &end, &submitted, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = model.AttemptStatus(status)
	if end.Valid {
		t := end.Time
		a.EndTime = &t
	}
	if submitted.Valid {
		t := submitted.Time
		a.SubmittedAt = &t
	}
	var recs []answerRecord
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	a.Answers = make([]model.Answer, len(recs))
	for i, rec := range recs {
		a.Answers[i] = model.Answer{QuestionIndex: rec.QuestionIndex, Selected: rec.Selected, IsCorrect: rec.IsCorrect}
	}
	return &a, nil
}

func encodeAnswers(answers []model.Answer) ([]byte, error) {
	recs := make([]answerRecord, len(answers))
	for i, ans := range answers {
		recs[i] = answerRecord{QuestionIndex: ans.QuestionIndex, Selected: ans.Selected, IsCorrect: ans.IsCorrect}
	}
	return json.Marshal(recs)
}

// Create inserts a new attempt and populates its ID and timestamps.
func (r *AttemptRepo) Create(ctx context.Context, a *model.ExamAttempt) error {
	answers, err := encodeAnswers(a.Answers)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO exam_attempts (user_id, exam_id, answers, total_questions, max_violations, status, start_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.ExamID, answers, a.TotalQuestions, a.MaxViolations, string(a.Status), a.StartTime.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrAttemptExists
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*a = *stored
	return nil
}

// GetByID loads one attempt.
func (r *AttemptRepo) GetByID(ctx context.Context, id uint64) (*model.ExamAttempt, error) {
	a, err := scanAttempt(r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// FindInProgress returns the user's in-progress attempt for the exam.
func (r *AttemptRepo) FindInProgress(ctx context.Context, userID, examID uint64) (*model.ExamAttempt, error) {
	a, err := scanAttempt(r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE user_id = ? AND exam_id = ? AND status = ? LIMIT 1`,
		userID, examID, string(model.StatusInProgress)))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// LatestForUserExam returns the most recently created attempt.
func (r *AttemptRepo) LatestForUserExam(ctx context.Context, userID, examID uint64) (*model.ExamAttempt, error) {
	a, err := scanAttempt(r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE user_id = ? AND exam_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID, examID))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ListFinishedByUser returns submitted attempts, latest submission first.
func (r *AttemptRepo) ListFinishedByUser(ctx context.Context, userID uint64) ([]model.ExamAttempt, error) {
	return r.list(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE user_id = ? AND submitted_at IS NOT NULL ORDER BY submitted_at DESC, id DESC`, userID)
}

// ListByExam returns every attempt of an exam in creation order.
func (r *AttemptRepo) ListByExam(ctx context.Context, examID uint64) ([]model.ExamAttempt, error) {
	return r.list(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE exam_id = ? ORDER BY id`, examID)
}

func (r *AttemptRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.ExamAttempt, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ExamAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Update locks the attempt row, lets fn mutate it and writes the result
// back together with an optional new violation.  Everything happens in one
// transaction so concurrent callers on the same attempt are serialized by
// the row lock; callers on different attempts do not contend.
func (r *AttemptRepo) Update(ctx context.Context, id uint64, fn func(m *AttemptMutation) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := scanAttempt(tx.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return translateTxErr(notFound(err))
	}
	m := &AttemptMutation{Attempt: a}
	if err := fn(m); err != nil {
		return err
	}

	answers, err := encodeAnswers(m.Attempt.Answers)
	if err != nil {
		return err
	}
	var end, submitted sql.NullTime
	if m.Attempt.EndTime != nil {
		end = sql.NullTime{Time: m.Attempt.EndTime.UTC(), Valid: true}
	}
	if m.Attempt.SubmittedAt != nil {
		submitted = sql.NullTime{Time: m.Attempt.SubmittedAt.UTC(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE exam_attempts
		 SET answers = ?, score = ?, violation_count = ?, status = ?, end_time = ?, submitted_at = ?
		 WHERE id = ?`,
		answers, m.Attempt.Score, m.Attempt.ViolationCount, string(m.Attempt.Status), end, submitted, id); err != nil {
		return translateTxErr(err)
	}

	if v := m.Violation; v != nil {
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO violations (attempt_id, user_id, exam_id, type, severity, description, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.AttemptID, v.UserID, v.ExamID, string(v.Type), string(v.Severity), v.Description, meta, v.CreatedAt.UTC())
		if err != nil {
			return translateTxErr(err)
		}
		vid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		v.ID = uint64(vid)
	}

	if err := tx.Commit(); err != nil {
		return translateTxErr(err)
	}
	committed = true
	return nil
}

var _ AttemptRepository = (*AttemptRepo)(nil)
