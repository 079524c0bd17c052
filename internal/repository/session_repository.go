package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/proctored-exam/internal/model"
)

// SessionRepo persists login sessions in the `sessions` table.  Rows are
// deactivated rather than deleted on logout; only the expiry sweep removes
// them.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, user_agent, ip, fingerprint, is_active, expires_at)
		 VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.UserID, s.UserAgent, nullString(s.IP), nullString(s.Fingerprint), s.Active, s.ExpiresAt.UTC())
	return err
}

// GetByID loads a session regardless of its state; callers decide whether
// it is usable.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var (
		s           model.Session
		ip, fingerp sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, user_agent, ip, fingerprint, is_active, expires_at, created_at, updated_at
		 FROM sessions WHERE id=? LIMIT 1`, id).
		Scan(&s.ID, &s.UserID, &s.UserAgent, &ip, &fingerp, &s.Active, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	s.IP = ip.String
	s.Fingerprint = fingerp.String
	return &s, nil
}

// Deactivate marks a session inactive.  Unknown or already inactive ids are
// not an error.
func (r *SessionRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=FALSE WHERE id=? AND is_active=TRUE", id)
	return err
}

// DeactivateAllForUser revokes every active session of a user.
func (r *SessionRepo) DeactivateAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=FALSE WHERE user_id=? AND is_active=TRUE", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired removes sessions past their expiry.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ SessionRepository = (*SessionRepo)(nil)
