package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/proctored-exam/internal/model"
)

// UserRepo is the MySQL UserRepository.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,handle,password_hash,name,email,role,created_at,updated_at"

// Create inserts user and sets its ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (handle, password_hash, name, email, role) VALUES (?,?,?,?,?)",
		u.Handle, u.PasswordHash, u.Name, nullString(u.Email), string(u.Role))
	if err != nil {
		if isDuplicate(err) {
			return model.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByHandle fetches a user by login handle.
func (r *UserRepo) GetByHandle(ctx context.Context, handle string) (*model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE handle=? LIMIT 1", strings.TrimSpace(handle)))
}

func (r *UserRepo) scanOne(row *sql.Row) (*model.User, error) {
	var (
		u     model.User
		email sql.NullString
		role  string
	)
	err := row.Scan(&u.ID, &u.Handle, &u.PasswordHash, &u.Name, &email, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	u.Email = email.String
	u.Role = model.Role(role)
	return &u, nil
}

var _ UserRepository = (*UserRepo)(nil)
