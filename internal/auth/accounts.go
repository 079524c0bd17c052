package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/repository"
	"github.com/iliyamo/proctored-exam/internal/utils"
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Handle   string
	Password string
	Name     string
	Email    string
	Role     string
}

// Register creates an account.  The handle must be at least 3 characters,
// the password at least 6 and the email, when present, well formed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	handle := strings.TrimSpace(in.Handle)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if len(handle) < 3 || len(in.Password) < 6 {
		return nil, model.ErrInvalidInput
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, model.ErrInvalidInput
		}
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Handle:       handle,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Role:         model.ParseRole(in.Role),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login verifies the password and issues a credential.  Unknown handles and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, handle, password string, cc ClientContext) (*model.User, *Issued, error) {
	u, err := s.users.GetByHandle(ctx, handle)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, nil, model.ErrInvalidCredentials
	}
	issued, err := s.IssueCredential(ctx, u, cc)
	if err != nil {
		return nil, nil, err
	}
	return u, issued, nil
}
