// Package auth issues session-bound credentials and validates them on every
// request.  A signed credential alone is never enough: the session it names
// must exist, be active, be unexpired and have been opened by the same
// user-agent that presents it now.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/proctored-exam/internal/metrics"
	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/repository"
	"github.com/iliyamo/proctored-exam/internal/utils"
)

// UnknownUserAgent is recorded and compared when a client sends no
// User-Agent header.
const UnknownUserAgent = "unknown"

// ClientContext is what the transport observed about the caller.
type ClientContext struct {
	UserAgent   string
	IP          string
	Fingerprint string
}

func (c ClientContext) userAgent() string {
	if c.UserAgent == "" {
		return UnknownUserAgent
	}
	return c.UserAgent
}

// Issued is a freshly minted credential.
type Issued struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// Identity is the result of a successful Validate.  Callers must still
// load the user record.
type Identity struct {
	UserID    uint64
	SessionID string
}

// Config parameterizes a Service.
type Config struct {
	Secret     string
	SessionTTL time.Duration
	BcryptCost int
}

// Service is the session store plus credential issuer/validator.
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	cfg      Config
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithMetrics attaches a metrics recorder.
func WithMetrics(m metrics.Recorder) Option { return func(s *Service) { s.metrics = m } }

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService builds a Service.
func NewService(users repository.UserRepository, sessions repository.SessionRepository, cfg Config, opts ...Option) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	s := &Service{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		metrics:  metrics.Nop{},
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// IssueCredential opens a new session for u and signs a credential bound
// to it.  The credential expires together with the session.
func (s *Service) IssueCredential(ctx context.Context, u *model.User, cc ClientContext) (*Issued, error) {
	now := s.now()
	sess := &model.Session{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		UserAgent:   cc.userAgent(),
		IP:          cc.IP,
		Fingerprint: cc.Fingerprint,
		Active:      true,
		ExpiresAt:   now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	token, err := utils.NewCredential(s.cfg.Secret, u.ID, sess.ID, string(u.Role), now, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "session opened", "user_id", u.ID, "session_id", sess.ID)
	return &Issued{Token: token, SessionID: sess.ID, ExpiresAt: sess.ExpiresAt}, nil
}

// Validate checks raw against its bound session.  Failures are returned as
// *model.Error values of KindAuth.
func (s *Service) Validate(ctx context.Context, raw string, cc ClientContext) (*Identity, error) {
	id, err := s.validate(ctx, raw, cc)
	if err != nil {
		var me *model.Error
		if errors.As(err, &me) {
			s.metrics.RecordAuthRejection(me.Code)
		}
		return nil, err
	}
	return id, nil
}

func (s *Service) validate(ctx context.Context, raw string, cc ClientContext) (*Identity, error) {
	now := s.now()
	claims, err := utils.ParseCredential(s.cfg.Secret, raw, now)
	expired := errors.Is(err, utils.ErrCredentialExpired)
	if err != nil && !expired {
		return nil, model.ErrCredentialMalformed
	}
	if claims.SessionID == "" {
		return nil, model.ErrSessionMissing
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, model.ErrCredentialMalformed
	}

	sess, err := s.sessions.GetByID(ctx, claims.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrSessionInactive
	}
	if err != nil {
		return nil, err
	}
	if !sess.Active || sess.UserID != userID {
		return nil, model.ErrSessionInactive
	}
	if sess.UserAgent != cc.userAgent() {
		s.logger.WarnContext(ctx, "user-agent mismatch", "session_id", sess.ID, "user_id", userID)
		return nil, model.ErrUserAgentMismatch
	}
	if expired || sess.Expired(now) {
		return nil, model.ErrSessionExpired
	}
	return &Identity{UserID: userID, SessionID: sess.ID}, nil
}

// Invalidate deactivates one session.  Unknown or already inactive
// sessions are not an error.
func (s *Service) Invalidate(ctx context.Context, sessionID string) error {
	if err := s.sessions.Deactivate(ctx, sessionID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "session invalidated", "session_id", sessionID)
	return nil
}

// InvalidateAllForUser deactivates every active session of userID and
// returns how many were affected.
func (s *Service) InvalidateAllForUser(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.sessions.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "user sessions invalidated", "user_id", userID, "count", n)
	return n, nil
}

// ResolveUser loads the user behind an Identity.  A deleted user is an
// authentication failure, never an anonymous request.
func (s *Service) ResolveUser(ctx context.Context, id *Identity) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.RecordAuthRejection(model.ErrUserNotFound.Code)
		return nil, model.ErrUserNotFound
	}
	return u, err
}
