package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/proctored-exam/internal/auth"
	"github.com/iliyamo/proctored-exam/internal/middleware"
	"github.com/iliyamo/proctored-exam/internal/model"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *auth.Service
}

func NewAuthHandler(a *auth.Service) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"` // student | admin
}

type loginReq struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

type userPart struct {
	ID     uint64 `json:"id"`
	Handle string `json:"handle"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

type loginResp struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userPart  `json:"user"`
}

func toUserPart(u *model.User) userPart {
	return userPart{ID: u.ID, Handle: u.Handle, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

// Register creates an account.  It does not log the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Auth.Register(ctx, auth.RegisterInput{
		Handle:   req.Handle,
		Password: req.Password,
		Name:     req.Name,
		Email:    req.Email,
		Role:     strings.ToLower(strings.TrimSpace(req.Role)),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": toUserPart(u)})
}

// Login verifies the password and opens a session bound to the caller's
// user-agent.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Handle) == "" || req.Password == "" {
		return model.ErrInvalidInput
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, issued, err := h.Auth.Login(ctx, req.Handle, req.Password, middleware.ClientContext(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResp{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: toUserPart(u)})
}

// Logout invalidates the session the credential is bound to.  Other
// devices of the same user stay logged in.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Auth.Invalidate(ctx, middleware.SessionID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := c.Get(middleware.CtxUser).(*model.User)
	if !ok {
		return model.ErrUserNotFound
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}
