package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/proctored-exam/internal/auth"
	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/proctor"
	"github.com/iliyamo/proctored-exam/internal/repository"
)

// AdminHandler serves monitoring and revocation endpoints.  Routes are
// expected behind RequireRole(admin).
type AdminHandler struct {
	Proctor *proctor.Service
	Auth    *auth.Service
}

func NewAdminHandler(p *proctor.Service, a *auth.Service) *AdminHandler {
	return &AdminHandler{Proctor: p, Auth: a}
}

// Monitoring returns attempt and violation totals for one exam.
func (h *AdminHandler) Monitoring(c echo.Context) error {
	examID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Proctor.Monitoring(ctx, examID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// Violations lists violations across attempts, optionally narrowed by
// ?exam_id= and ?user_id=.
func (h *AdminHandler) Violations(c echo.Context) error {
	examID, err := optionalID(c, "exam_id")
	if err != nil {
		return err
	}
	userID, err := optionalID(c, "user_id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	vs, err := h.Proctor.ListAllViolations(ctx, repository.ViolationFilter{ExamID: examID, UserID: userID})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"violations": newViolationViews(vs)})
}

// InvalidateSession revokes one session by id.
func (h *AdminHandler) InvalidateSession(c echo.Context) error {
	sid := strings.TrimSpace(c.Param("id"))
	if sid == "" {
		return model.ErrInvalidInput
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Auth.Invalidate(ctx, sid); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// InvalidateUserSessions revokes every active session of a user.
func (h *AdminHandler) InvalidateUserSessions(c echo.Context) error {
	uid, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Auth.InvalidateAllForUser(ctx, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"invalidated": n})
}
