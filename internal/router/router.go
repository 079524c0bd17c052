package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/proctored-exam/internal/handler"
	"github.com/iliyamo/proctored-exam/internal/middleware"
	"github.com/iliyamo/proctored-exam/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exams   *handler.ExamHandler
	Attempt *handler.AttemptHandler
	Admin   *handler.AdminHandler
	// Store is pinged by /healthz; nil for the memory store.
	Store   handler.Pinger
	Metrics http.Handler
}

// New builds the Echo instance with shared middleware, the central error
// handler and every route registered.  authn validates credentials for
// the protected groups and cache wraps the read-only exam views.
func New(logger *slog.Logger, h Handlers, authn middleware.Authenticator, cache echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	RegisterRoutes(e, h)
	RegisterAuth(e, h.Auth, authn)
	RegisterStudent(e, h, authn, cache)
	RegisterAdmin(e, h.Admin, authn)
	return e
}

// RegisterRoutes registers routes that do not require authentication: the
// health check and, when configured, the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health(h.Store))
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}
}

// RegisterAuth registers account routes.  Register and login are public;
// logout and /v1/me need a valid session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn middleware.Authenticator) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout, middleware.SessionAuth(authn))

	e.GET("/v1/me", a.Me, middleware.SessionAuth(authn))
}

// RegisterStudent registers exam and attempt routes.  Ownership is checked
// by the proctor service, so admins hitting these routes only see their
// own attempts.
func RegisterStudent(e *echo.Echo, h Handlers, authn middleware.Authenticator, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.SessionAuth(authn))
	if cache == nil {
		cache = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	g.GET("/exams/assigned", h.Exams.Assigned, cache)
	g.GET("/exams/:id", h.Exams.Detail, cache)
	g.POST("/exams/:id/start", h.Exams.Start)
	g.GET("/exams/:id/attempt", h.Exams.LatestAttempt)

	// static segment before the :id route
	g.GET("/attempts/completed", h.Attempt.Completed)
	g.GET("/attempts/:id", h.Attempt.Get)
	g.POST("/attempts/:id/answers", h.Attempt.Answer)
	g.POST("/attempts/:id/submit", h.Attempt.Submit)
	g.POST("/attempts/:id/violations", h.Attempt.LogViolation)
	g.GET("/attempts/:id/violations", h.Attempt.Violations)
}

// RegisterAdmin registers monitoring and revocation routes; callers must
// hold the admin role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, authn middleware.Authenticator) {
	g := e.Group("/v1/admin")
	g.Use(middleware.SessionAuth(authn), middleware.RequireRole(model.RoleAdmin))

	g.GET("/exams/:id/monitoring", a.Monitoring)
	g.GET("/violations", a.Violations)
	g.POST("/sessions/:id/invalidate", a.InvalidateSession)
	g.POST("/users/:id/sessions/invalidate", a.InvalidateUserSessions)
}
