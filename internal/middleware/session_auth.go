package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/proctored-exam/internal/auth"
    "github.com/iliyamo/proctored-exam/internal/model"
)

// Context keys set by SessionAuth.
const (
    CtxUserID    = "user_id"
    CtxRole      = "role"
    CtxSessionID = "session_id"
    CtxUser      = "user"
)

// Authenticator is the part of auth.Service the middleware depends on.
type Authenticator interface {
    Validate(ctx context.Context, raw string, cc auth.ClientContext) (*auth.Identity, error)
    ResolveUser(ctx context.Context, id *auth.Identity) (*model.User, error)
}

// SessionAuth validates the Bearer credential against its session on every
// request, then re-loads the user so a deleted account fails instead of
// proceeding anonymously.  Handlers read the caller via c.Get("user_id")
// (uint64), c.Get("role") (string) and c.Get("session_id").
func SessionAuth(a Authenticator) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            header := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(header, "Bearer ") {
                return model.ErrCredentialMalformed
            }
            raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
            ctx := c.Request().Context()

            id, err := a.Validate(ctx, raw, ClientContext(c))
            if err != nil {
                return err
            }
            u, err := a.ResolveUser(ctx, id)
            if err != nil {
                return err
            }

            c.Set(CtxUserID, u.ID)
            c.Set(CtxRole, string(u.Role))
            c.Set(CtxSessionID, id.SessionID)
            c.Set(CtxUser, u)
            return next(c)
        }
    }
}
