package middleware

// identity.go holds helpers shared across middleware and handlers for reading
// the authenticated caller and the client context of a request.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/proctored-exam/internal/auth"
)

// FingerprintHeader carries an optional client fingerprint.
const FingerprintHeader = "X-Client-Fingerprint"

// UserID returns the authenticated user id, or false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(CtxUserID).(uint64)
    return id, ok && id != 0
}

// SessionID returns the session bound to the request's credential.
func SessionID(c echo.Context) string {
    s, _ := c.Get(CtxSessionID).(string)
    return s
}

// ClientContext collects what the transport knows about the caller.  A
// missing User-Agent is recorded as auth.UnknownUserAgent.
func ClientContext(c echo.Context) auth.ClientContext {
    r := c.Request()
    ua := r.UserAgent()
    if ua == "" {
        ua = auth.UnknownUserAgent
    }
    return auth.ClientContext{
        UserAgent:   ua,
        IP:          c.RealIP(),
        Fingerprint: r.Header.Get(FingerprintHeader),
    }
}
