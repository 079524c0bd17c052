package middleware

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/proctored-exam/internal/auth"
    "github.com/iliyamo/proctored-exam/internal/config"
    "github.com/iliyamo/proctored-exam/internal/model"
)

type mockAuthenticator struct {
    validateFn func(ctx context.Context, raw string, cc auth.ClientContext) (*auth.Identity, error)
    resolveFn  func(ctx context.Context, id *auth.Identity) (*model.User, error)
}

func (m *mockAuthenticator) Validate(ctx context.Context, raw string, cc auth.ClientContext) (*auth.Identity, error) {
    return m.validateFn(ctx, raw, cc)
}

func (m *mockAuthenticator) ResolveUser(ctx context.Context, id *auth.Identity) (*model.User, error) {
    return m.resolveFn(ctx, id)
}

func run(mw echo.MiddlewareFunc, req *http.Request, set func(c echo.Context)) (echo.Context, error, bool) {
    e := echo.New()
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    if set != nil {
        set(c)
    }
    called := false
    err := mw(func(c echo.Context) error {
        called = true
        return c.NoContent(http.StatusOK)
    })(c)
    return c, err, called
}

func TestSessionAuth_SetsIdentity(t *testing.T) {
    var seen auth.ClientContext
    a := &mockAuthenticator{
        validateFn: func(_ context.Context, raw string, cc auth.ClientContext) (*auth.Identity, error) {
            if raw != "tok" {
                t.Errorf("raw = %q", raw)
            }
            seen = cc
            return &auth.Identity{UserID: 5, SessionID: "sid"}, nil
        },
        resolveFn: func(context.Context, *auth.Identity) (*model.User, error) {
            return &model.User{ID: 5, Role: model.RoleAdmin}, nil
        },
    }
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set("Authorization", "Bearer tok")
    req.Header.Set(FingerprintHeader, "fp-1")

    c, err, called := run(SessionAuth(a), req, nil)
    if err != nil || !called {
        t.Fatalf("err=%v called=%v", err, called)
    }
    if id, ok := UserID(c); !ok || id != 5 {
        t.Errorf("user id = %d", id)
    }
    if c.Get(CtxRole) != "admin" || SessionID(c) != "sid" {
        t.Errorf("role=%v session=%v", c.Get(CtxRole), SessionID(c))
    }
    if seen.UserAgent != auth.UnknownUserAgent || seen.Fingerprint != "fp-1" {
        t.Errorf("client context = %+v", seen)
    }
}

func TestSessionAuth_Rejects(t *testing.T) {
    a := &mockAuthenticator{
        validateFn: func(context.Context, string, auth.ClientContext) (*auth.Identity, error) {
            return &auth.Identity{UserID: 5, SessionID: "sid"}, nil
        },
        resolveFn: func(context.Context, *auth.Identity) (*model.User, error) {
            return nil, model.ErrUserNotFound
        },
    }

    req := httptest.NewRequest(http.MethodGet, "/", nil)
    if _, err, called := run(SessionAuth(a), req, nil); !errors.Is(err, model.ErrCredentialMalformed) || called {
        t.Fatalf("missing header: err=%v called=%v", err, called)
    }

    req = httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set("Authorization", "Bearer tok")
    if _, err, called := run(SessionAuth(a), req, nil); !errors.Is(err, model.ErrUserNotFound) || called {
        t.Fatalf("deleted user: err=%v called=%v", err, called)
    }
}

func TestRequireRole(t *testing.T) {
    mw := RequireRole(model.RoleAdmin)
    req := httptest.NewRequest(http.MethodGet, "/", nil)

    if _, err, called := run(mw, req, func(c echo.Context) { c.Set(CtxRole, "student") }); !errors.Is(err, model.ErrForbidden) || called {
        t.Fatalf("student: err=%v called=%v", err, called)
    }
    if _, err, called := run(mw, req, func(c echo.Context) { c.Set(CtxRole, "admin") }); err != nil || !called {
        t.Fatalf("admin: err=%v called=%v", err, called)
    }
}

func TestCacheKeyFrom_ScopedPerUser(t *testing.T) {
    cfg := config.CacheConfig{Prefix: "proctor", KeyStrategy: "user_route_query"}
    e := echo.New()
    key := func(uid uint64, query string) string {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/exams/assigned?"+query, nil), httptest.NewRecorder())
        c.SetPath("/v1/exams/assigned")
        c.Set(CtxUserID, uid)
        return cacheKeyFrom(cfg, c)
    }
    if key(1, "") == key(2, "") {
        t.Fatal("keys for different users must differ")
    }
    if key(1, "") != key(1, "") {
        t.Fatal("keys must be stable")
    }
    if key(1, "a=1") == key(1, "a=2") {
        t.Fatal("query must contribute to the key")
    }
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": []string{"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
    if err != nil {
        t.Fatal(err)
    }
    status, got, body, ok := decodePayload(bs)
    if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"ok":true}` {
        t.Fatalf("decoded %d %v %q %v", status, got, body, ok)
    }
    if _, _, _, ok := decodePayload([]byte{0, 1}); ok {
        t.Fatal("short payload should not decode")
    }
}

func TestNewRedisCache_DisabledPassesThrough(t *testing.T) {
    mw := NewRedisCache(config.CacheConfig{Enabled: false}, nil)
    _, err, called := run(mw, httptest.NewRequest(http.MethodGet, "/", nil), nil)
    if err != nil || !called {
        t.Fatalf("err=%v called=%v", err, called)
    }
}
