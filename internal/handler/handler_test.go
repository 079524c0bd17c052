package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/proctored-exam/internal/auth"
	"github.com/iliyamo/proctored-exam/internal/handler"
	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/proctor"
	"github.com/iliyamo/proctored-exam/internal/repository/memory"
	"github.com/iliyamo/proctored-exam/internal/router"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) Test"

type testServer struct {
	e     *echo.Echo
	store *memory.Store
	auth  *auth.Service
	exam  *model.Exam
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	authSvc := auth.NewService(store.Users(), store.Sessions(),
		auth.Config{Secret: "test-secret", SessionTTL: 24 * time.Hour, BcryptCost: 4}, auth.WithLogger(logger))
	proc := proctor.NewService(proctor.Deps{
		Users:      store.Users(),
		Exams:      store.Exams(),
		Attempts:   store.Attempts(),
		Violations: store.Violations(),
		Logger:     logger,
	}, 3)

	e := router.New(logger, router.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Exams:   handler.NewExamHandler(proc),
		Attempt: handler.NewAttemptHandler(proc),
		Admin:   handler.NewAdminHandler(proc, authSvc),
	}, authSvc, nil)

	now := time.Now().UTC()
	exam := &model.Exam{
		Title:       "Networks",
		Description: "Final",
		DurationMin: 30,
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(time.Hour),
		Published:   true,
		Active:      true,
		Questions: []model.Question{
			{Prompt: "q0", Options: []string{"a", "b"}, CorrectAnswer: 1},
			{Prompt: "q1", Options: []string{"a", "b"}, CorrectAnswer: 0},
		},
	}
	if err := store.Exams().Create(context.Background(), exam); err != nil {
		t.Fatal(err)
	}
	return &testServer{e: e, store: store, auth: authSvc, exam: exam}
}

type call struct {
	method, path, token, ua string
	body                    any
}

func (s *testServer) do(t *testing.T, c call) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if c.body != nil {
		bs, err := json.Marshal(c.body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(c.method, c.path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ua := c.ua
	if ua == "" {
		ua = browserUA
	}
	req.Header.Set("User-Agent", ua)
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

// login registers handle with role and returns a credential.
func (s *testServer) login(t *testing.T, handle, role string) (string, uint64) {
	t.Helper()
	code, _ := s.do(t, call{method: http.MethodPost, path: "/v1/auth/register",
		body: map[string]string{"handle": handle, "password": "secret1", "name": handle, "role": role}})
	if code != http.StatusCreated {
		t.Fatalf("register %s: %d", handle, code)
	}
	code, body := s.do(t, call{method: http.MethodPost, path: "/v1/auth/login",
		body: map[string]string{"handle": handle, "password": "secret1"}})
	if code != http.StatusOK {
		t.Fatalf("login %s: %d %v", handle, code, body)
	}
	user := body["user"].(map[string]any)
	return body["token"].(string), uint64(user["id"].(float64))
}

func reason(body map[string]any) string {
	r, _ := body["reason"].(string)
	return r
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	token, _ := s.login(t, "alice", "")

	code, body := s.do(t, call{method: http.MethodGet, path: "/v1/me", token: token})
	if code != http.StatusOK || body["user"].(map[string]any)["role"] != "student" {
		t.Fatalf("me: %d %v", code, body)
	}

	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/me", token: token, ua: "curl/8.0"})
	if code != http.StatusUnauthorized || reason(body) != "USER_AGENT_MISMATCH" {
		t.Fatalf("other ua: %d %v", code, body)
	}

	if code, _ = s.do(t, call{method: http.MethodPost, path: "/v1/auth/logout", token: token}); code != http.StatusNoContent {
		t.Fatalf("logout: %d", code)
	}
	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/me", token: token})
	if code != http.StatusUnauthorized || reason(body) != "SESSION_INACTIVE" {
		t.Fatalf("after logout: %d %v", code, body)
	}

	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/me", token: "garbage"})
	if code != http.StatusUnauthorized || reason(body) != "CREDENTIAL_MALFORMED" {
		t.Fatalf("garbage token: %d %v", code, body)
	}
}

func TestRegister_Conflicts(t *testing.T) {
	s := newServer(t)
	s.login(t, "bob", "")
	code, body := s.do(t, call{method: http.MethodPost, path: "/v1/auth/register",
		body: map[string]string{"handle": "bob", "password": "secret1"}})
	if code != http.StatusConflict || reason(body) != "USER_EXISTS" {
		t.Fatalf("duplicate: %d %v", code, body)
	}
	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/auth/login",
		body: map[string]string{"handle": "bob", "password": "wrong!"}})
	if code != http.StatusUnauthorized || reason(body) != "INVALID_CREDENTIALS" {
		t.Fatalf("bad password: %d %v", code, body)
	}
}

func TestAttemptLifecycle(t *testing.T) {
	s := newServer(t)
	token, uid := s.login(t, "carol", "")
	examPath := "/v1/exams/1"

	code, body := s.do(t, call{method: http.MethodGet, path: examPath, token: token})
	if code != http.StatusForbidden || reason(body) != "NOT_ASSIGNED" {
		t.Fatalf("unassigned detail: %d %v", code, body)
	}
	if err := s.store.Exams().Assign(context.Background(), s.exam.ID, []uint64{uid}); err != nil {
		t.Fatal(err)
	}

	code, body = s.do(t, call{method: http.MethodGet, path: examPath, token: token})
	if code != http.StatusOK {
		t.Fatalf("detail: %d %v", code, body)
	}
	q := body["exam"].(map[string]any)["questions"].([]any)[0].(map[string]any)
	if _, leaked := q["correct_answer"]; leaked || q["question"] != "q0" {
		t.Fatalf("question view = %v", q)
	}

	code, body = s.do(t, call{method: http.MethodPost, path: examPath + "/start", token: token})
	if code != http.StatusCreated {
		t.Fatalf("start: %d %v", code, body)
	}
	attempt := body["attempt"].(map[string]any)
	aid := uint64(attempt["id"].(float64))
	attemptPath := "/v1/attempts/" + itoa(aid)

	code, body = s.do(t, call{method: http.MethodPost, path: examPath + "/start", token: token})
	if code != http.StatusOK || body["resumed"] != true {
		t.Fatalf("resume: %d %v", code, body)
	}

	code, body = s.do(t, call{method: http.MethodPost, path: attemptPath + "/answers", token: token,
		body: map[string]int{"questionIndex": 0, "selectedAnswer": 1}})
	if code != http.StatusOK {
		t.Fatalf("answer: %d %v", code, body)
	}
	ans := body["attempt"].(map[string]any)["answers"].([]any)[0].(map[string]any)
	if _, shown := ans["isCorrect"]; shown {
		t.Fatal("correctness must stay hidden while in progress")
	}

	code, body = s.do(t, call{method: http.MethodPost, path: attemptPath + "/answers", token: token,
		body: map[string]int{"questionIndex": 5, "selectedAnswer": 0}})
	if code != http.StatusBadRequest || reason(body) != "INVALID_QUESTION_INDEX" {
		t.Fatalf("bad index: %d %v", code, body)
	}

	other, _ := s.login(t, "dave", "")
	code, body = s.do(t, call{method: http.MethodGet, path: attemptPath, token: other})
	if code != http.StatusNotFound || reason(body) != "ATTEMPT_NOT_FOUND" {
		t.Fatalf("foreign attempt: %d %v", code, body)
	}

	code, body = s.do(t, call{method: http.MethodPost, path: attemptPath + "/submit", token: token})
	if code != http.StatusOK || body["score"] != float64(1) || body["status"] != "completed" {
		t.Fatalf("submit: %d %v", code, body)
	}
	code, body = s.do(t, call{method: http.MethodPost, path: attemptPath + "/submit", token: token})
	if code != http.StatusConflict || reason(body) != "ATTEMPT_NOT_ACTIVE" {
		t.Fatalf("resubmit: %d %v", code, body)
	}

	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/attempts/completed", token: token})
	if code != http.StatusOK || len(body["attempts"].([]any)) != 1 {
		t.Fatalf("completed: %d %v", code, body)
	}
}

func TestViolations_AutoSubmit(t *testing.T) {
	s := newServer(t)
	token, uid := s.login(t, "erin", "")
	if err := s.store.Exams().Assign(context.Background(), s.exam.ID, []uint64{uid}); err != nil {
		t.Fatal(err)
	}
	_, body := s.do(t, call{method: http.MethodPost, path: "/v1/exams/1/start", token: token})
	aid := uint64(body["attempt"].(map[string]any)["id"].(float64))
	path := "/v1/attempts/" + itoa(aid) + "/violations"

	code, body := s.do(t, call{method: http.MethodPost, path: path, token: token, body: map[string]string{"type": "SCREENSHOT"}})
	if code != http.StatusBadRequest || reason(body) != "INVALID_VIOLATION_TYPE" {
		t.Fatalf("bad type: %d %v", code, body)
	}

	for i, want := range []float64{2, 1} {
		code, body = s.do(t, call{method: http.MethodPost, path: path, token: token,
			body: map[string]any{"type": "TAB_SWITCH", "description": "<b>left</b>"}})
		if code != http.StatusCreated || body["autoSubmitted"] != false || body["warningsRemaining"] != want {
			t.Fatalf("violation %d: %d %v", i+1, code, body)
		}
	}
	code, body = s.do(t, call{method: http.MethodPost, path: path, token: token, body: map[string]string{"type": "FACE_MOVED"}})
	if code != http.StatusCreated || body["autoSubmitted"] != true || body["violationCount"] != float64(3) {
		t.Fatalf("third violation: %d %v", code, body)
	}
	if _, ok := body["warningsRemaining"]; ok {
		t.Fatal("warningsRemaining must be absent after auto-submit")
	}

	code, body = s.do(t, call{method: http.MethodGet, path: path, token: token})
	if code != http.StatusOK {
		t.Fatalf("list: %d %v", code, body)
	}
	list := body["violations"].([]any)
	if len(list) != 3 || list[0].(map[string]any)["type"] != "FACE_MOVED" {
		t.Fatalf("violations = %v", list)
	}
	if d := list[2].(map[string]any)["description"]; d != "left" {
		t.Fatalf("description not sanitized: %v", d)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t)
	student, sid := s.login(t, "frank", "")
	admin, _ := s.login(t, "grace", "admin")

	code, body := s.do(t, call{method: http.MethodGet, path: "/v1/admin/exams/1/monitoring", token: student})
	if code != http.StatusForbidden || reason(body) != "FORBIDDEN" {
		t.Fatalf("student on admin route: %d %v", code, body)
	}
	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/admin/exams/1/monitoring", token: admin})
	if code != http.StatusOK || body["title"] != "Networks" {
		t.Fatalf("monitoring: %d %v", code, body)
	}
	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/admin/violations?exam_id=x", token: admin})
	if code != http.StatusBadRequest || reason(body) != "INVALID_INPUT" {
		t.Fatalf("bad filter: %d %v", code, body)
	}

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/admin/users/" + itoa(sid) + "/sessions/invalidate", token: admin})
	if code != http.StatusOK || body["invalidated"] != float64(1) {
		t.Fatalf("invalidate: %d %v", code, body)
	}
	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/me", token: student})
	if code != http.StatusUnauthorized || reason(body) != "SESSION_INACTIVE" {
		t.Fatalf("revoked student: %d %v", code, body)
	}
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.GET("/boom", func(echo.Context) error { return errors.New("dial tcp: connection refused") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusInternalServerError || body["reason"] != "SERVER_ERROR" {
		t.Fatalf("got %d %v", rec.Code, body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  *model.Error
		want int
	}{
		{model.ErrSessionExpired, http.StatusUnauthorized},
		{model.ErrNotAssigned, http.StatusForbidden},
		{model.ErrExamNotFound, http.StatusNotFound},
		{model.ErrNotAvailable, http.StatusBadRequest},
		{model.ErrAttemptNotActive, http.StatusConflict},
		{model.ErrConcurrentUpdate, http.StatusConflict},
	}
	for _, tc := range cases {
		if got := handler.StatusFor(tc.err); got != tc.want {
			t.Errorf("%s: got %d want %d", tc.err.Code, got, tc.want)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }
