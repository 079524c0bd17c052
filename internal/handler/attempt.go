package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/proctor"
)

// AttemptHandler serves answer recording, submission and violation
// reporting for the caller's own attempts.
type AttemptHandler struct {
	Proctor *proctor.Service
	Now     func() time.Time
}

func NewAttemptHandler(p *proctor.Service) *AttemptHandler {
	return &AttemptHandler{Proctor: p, Now: func() time.Time { return time.Now().UTC() }}
}

type answerReq struct {
	QuestionIndex  *int `json:"questionIndex"`
	SelectedAnswer *int `json:"selectedAnswer"`
}

type violationReq struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// caller returns the authenticated user id and the :id attempt parameter.
func caller(c echo.Context) (userID, attemptID uint64, err error) {
	if userID, err = currentUserID(c); err != nil {
		return 0, 0, err
	}
	if attemptID, err = idParam(c, "id"); err != nil {
		return 0, 0, err
	}
	return userID, attemptID, nil
}

// Answer records or overwrites the answer to one question.
func (h *AttemptHandler) Answer(c echo.Context) error {
	uid, aid, err := caller(c)
	if err != nil {
		return err
	}
	var req answerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.QuestionIndex == nil {
		return model.ErrInvalidQuestionIndex
	}
	if req.SelectedAnswer == nil {
		return model.ErrInvalidSelection
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Proctor.RecordAnswer(ctx, aid, uid, *req.QuestionIndex, *req.SelectedAnswer)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"attempt": newAttemptView(a)})
}

// Submit scores the attempt and completes it.
func (h *AttemptHandler) Submit(c echo.Context) error {
	uid, aid, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Proctor.Submit(ctx, aid, uid, h.Now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"score":          res.Score,
		"totalQuestions": res.TotalQuestions,
		"status":         res.Status,
		"submittedAt":    formatTime(&res.SubmittedAt),
	})
}

// Get returns the caller's attempt.
func (h *AttemptHandler) Get(c echo.Context) error {
	uid, aid, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Proctor.GetAttempt(ctx, aid, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"attempt": newAttemptView(a)})
}

// Completed lists the caller's submitted attempts, newest first.
func (h *AttemptHandler) Completed(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Proctor.ListCompleted(ctx, uid)
	if err != nil {
		return err
	}
	out := make([]attemptView, len(list))
	for i := range list {
		out[i] = newAttemptView(&list[i])
	}
	return c.JSON(http.StatusOK, echo.Map{"attempts": out})
}

// LogViolation records an integrity incident and reports whether the
// attempt was auto-submitted.
func (h *AttemptHandler) LogViolation(c echo.Context) error {
	uid, aid, err := caller(c)
	if err != nil {
		return err
	}
	var req violationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Proctor.LogViolation(ctx, proctor.ViolationReport{
		AttemptID:   aid,
		UserID:      uid,
		Type:        req.Type,
		Description: req.Description,
		Metadata:    req.Metadata,
	}, h.Now())
	if err != nil {
		return err
	}
	body := echo.Map{
		"violation":      newViolationView(res.Violation),
		"violationCount": res.ViolationCount,
		"maxViolations":  res.MaxViolations,
		"autoSubmitted":  res.AutoSubmitted,
	}
	if res.WarningsRemaining != nil {
		body["warningsRemaining"] = *res.WarningsRemaining
	}
	return c.JSON(http.StatusCreated, body)
}

// Violations lists the attempt's violations, newest first.
func (h *AttemptHandler) Violations(c echo.Context) error {
	uid, aid, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Proctor.ListViolations(ctx, aid, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"violations":     newViolationViews(res.Violations),
		"violationCount": res.ViolationCount,
		"maxViolations":  res.MaxViolations,
	})
}
