package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/proctored-exam/internal/proctor"
)

// ExamHandler serves the student-facing exam endpoints.
type ExamHandler struct {
	Proctor *proctor.Service
	Now     func() time.Time
}

func NewExamHandler(p *proctor.Service) *ExamHandler {
	return &ExamHandler{Proctor: p, Now: func() time.Time { return time.Now().UTC() }}
}

// Assigned lists published, active exams assigned to the caller.
func (h *ExamHandler) Assigned(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	exams, err := h.Proctor.AssignedExams(ctx, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"exams": exams})
}

// Detail returns one exam without its answer key, after the assignment and
// availability checks.
func (h *ExamHandler) Detail(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	examID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	exam, err := h.Proctor.CheckAccess(ctx, uid, examID, h.Now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"exam": exam.Sanitize()})
}

// Start opens an attempt, or resumes the caller's in-progress one.
func (h *ExamHandler) Start(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	examID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Proctor.StartAttempt(ctx, uid, examID, h.Now())
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{
		"attempt": newAttemptView(res.Attempt),
		"exam":    res.Exam,
		"resumed": res.Resumed,
	})
}

// LatestAttempt returns the caller's most recent attempt for the exam.
func (h *ExamHandler) LatestAttempt(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	examID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Proctor.LatestAttempt(ctx, uid, examID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"attempt": newAttemptView(a)})
}
