package handler // handler defines http handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/proctored-exam/internal/middleware"
	"github.com/iliyamo/proctored-exam/internal/model"
)

// requestTimeout bounds the store work done for one request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// currentUserID is the id SessionAuth stored for the caller.
func currentUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, model.ErrCredentialMalformed
	}
	return id, nil
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || n == 0 {
		return 0, model.ErrInvalidInput
	}
	return n, nil
}

// optionalID parses a numeric query parameter; empty means zero.
func optionalID(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, model.ErrInvalidInput
	}
	return n, nil
}

// bind decodes the request body, reporting malformed JSON as INVALID_INPUT.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return model.ErrInvalidInput
	}
	return nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
