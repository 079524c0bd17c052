package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/proctored-exam/internal/model"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// StatusFor maps a domain error onto its HTTP status.
func StatusFor(e *model.Error) int {
	switch e.Kind {
	case model.KindAuth:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConcurrency:
		return http.StatusConflict
	case model.KindState:
		if e == model.ErrAttemptNotActive || e == model.ErrUserExists {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders errors returned by handlers and middleware.  Domain
// errors carry their reason code; anything else is logged and reported as
// SERVER_ERROR without details.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := http.StatusInternalServerError, errorBody{Error: "internal server error", Reason: "SERVER_ERROR"}

		var me *model.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &me):
			status, body = StatusFor(me), errorBody{Error: me.Message, Reason: me.Code}
		case errors.As(err, &he):
			status = he.Code
			body = errorBody{Error: http.StatusText(he.Code), Reason: reasonForStatus(he.Code)}
			if msg, ok := he.Message.(string); ok && msg != "" {
				body.Error = msg
			}
		default:
			logger.ErrorContext(c.Request().Context(), "unhandled error",
				"method", c.Request().Method, "path", c.Path(), "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("write error response", "error", err)
		}
	}
}

func reasonForStatus(code int) string {
	switch code {
	case http.StatusNotFound:
		return "ROUTE_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusBadRequest:
		return "INVALID_INPUT"
	case http.StatusUnauthorized:
		return "CREDENTIAL_MALFORMED"
	}
	if code >= 500 {
		return "SERVER_ERROR"
	}
	return "REQUEST_ERROR"
}
