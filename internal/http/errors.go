package http

import (
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/desk"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/fyrsmithlabs/frontdesk/internal/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, helprequest.ErrNotFound),
		errors.Is(err, knowledge.ErrNotFound),
		errors.Is(err, callsession.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, helprequest.ErrAlreadyResolved),
		errors.Is(err, callsession.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, helprequest.ErrInvalidInput),
		errors.Is(err, knowledge.ErrInvalidInput),
		errors.Is(err, callsession.ErrInvalidInput),
		errors.Is(err, desk.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrPersistence):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorHandler renders domain errors and echo.HTTPErrors as ErrorResponse.
// Internal errors are logged and their detail is not sent to the client.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			code = statusFor(err)
			msg  = err.Error()
			he   *echo.HTTPError
		)
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
		if code >= http.StatusInternalServerError {
			logger.Error(c.Request().Context(), "request failed",
				zap.Int("status", code),
				zap.Error(err))
			if code == http.StatusInternalServerError {
				msg = http.StatusText(code)
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, ErrorResponse{Error: msg})
	}
}
