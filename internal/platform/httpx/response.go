// Package httpx holds the JSON envelope every endpoint answers with and the
// echo error handler that renders service errors into it.
package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic/internal/platform/apperr"
)

// Envelope is the response body shape: {success, data|message}.
type Envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// OK writes a successful response carrying data.
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Message writes a successful response carrying only a message.
func Message(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: true, Message: msg})
}

// OKWithMessage writes both a message and data.
func OKWithMessage(c echo.Context, status int, msg string, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Message: msg, Data: data})
}

// ErrorHandler renders *apperr.Error and *echo.HTTPError values as
// {success:false,...}. Anything else is logged and reported as a 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

func render(err error) (int, Envelope) {
	if appErr, ok := apperr.As(err); ok {
		status := apperr.HTTPStatus(appErr.Kind)
		msg := appErr.Message
		if status >= http.StatusInternalServerError {
			msg = "internal server error"
		}
		return status, Envelope{Message: msg, Code: appErr.Code, Details: appErr.Details}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if httpErr.Message != nil {
			msg = fmt.Sprintf("%v", httpErr.Message)
		}
		return httpErr.Code, Envelope{Message: msg}
	}

	return http.StatusInternalServerError, Envelope{Message: "internal server error"}
}
