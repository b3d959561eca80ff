package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// BodyLimit applies uploadLimit to multipart/form-data requests and
// jsonLimit to everything else. Limits use echo's size syntax ("1M", "512K").
func BodyLimit(jsonLimit, uploadLimit string) echo.MiddlewareFunc {
	small := echomw.BodyLimit(jsonLimit)
	large := echomw.BodyLimit(uploadLimit)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		json, upload := small(next), large(next)
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				return upload(c)
			}
			return json(c)
		}
	}
}
