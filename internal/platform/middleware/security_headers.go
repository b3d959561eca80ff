package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

var baseSecurityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "no-referrer",
}

// SecurityHeaders hardens every response. JSON under /api is marked
// uncacheable; anything else (uploaded files) is sandboxed so a stored HTML
// or SVG file cannot run script in our origin.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range baseSecurityHeaders {
				h.Set(k, v)
			}
			switch path := c.Request().URL.Path; {
			case strings.HasPrefix(path, "/api/"):
				h.Set("Cache-Control", "no-store")
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			case strings.HasPrefix(path, "/health"), path == "/metrics":
			default:
				h.Set("Content-Security-Policy", "sandbox")
			}
			return next(c)
		}
	}
}
