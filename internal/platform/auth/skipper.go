package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths are route patterns reachable without a bearer token.
var publicPaths = map[string]bool{
	"/health":                             true,
	"/health/db":                          true,
	"/metrics":                            true,
	"/api/auth/register":                  true,
	"/api/auth/login":                     true,
	"/api/auth/verify-email-otp":          true,
	"/api/auth/resend-email-otp":          true,
	"/api/auth/forgot-password":           true,
	"/api/auth/verify-password-reset-otp": true,
	"/api/auth/reset-password":            true,
	"/api/specialties":                    true,
	"/api/doctors":                        true,
	"/api/doctors/:doctorId":              true,
}

// AuthSkipper returns true for requests that bypass authentication:
// the public paths above, CORS preflights and uploaded files.
func AuthSkipper(c echo.Context) bool {
	if c.Request().Method == "OPTIONS" {
		return true
	}
	if strings.HasPrefix(c.Request().URL.Path, "/uploads/") {
		return true
	}
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the route pattern is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
