package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func runRBAC(t *testing.T, principal *Principal, roles ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if principal != nil {
		req = req.WithContext(WithPrincipal(req.Context(), *principal))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	return RequireRole(roles...)(handler)(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	p := &Principal{UserID: uuid.New(), Role: RoleDoctor}
	if err := runRBAC(t, p, RoleDoctor, RoleAdmin); err != nil {
		t.Errorf("expected access, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	p := &Principal{UserID: uuid.New(), Role: RolePatient}
	expectStatus(t, runRBAC(t, p, RoleDoctor), http.StatusForbidden)
}

func TestRequireRole_AdminIsNotPatient(t *testing.T) {
	p := &Principal{UserID: uuid.New(), Role: RoleAdmin}
	expectStatus(t, runRBAC(t, p, RolePatient), http.StatusForbidden)
}

func TestRequireRole_Unauthenticated(t *testing.T) {
	expectStatus(t, runRBAC(t, nil, RolePatient), http.StatusUnauthorized)
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RolePatient, RoleDoctor, RoleAdmin} {
		if !ValidRole(r) {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if ValidRole("nurse") {
		t.Error("expected nurse to be invalid")
	}
}
