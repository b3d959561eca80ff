package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/httpx"
)

type Service struct {
	repo  Repository
	clock clock.Clock
	loc   *time.Location
}

func NewService(repo Repository, clk clock.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, clock: clk, loc: loc}
}

// GlobalStatistics returns the platform totals and the last MonthlyWindow
// calendar months, newest first, with empty months reported as zero.
func (s *Service) GlobalStatistics(ctx context.Context) (*Statistics, error) {
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	from := start.AddDate(0, -(MonthlyWindow - 1), 0)
	to := start.AddDate(0, 1, 0)
	byMonth, err := s.repo.Monthly(ctx, from, to)
	if err != nil {
		return nil, err
	}

	months := make([]MonthStat, 0, MonthlyWindow)
	for m := start; !m.Before(from); m = m.AddDate(0, -1, 0) {
		key := m.Format(monthLayout)
		st := byMonth[key]
		st.Month, st.Year, st.Number = key, m.Year(), int(m.Month())
		months = append(months, st)
	}

	return &Statistics{
		TotalUsers:        totals.Users,
		TotalDoctors:      totals.Doctors,
		TotalPatients:     totals.Patients,
		TotalAppointments: totals.Appointments,
		TotalRevenue:      totals.Revenue,
		MonthlyStats:      months,
	}, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/statistics", h.GlobalStatistics)
}

func (h *Handler) GlobalStatistics(c echo.Context) error {
	st, err := h.svc.GlobalStatistics(c.Request().Context())
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, st)
}
