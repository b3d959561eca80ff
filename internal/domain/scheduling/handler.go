package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/httpx"
	"github.com/clinicbook/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	patient.GET("/doctors/:doctorId/schedule", h.GetAvailability)
	patient.POST("/appointments/book", h.Book)
	patient.GET("/appointments", h.PatientAppointments)
	patient.PUT("/appointments/:id/cancel", h.Cancel)
	patient.PUT("/appointments/:id/update", h.Reschedule)

	doctor := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/schedule", h.ListSchedules)
	doctor.PUT("/schedule", h.ManageSchedule)
	doctor.GET("/appointments", h.DoctorAppointments)
	doctor.GET("/statistics", h.DoctorStatistics)

	shared := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	shared.GET("/appointments/:id", h.GetAppointment)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("INVALID_ID", "invalid "+name)
	}
	return id, nil
}

func filterFromQuery(c echo.Context) AppointmentFilter {
	return AppointmentFilter{
		Status:    Status(c.QueryParam("status")),
		Date:      c.QueryParam("date"),
		StartDate: c.QueryParam("startDate"),
		EndDate:   c.QueryParam("endDate"),
	}
}

func (h *Handler) GetAvailability(c echo.Context) error {
	doctorID, err := parseID(c, "doctorId")
	if err != nil {
		return err
	}
	date := c.QueryParam("date")
	if date == "" {
		return apperr.InvalidArgument("INVALID_DATE", "date query parameter is required")
	}
	av, err := h.svc.GetAvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, av)
}

func (h *Handler) Book(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Book(c.Request().Context(), p.UserID, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusCreated, "Appointment booked successfully", a)
}

func (h *Handler) Cancel(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), p.UserID, id)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Appointment cancelled successfully", a)
}

func (h *Handler) Reschedule(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Reschedule(c.Request().Context(), p.UserID, id, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Appointment updated successfully", a)
}

func (h *Handler) PatientAppointments(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientAppointments(c.Request().Context(), p.UserID, filterFromQuery(c), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) DoctorAppointments(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.DoctorAppointments(c.Request().Context(), p.UserID, filterFromQuery(c), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.GetAppointment(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, v)
}

func (h *Handler) ListSchedules(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListSchedules(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*ScheduleTemplate{}
	}
	return httpx.OK(c, http.StatusOK, items)
}

func (h *Handler) ManageSchedule(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	t, err := h.svc.ManageSchedule(c.Request().Context(), p.UserID, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Schedule updated successfully", t)
}

func (h *Handler) DoctorStatistics(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.DoctorStatistics(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, stats)
}
