package records

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/blobstore"
	"github.com/clinicbook/clinic/internal/platform/httpx"
)

const reportField = "medicalReport"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/medical-records", h.AddMedicalRecord)
	doctor.POST("/reports/upload", h.UploadReport)

	patient := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	patient.GET("/medical-history", h.MedicalHistory)
}

func (h *Handler) AddMedicalRecord(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	rec, err := h.svc.AddMedicalRecord(c.Request().Context(), p.UserID, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusCreated, "Medical record added successfully", rec)
}

// UploadReport takes a multipart form with the file in medicalReport and
// patientId, appointmentId, reportType and description as fields.
func (h *Handler) UploadReport(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	patientID, err := uuid.Parse(c.FormValue("patientId"))
	if err != nil {
		return apperr.InvalidArgument("INVALID_ID", "invalid patientId")
	}
	req := ReportRequest{
		PatientID:   patientID,
		ReportType:  c.FormValue("reportType"),
		Description: c.FormValue("description"),
	}
	if raw := c.FormValue("appointmentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.InvalidArgument("INVALID_ID", "invalid appointmentId")
		}
		req.AppointmentID = &id
	}

	var file *blobstore.Upload
	if fh, err := c.FormFile(reportField); err == nil {
		up, closeFn, err := blobstore.FromFormFile(fh)
		if err != nil {
			return err
		}
		defer closeFn()
		file = &up
	} else if !errors.Is(err, http.ErrMissingFile) {
		return apperr.Validation("invalid multipart form")
	}

	rep, err := h.svc.UploadReport(c.Request().Context(), p.UserID, req, file)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusCreated, "Report uploaded successfully", rep)
}

func (h *Handler) MedicalHistory(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	hist, err := h.svc.MedicalHistory(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, hist)
}
