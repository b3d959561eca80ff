package identity

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/blobstore"
	"github.com/clinicbook/clinic/internal/platform/httpx"
	"github.com/clinicbook/clinic/pkg/pagination"
)

// Multipart field names accepted by the upload endpoints.
const (
	photoField        = "doctorPhoto"
	clinicImagesField = "clinicImages"
)

type Handler struct {
	auth    *AuthService
	svc     *Service
	clinics *ClinicService
}

func NewHandler(authSvc *AuthService, svc *Service, clinics *ClinicService) *Handler {
	return &Handler{auth: authSvc, svc: svc, clinics: clinics}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	a := api.Group("/auth")
	a.POST("/register", h.Register)
	a.POST("/login", h.Login)
	a.POST("/verify-email-otp", h.VerifyEmail)
	a.POST("/resend-email-otp", h.ResendOTP)
	a.POST("/forgot-password", h.ForgotPassword)
	a.POST("/verify-password-reset-otp", h.VerifyResetOTP)
	a.POST("/reset-password", h.ResetPassword)
	a.GET("/me", h.Me)
	a.GET("/validate-token", h.Me)
	a.POST("/logout", h.Logout)

	api.GET("/specialties", h.ListSpecialties)
	api.GET("/doctors", h.SearchDoctors)
	api.GET("/doctors/:doctorId", h.GetDoctorDetails)

	anyRole := auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin)
	browse := api.Group("/patient/doctors", anyRole)
	browse.GET("/search", h.SearchDoctors)
	browse.GET("/:doctorId", h.GetDoctorDetails)

	doctor := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/profile", h.GetDoctorProfile)
	doctor.PUT("/profile", h.UpdateDoctorProfile)
	doctor.PUT("/clinic", h.UpdateClinic)
	doctor.POST("/clinic/submit", h.SubmitClinic)
	doctor.GET("/clinic/status", h.ClinicStatus)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.PUT("/users/:userId", h.UpdateUser)
	admin.DELETE("/users/:userId", h.DeleteUser)
	admin.GET("/specialties", h.ListSpecialties)
	admin.POST("/specialties", h.CreateSpecialty)
	admin.PUT("/specialties/:id", h.UpdateSpecialty)
	admin.DELETE("/specialties/:id", h.DeleteSpecialty)
	admin.GET("/clinics/pending", h.PendingClinics)
	admin.GET("/clinics/statistics", h.ClinicStatistics)
	admin.PUT("/clinics/:doctorId/approve", h.ApproveClinic)
	admin.PUT("/clinics/:doctorId/reject", h.RejectClinic)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("INVALID_ID", "invalid "+name)
	}
	return id, nil
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formString returns the form value, or nil when the field was not sent.
func formString(form *multipart.Form, name string) *string {
	vals, ok := form.Value[name]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

func formValue(form *multipart.Form, name string) string {
	if v := formString(form, name); v != nil {
		return *v
	}
	return ""
}

// openUploads opens every file sent under field. The returned func closes
// them all.
func openUploads(form *multipart.Form, field string) ([]blobstore.Upload, func(), error) {
	var ups []blobstore.Upload
	var closers []func() error
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}
	for _, fh := range form.File[field] {
		up, closeFn, err := blobstore.FromFormFile(fh)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		ups = append(ups, up)
		closers = append(closers, closeFn)
	}
	return ups, closeAll, nil
}

// -- Auth --

func (h *Handler) Register(c echo.Context) error {
	var req UserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusCreated,
		"Registration successful. Please check your email for the verification code.", res)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, res)
}

func (h *Handler) VerifyEmail(c echo.Context) error {
	var req OTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.VerifyEmail(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Email verified successfully", res)
}

func (h *Handler) ResendOTP(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResendOTP(c.Request().Context(), req); err != nil {
		return err
	}
	return httpx.Message(c, http.StatusOK, "New verification code sent to your email")
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ForgotPassword(c.Request().Context(), req); err != nil {
		return err
	}
	return httpx.Message(c, http.StatusOK, "If the account exists, a reset code has been sent")
}

func (h *Handler) VerifyResetOTP(c echo.Context) error {
	var req OTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.VerifyResetOTP(c.Request().Context(), req); err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Code verified", map[string]bool{"canResetPassword": true})
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.Request().Context(), req); err != nil {
		return err
	}
	return httpx.Message(c, http.StatusOK, "Password reset successfully")
}

func (h *Handler) Me(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	u, err := h.auth.Me(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, u)
}

func (h *Handler) Logout(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	h.auth.Logout(p)
	return httpx.Message(c, http.StatusOK, "Logged out")
}

// -- Doctors --

func searchFromQuery(c echo.Context) DoctorSearch {
	return DoctorSearch{
		Specialty: c.QueryParam("specialty"),
		Location:  c.QueryParam("location"),
		Name:      c.QueryParam("name"),
	}
}

func (h *Handler) SearchDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchDoctors(c.Request().Context(), searchFromQuery(c), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetDoctorDetails(c echo.Context) error {
	id, err := parseID(c, "doctorId")
	if err != nil {
		return err
	}
	v, err := h.svc.GetDoctorDetails(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, v)
}

func (h *Handler) GetDoctorProfile(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetDoctorProfile(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, v)
}

// UpdateDoctorProfile accepts JSON, or a multipart form that may carry a
// photo in the doctorPhoto field.
func (h *Handler) UpdateDoctorProfile(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req DoctorProfileRequest
	var photo *blobstore.Upload
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Validation("invalid multipart form")
		}
		req.Specialty = formString(form, "specialty")
		req.Location = formString(form, "location")
		if raw := formString(form, "fee"); raw != nil {
			fee, err := strconv.ParseFloat(*raw, 64)
			if err != nil {
				return apperr.Validation("fee must be a number")
			}
			req.Fee = &fee
		}
		ups, closeAll, err := openUploads(form, photoField)
		if err != nil {
			return err
		}
		defer closeAll()
		if len(ups) > 0 {
			photo = &ups[0]
		}
	} else if err := bind(c, &req); err != nil {
		return err
	}

	v, err := h.svc.UpdateDoctorProfile(c.Request().Context(), p.UserID, req, photo)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Profile updated successfully", v)
}

func clinicRequestFromForm(form *multipart.Form) ClinicRequest {
	return ClinicRequest{
		Name:        formValue(form, "name"),
		Address:     formValue(form, "address"),
		Phone:       formValue(form, "phone"),
		Description: formValue(form, "description"),
	}
}

func (h *Handler) UpdateClinic(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req ClinicRequest
	var images []blobstore.Upload
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Validation("invalid multipart form")
		}
		req = clinicRequestFromForm(form)
		ups, closeAll, err := openUploads(form, clinicImagesField)
		if err != nil {
			return err
		}
		defer closeAll()
		images = ups
	} else if err := bind(c, &req); err != nil {
		return err
	}

	clinic, err := h.clinics.UpdateClinic(c.Request().Context(), p.UserID, req, images)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Clinic information updated successfully", clinic)
}

func (h *Handler) SubmitClinic(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req ClinicRequest
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	clinic, err := h.clinics.SubmitClinic(c.Request().Context(), p.UserID, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK,
		"Clinic submitted for approval. You will be notified once reviewed.", clinic)
}

func (h *Handler) ClinicStatus(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	clinic, err := h.clinics.ClinicStatus(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, clinic)
}

// -- Specialties --

func (h *Handler) ListSpecialties(c echo.Context) error {
	items, err := h.svc.ListSpecialties(c.Request().Context())
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, items)
}

func (h *Handler) CreateSpecialty(c echo.Context) error {
	var req SpecialtyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sp, err := h.svc.CreateSpecialty(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusCreated, "Specialty added successfully", sp)
}

func (h *Handler) UpdateSpecialty(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req SpecialtyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sp, err := h.svc.UpdateSpecialty(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Specialty updated successfully", sp)
}

func (h *Handler) DeleteSpecialty(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSpecialty(c.Request().Context(), id); err != nil {
		return err
	}
	return httpx.Message(c, http.StatusOK, "Specialty deleted successfully")
}

// -- Admin users --

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := UserFilter{Role: c.QueryParam("role"), Search: c.QueryParam("search")}
	items, total, err := h.svc.ListUsers(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req UserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.CreateUser(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusCreated, "User created successfully", u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := parseID(c, "userId")
	if err != nil {
		return err
	}
	var req UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "User updated successfully", u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), p, id); err != nil {
		return err
	}
	return httpx.Message(c, http.StatusOK, "User deleted successfully")
}

// -- Admin clinics --

func (h *Handler) PendingClinics(c echo.Context) error {
	items, err := h.clinics.PendingClinics(c.Request().Context())
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, items)
}

func (h *Handler) ClinicStatistics(c echo.Context) error {
	st, err := h.clinics.ClinicStatistics(c.Request().Context())
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, st)
}

func (h *Handler) ApproveClinic(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "doctorId")
	if err != nil {
		return err
	}
	v, err := h.clinics.Approve(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Clinic approved successfully", v)
}

func (h *Handler) RejectClinic(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "doctorId")
	if err != nil {
		return err
	}
	var req RejectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.clinics.Reject(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Clinic rejected", v)
}
