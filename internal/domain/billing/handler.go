package billing

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
	payments := api.Group("/payments", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	payments.POST("", h.CreatePayment)
	payments.POST("/confirm", h.ConfirmPayment, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	payments.GET("/:id", h.GetPayment)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/payments", h.ListPayments)
	admin.POST("/refunds", h.RefundPayment)
}

func (h *Handler) CreatePayment(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	pay, err := h.svc.CreatePayment(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusCreated, "Payment recorded", pay)
}

func (h *Handler) ConfirmPayment(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	pay, err := h.svc.ConfirmPayment(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Payment confirmed", pay)
}

func (h *Handler) GetPayment(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.InvalidArgument("INVALID_ID", "invalid id")
	}
	pay, err := h.svc.GetPayment(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, pay)
}

func (h *Handler) ListPayments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), PaymentFilter{Status: Status(c.QueryParam("status"))}, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) RefundPayment(c echo.Context) error {
	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	pay, err := h.svc.RefundPayment(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return httpx.OKWithMessage(c, http.StatusOK, "Payment refunded", pay)
}
