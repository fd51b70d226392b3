package payment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – billing, reception
	readGroup := api.Group("", auth.RequireRole(auth.RoleBilling, auth.RoleReception))
	readGroup.GET("/treatments/:id/payments", h.ListPayments)
	readGroup.GET("/treatments/:id/summary", h.GetSummary)
	readGroup.GET("/payments/preview", h.PreviewConversion)

	// Write endpoints – billing
	writeGroup := api.Group("", auth.RequireRole(auth.RoleBilling))
	writeGroup.POST("/treatments/:id/payments", h.AddPayment)
	writeGroup.DELETE("/payments/:id", h.DeletePayment)
}

func (h *Handler) AddPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req AddPaymentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	req.TreatmentID = id
	sum, err := h.svc.AddPayment(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, sum)
}

func (h *Handler) DeletePayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sum, err := h.svc.DeletePayment(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sum, err := h.svc.GetSummary(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Payment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

// PreviewConversion serves GET /payments/preview?treatment_id=&amount=&currency=.
func (h *Handler) PreviewConversion(c echo.Context) error {
	id, err := uuid.Parse(c.QueryParam("treatment_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid treatment_id")
	}
	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid amount")
	}
	preview, err := h.svc.PreviewConversion(c.Request().Context(), amount, c.QueryParam("currency"), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, preview)
}
