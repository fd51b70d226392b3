package treatment

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleBilling, auth.RoleReception))
	g.POST("/treatments/quote", h.Quote)
	g.POST("/treatments", h.Save)
	g.GET("/treatments", h.ListByPatient)
	g.GET("/treatments/:id", h.Get)
	g.GET("/treatments/:id/beneficiaries", h.ListBeneficiaries)
}

// saveFailure hands the submitted request back so the front desk can retry
// without re-entering lines, discount or promotion.
type saveFailure struct {
	Error     string      `json:"error"`
	Kind      apperr.Kind `json:"kind,omitempty"`
	Retryable bool        `json:"retryable"`
	Request   SaveRequest `json:"request"`
}

func (h *Handler) Save(c echo.Context) error {
	var req SaveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	res, err := h.svc.Save(c.Request().Context(), req)
	if err != nil {
		he := apperr.ToHTTP(err)
		kind := apperr.KindOf(err)
		return c.JSON(he.Code, saveFailure{
			Error:     fmt.Sprint(he.Message),
			Kind:      kind,
			Retryable: kind == apperr.KindPersistence || kind == "",
			Request:   req,
		})
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}

func (h *Handler) Quote(c echo.Context) error {
	var req SaveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	q, err := h.svc.Quote(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pid, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*CompletedTreatment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListBeneficiaries(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListBeneficiaries(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*CompletedTreatment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}
