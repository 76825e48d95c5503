package allocation

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hospitalops/hospitalops/internal/platform/auth"
	"github.com/hospitalops/hospitalops/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/resources", auth.RequireRole(auth.RoleManager, auth.RoleAdmin))

	// Manager-scoped endpoints: a manager may only act as themself
	self := g.Group("", auth.RequireSelf("managerID"))
	self.GET("/dashboard/:managerID", h.Dashboard)
	self.GET("/patient-flow/:managerID", h.PatientFlow)
	self.GET("/utilization/:managerID", h.Utilization)
	self.GET("/available/:managerID", h.Available)
	self.GET("/shortages/:managerID", h.Shortages)
	self.GET("/suggestions/:managerID", h.Suggestions)
	self.POST("/allocate/:managerID", h.Allocate)
	self.PUT("/reallocate/:managerID/:allocationID", h.Reallocate)

	g.GET("/allocations", h.ListAllocations)
	g.GET("/allocations/:allocationID", h.GetAllocation)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/allocations/:allocationID", h.DeleteAllocation)
}

// httpError maps engine errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), c.Param("managerID"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) PatientFlow(c echo.Context) error {
	flow, err := h.svc.AnalyzeFlow(c.Request().Context(), c.Param("managerID"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, flow)
}

func (h *Handler) Utilization(c echo.Context) error {
	util, err := h.svc.AnalyzeUtilization(c.Request().Context(), c.Param("managerID"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, util)
}

type availableResources struct {
	PatientFlow           *FlowAnalysis      `json:"patient_flow"`
	DepartmentUtilization *UtilizationReport `json:"department_utilization"`
	ReviewedAt            time.Time          `json:"reviewed_at"`
}

func (h *Handler) Available(c echo.Context) error {
	ctx := c.Request().Context()
	managerID := c.Param("managerID")
	flow, err := h.svc.AnalyzeFlow(ctx, managerID)
	if err != nil {
		return httpError(err)
	}
	util, err := h.svc.AnalyzeUtilization(ctx, managerID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, availableResources{
		PatientFlow:           flow,
		DepartmentUtilization: util,
		ReviewedAt:            time.Now().UTC(),
	})
}

func (h *Handler) Shortages(c echo.Context) error {
	summary, err := h.svc.DetectShortages(c.Request().Context(), c.Param("managerID"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) Suggestions(c echo.Context) error {
	res, err := h.svc.SuggestReallocation(c.Request().Context(), c.Param("managerID"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Allocate(c echo.Context) error {
	var req AllocateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.HospitalID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Hospital ID is required")
	}
	if len(req.StaffIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "At least one staff member is required")
	}
	res, err := h.svc.Allocate(c.Request().Context(), c.Param("managerID"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Reallocate(c echo.Context) error {
	var req ReallocateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Empty() {
		return echo.NewHTTPError(http.StatusBadRequest, "At least one field must be provided for reallocation")
	}
	a, err := h.svc.Reallocate(c.Request().Context(), c.Param("managerID"), c.Param("allocationID"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAllocations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAllocations(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Allocation{}
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetAllocation(c echo.Context) error {
	a, err := h.svc.GetAllocationByID(c.Request().Context(), c.Param("allocationID"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAllocation(c echo.Context) error {
	if err := h.svc.DeleteAllocation(c.Request().Context(), c.Param("allocationID")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
