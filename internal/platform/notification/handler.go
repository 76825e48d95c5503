package notification

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hospitalops/hospitalops/pkg/pagination"
)

// Handler exposes the notification history over HTTP.
type Handler struct {
	gateway *Gateway
}

func NewHandler(g *Gateway) *Handler {
	return &Handler{gateway: g}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/:id", h.Get)
	g.POST("/notifications/:id/retry", h.Retry)
}

// List handles GET /notifications?recipient=&limit=&offset=
func (h *Handler) List(c echo.Context) error {
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	pg := pagination.FromContext(c)

	matches := h.gateway.ListByRecipient(c.QueryParam("recipient"), math.MaxInt)
	start, end := pg.Window(len(matches))
	resp := pagination.NewResponse(matches[start:end], len(matches), pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, len(matches))
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Get(c echo.Context) error {
	n, ok := h.gateway.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	return c.JSON(http.StatusOK, n)
}

// Retry handles POST /notifications/:id/retry. A transport failure is the
// upstream's fault, not the caller's.
func (h *Handler) Retry(c echo.Context) error {
	n, err := h.gateway.Retry(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	case errors.Is(err, ErrNotRetryable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, "notification transport unavailable").SetInternal(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.gateway.Stats())
}
