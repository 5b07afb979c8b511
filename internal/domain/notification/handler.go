package notification

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/organlink/organlink/internal/platform/auth"
	"github.com/organlink/organlink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications", auth.RequireHospital())
	g.GET("", h.List)
	g.GET("/unread-count", h.UnreadCount)
	g.GET("/:id", h.Get)
	g.POST("/:id/read", h.MarkRead)
	g.POST("/read-all", h.MarkAllRead)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	unreadOnly := c.QueryParam("unread") == "true"
	items, total, err := h.svc.List(c.Request().Context(), hospitalID, unreadOnly, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UnreadCount(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	n, err := h.svc.UnreadCount(c.Request().Context(), hospitalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}

func (h *Handler) Get(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	n, err := h.svc.Get(c.Request().Context(), c.Param("id"), hospitalID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkRead(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	err := h.svc.MarkRead(c.Request().Context(), c.Param("id"), hospitalID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	n, err := h.svc.MarkAllRead(c.Request().Context(), hospitalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": n})
}

func (h *Handler) Delete(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	err := h.svc.Delete(c.Request().Context(), c.Param("id"), hospitalID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
