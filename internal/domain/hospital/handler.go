package hospital

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

// RegisterRoutes wires the public login surface and the authenticated
// hospital management endpoints.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/auth/login", h.Login)
	public.GET("/locations", h.Locations)

	g := api.Group("/hospitals")
	g.GET("/me", h.Me, auth.RequireHospital())
	g.POST("", h.Register, auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.List, auth.RequireRole(auth.RoleAdmin))
	g.GET("/:id", h.Get, auth.RequireRole(auth.RoleAdmin))
	g.PUT("/:id", h.Update, auth.RequireRole(auth.RoleAdmin))
	g.PATCH("/:id/status", h.SetStatus, auth.RequireRole(auth.RoleAdmin))
}

type loginRequest struct {
	HospitalID string `json:"hospital_id"`
	Password   string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var body loginRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.HospitalID == "" || body.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "hospital_id and password are required")
	}
	result, err := h.svc.Authenticate(c.Request().Context(), body.HospitalID, body.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid hospital id or password")
	case errors.Is(err, ErrInactive):
		return echo.NewHTTPError(http.StatusForbidden, "hospital account is inactive")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Locations(c echo.Context) error {
	tree, err := h.svc.Locations(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tree)
}

func (h *Handler) Me(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	hosp, err := h.svc.Get(c.Request().Context(), hospitalID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "hospital not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hosp)
}

type registerRequest struct {
	Hospital
	Password string `json:"password"`
}

func (h *Handler) Register(c echo.Context) error {
	var body registerRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), &body.Hospital, body.Password); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, body.Hospital)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	hosp, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "hospital not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) Update(c echo.Context) error {
	var body Hospital
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body.HospitalID = c.Param("id")
	if err := h.svc.Update(c.Request().Context(), &body); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "hospital not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, body)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	var body statusRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.svc.SetStatus(c.Request().Context(), c.Param("id"), body.Status)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "hospital not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
