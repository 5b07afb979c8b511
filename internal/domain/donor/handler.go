package donor

import (
	"errors"
	"io"
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
	g := api.Group("/donors", auth.RequireHospital())
	g.POST("", h.Register)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.POST("/:id/signature", h.AttachSignature)
	g.PATCH("/:id/active", h.SetActive)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) Register(c echo.Context) error {
	var d Donor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.HospitalID = auth.HospitalIDFromContext(c.Request().Context())
	if err := h.svc.Register(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	items, total, err := h.svc.List(c.Request().Context(), hospitalID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"), hospitalID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "donor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Update(c echo.Context) error {
	var d Donor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.DonorID = c.Param("id")
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	err := h.svc.Update(c.Request().Context(), &d, hospitalID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "donor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) AttachSignature(c echo.Context) error {
	fileHeader, err := c.FormFile("signature")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "signature file is required")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	document, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	d, err := h.svc.AttachSignature(c.Request().Context(), c.Param("id"), hospitalID, fileHeader.Filename, document)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "donor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) SetActive(c echo.Context) error {
	var body activeRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	err := h.svc.SetActive(c.Request().Context(), c.Param("id"), hospitalID, body.Active)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "donor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Delete(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	err := h.svc.Delete(c.Request().Context(), c.Param("id"), hospitalID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "donor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
