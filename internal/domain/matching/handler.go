package matching

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
	g := api.Group("/matching", auth.RequireHospital())
	g.POST("/find-matches", h.FindMatches)
	g.POST("/requests", h.CreateRequest)
	g.GET("/requests", h.ListRequests)
	g.GET("/requests/:id", h.GetRequest)
	g.GET("/incoming", h.IncomingMatches)
	g.POST("/respond", h.Respond)
	g.GET("/stats", h.Stats)
}

type needRequest struct {
	PatientID    string `json:"patient_id"`
	OrganType    string `json:"organ_type"`
	BloodType    string `json:"blood_type"`
	UrgencyLevel string `json:"urgency_level"`
}

func (h *Handler) need(c echo.Context) (Need, error) {
	var body needRequest
	if err := c.Bind(&body); err != nil {
		return Need{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return Need{
		PatientID:    body.PatientID,
		HospitalID:   auth.HospitalIDFromContext(c.Request().Context()),
		OrganType:    body.OrganType,
		BloodType:    body.BloodType,
		UrgencyLevel: body.UrgencyLevel,
	}, nil
}

// FindMatches previews the ranking for a need without creating a request or
// notifying anyone.
func (h *Handler) FindMatches(c echo.Context) error {
	need, err := h.need(c)
	if err != nil {
		return err
	}
	result, err := h.svc.FindMatches(c.Request().Context(), need)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	need, err := h.need(c)
	if err != nil {
		return err
	}
	req, err := h.svc.CreateRequest(c.Request().Context(), need)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	items, total, err := h.svc.ListRequests(c.Request().Context(), hospitalID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetRequest(c echo.Context) error {
	req, err := h.svc.GetRequest(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrRequestNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "matching request not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	view := req.ViewFor(hospitalID)
	if view == nil {
		return echo.NewHTTPError(http.StatusNotFound, "matching request not found")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) IncomingMatches(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	items, err := h.svc.IncomingMatches(c.Request().Context(), hospitalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*IncomingMatch{}
	}
	return c.JSON(http.StatusOK, items)
}

type respondRequest struct {
	RequestID string `json:"request_id"`
	Decision  string `json:"decision"`
	DonorID   string `json:"donor_id,omitempty"`
}

func (h *Handler) Respond(c echo.Context) error {
	var body respondRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.RequestID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request_id is required")
	}
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	req, err := h.svc.Respond(c.Request().Context(), body.RequestID, hospitalID, body.Decision, body.DonorID)
	switch {
	case errors.Is(err, ErrRequestNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "matching request not found")
	case errors.Is(err, ErrAlreadyResolved):
		return echo.NewHTTPError(http.StatusConflict, "matching request already resolved")
	case errors.Is(err, ErrDonorNotOwned):
		return echo.NewHTTPError(http.StatusForbidden, "donor does not belong to your hospital")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	view := req.ViewFor(hospitalID)
	if view == nil {
		redacted := *req
		redacted.Matches = nil
		view = &redacted
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Stats(c echo.Context) error {
	hospitalID := auth.HospitalIDFromContext(c.Request().Context())
	stats, err := h.svc.HospitalStats(c.Request().Context(), hospitalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
