package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"meetup-system/models"
	"meetup-system/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type DiscoveryHandler struct {
	discovery *services.DiscoveryService
}

func NewDiscoveryHandler(discovery *services.DiscoveryService) *DiscoveryHandler {
	return &DiscoveryHandler{discovery: discovery}
}

// List handles GET /api/v1/meetups with optional category, status, q and geo
// query parameters.
func (h *DiscoveryHandler) List(e *core.RequestEvent) error {
	query := e.Request.URL.Query()

	filters := models.ListFilters{
		Category: query.Get("category"),
		Statuses: parseStatuses(query.Get("status")),
	}
	if query.Has("q") {
		term := query.Get("q")
		filters.Search = &term
	}

	lat, err := parseFloatParam(query.Get("lat"))
	if err != nil {
		return apis.NewBadRequestError("lat must be a number", err)
	}
	lng, err := parseFloatParam(query.Get("lng"))
	if err != nil {
		return apis.NewBadRequestError("lng must be a number", err)
	}
	radius, err := parseFloatParam(query.Get("radius_km"))
	if err != nil {
		return apis.NewBadRequestError("radius_km must be a number", err)
	}

	if lat != nil || lng != nil {
		return h.nearby(e, lat, lng, radius, filters)
	}

	meetups, err := h.discovery.List(e.Request.Context(), filters, viewerID(e))
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": meetups})
}

// Nearby handles GET /api/v1/meetups/nearby, where lat and lng are required.
func (h *DiscoveryHandler) Nearby(e *core.RequestEvent) error {
	query := e.Request.URL.Query()

	lat, err := parseFloatParam(query.Get("lat"))
	if err != nil {
		return apis.NewBadRequestError("lat must be a number", err)
	}
	lng, err := parseFloatParam(query.Get("lng"))
	if err != nil {
		return apis.NewBadRequestError("lng must be a number", err)
	}
	radius, err := parseFloatParam(query.Get("radius_km"))
	if err != nil {
		return apis.NewBadRequestError("radius_km must be a number", err)
	}

	// No status parameter here: the nearby feed is always restricted to
	// upcoming and ongoing meetups.
	filters := models.ListFilters{
		Category: query.Get("category"),
	}
	if query.Has("q") {
		term := query.Get("q")
		filters.Search = &term
	}
	return h.nearby(e, lat, lng, radius, filters)
}

func (h *DiscoveryHandler) nearby(e *core.RequestEvent, lat, lng *float64, radius *float64, filters models.ListFilters) error {
	radiusKm := 0.0
	if radius != nil {
		radiusKm = *radius
	}
	meetups, err := h.discovery.Nearby(e.Request.Context(), lat, lng, radiusKm, filters, viewerID(e))
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": meetups})
}

func parseFloatParam(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseStatuses(raw string) []models.MeetupStatus {
	if raw == "" {
		return nil
	}
	var out []models.MeetupStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, models.MeetupStatus(strings.ToUpper(part)))
		}
	}
	return out
}
