package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/greenroute/greenroute/internal/api/models"
	"github.com/greenroute/greenroute/internal/api/response"
	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// SiteFinder looks up bus sites near a point.
type SiteFinder interface {
	SitesWithinAndNearest(ctx context.Context, p geometry.Coordinate, radiusMeters float64, k, limit int) ([]spatial.Site, error)
}

// SitesHandler handles the nearby-sites endpoint.
type SitesHandler struct {
	finder SiteFinder
}

// NewSitesHandler creates a new SitesHandler.
func NewSitesHandler(finder SiteFinder) *SitesHandler {
	return &SitesHandler{finder: finder}
}

// NearbySites handles GET /v1/nearby-sites?lat=..&lon=..&max_distance=..
func (h *SitesHandler) NearbySites(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		response.BadRequest(w, r, "lat and lon query parameters are required", []models.FieldError{
			{Field: "lat", Message: "required, decimal degrees"},
			{Field: "lon", Message: "required, decimal degrees"},
		})
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		response.BadRequest(w, r, "coordinates out of range", nil)
		return
	}

	maxDistance := 1680.0
	if v := r.URL.Query().Get("max_distance"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			maxDistance = parsed
		}
	}

	sites, err := h.finder.SitesWithinAndNearest(r.Context(), geometry.Coordinate{Lat: lat, Lon: lon}, maxDistance, 3, 5)
	if err != nil {
		response.InternalError(w, r, "site lookup failed")
		return
	}

	type siteOut struct {
		SiteID          int64   `json:"site_id"`
		Name            string  `json:"name"`
		Lat             float64 `json:"lat"`
		Lon             float64 `json:"lon"`
		WalkingDistance float64 `json:"walking_distance"`
	}
	out := make([]siteOut, 0, len(sites))
	for _, s := range sites {
		out = append(out, siteOut{
			SiteID:          s.ID,
			Name:            s.Name,
			Lat:             s.Position.Lat,
			Lon:             s.Position.Lon,
			WalkingDistance: s.WalkingDistance,
		})
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"count": len(out),
		"sites": out,
	})
}
