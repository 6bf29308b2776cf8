package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenroute/greenroute/internal/api/models"
	"github.com/greenroute/greenroute/internal/api/response"
	"github.com/greenroute/greenroute/internal/gvi"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// GVIService exposes the green-view layer.
type GVIService interface {
	AvailableMonths(ctx context.Context) ([]string, error)
	MonthStats(ctx context.Context, month string) (*gvi.MonthStats, error)
	PointsForMonth(ctx context.Context, month string, limit int) ([]gvi.Point, error)
	AddPoints(ctx context.Context, coords []geometry.Coordinate, month string) ([]gvi.Point, error)
}

// GVIHandler handles green-view data endpoints.
type GVIHandler struct {
	service GVIService
}

// NewGVIHandler creates a new GVIHandler.
func NewGVIHandler(service GVIService) *GVIHandler {
	return &GVIHandler{service: service}
}

// AvailableMonths handles GET /v1/available-months.
func (h *GVIHandler) AvailableMonths(w http.ResponseWriter, r *http.Request) {
	months, err := h.service.AvailableMonths(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list months")
		return
	}
	if months == nil {
		months = []string{}
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{"months": months})
}

// MonthStats handles GET /v1/dgvi-stats/{month}.
func (h *GVIHandler) MonthStats(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")

	stats, err := h.service.MonthStats(r.Context(), month)
	if err != nil {
		writeGVIError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

// PointsForMonth handles GET /v1/gvi-points/{month}.
func (h *GVIHandler) PointsForMonth(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")

	points, err := h.service.PointsForMonth(r.Context(), month, gvi.DefaultPointListLimit)
	if err != nil {
		writeGVIError(w, r, err)
		return
	}

	type pointOut struct {
		Lat   float64 `json:"lat"`
		Lon   float64 `json:"lon"`
		Value float64 `json:"gvi"`
	}
	out := make([]pointOut, 0, len(points))
	for _, p := range points {
		out = append(out, pointOut{Lat: p.Position.Lat, Lon: p.Position.Lon, Value: p.Value})
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"month":  month,
		"count":  len(out),
		"points": out,
	})
}

// AddPoints handles POST /v1/add-gvi-points - compute and persist up to 20
// greenness points via the remote greenness service.
func (h *GVIHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Points []models.Point `json:"points"`
		Month  string         `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if len(input.Points) == 0 {
		response.BadRequest(w, r, "at least one point is required", []models.FieldError{
			{Field: "points", Message: "required"},
		})
		return
	}

	coords := make([]geometry.Coordinate, 0, len(input.Points))
	for _, p := range input.Points {
		coords = append(coords, geometry.Coordinate{Lat: p.Lat, Lon: p.Lon})
	}

	stored, err := h.service.AddPoints(r.Context(), coords, input.Month)
	if err != nil {
		switch {
		case errors.Is(err, gvi.ErrTooManyPoints):
			response.BadRequest(w, r, "at most 20 points per call", nil)
		case errors.Is(err, gvi.ErrInvalidMonth):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			response.ServiceUnavailable(w, r, "greenness service unavailable")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"requested": len(coords),
		"stored":    len(stored),
		"month":     input.Month,
	})
}

func writeGVIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gvi.ErrInvalidMonth):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, gvi.ErrNoDataForMonth):
		response.NotFound(w, r, "no greenness data for month")
	default:
		response.InternalError(w, r, "greenness lookup failed")
	}
}
