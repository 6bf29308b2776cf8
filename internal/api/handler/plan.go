package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/greenroute/greenroute/internal/api/models"
	"github.com/greenroute/greenroute/internal/api/response"
	"github.com/greenroute/greenroute/internal/gvi"
	"github.com/greenroute/greenroute/internal/planner"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// RoutePlanner plans multi-modal journeys.
type RoutePlanner interface {
	PlanRoutes(ctx context.Context, req planner.Request) (*planner.Result, error)
}

// MonthSource resolves the recommended greenness month.
type MonthSource interface {
	RecommendedMonth(ctx context.Context) (string, error)
}

// PlanHandler handles route planning endpoints.
type PlanHandler struct {
	planner RoutePlanner
	months  MonthSource
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(p RoutePlanner, months MonthSource) *PlanHandler {
	return &PlanHandler{planner: p, months: months}
}

// PlanRoutes handles POST /v1/plan-routes.
func (h *PlanHandler) PlanRoutes(w http.ResponseWriter, r *http.Request) {
	var input models.PlanRoutesRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if input.Origin == nil || input.Destination == nil {
		response.BadRequest(w, r, "origin and destination are required", []models.FieldError{
			{Field: "origin", Message: "required"},
			{Field: "destination", Message: "required"},
		})
		return
	}

	prefs := planner.Preferences{Time: 0.5, Green: 0.5}
	if input.Preferences != nil {
		prefs = *input.Preferences
	}

	month := input.GVIMonth
	if month == "" {
		recommended, err := h.months.RecommendedMonth(r.Context())
		if err != nil {
			if errors.Is(err, gvi.ErrNoDataForMonth) {
				response.NotFound(w, r, "no greenness data available")
				return
			}
			response.InternalError(w, r, "failed to resolve greenness month")
			return
		}
		month = recommended
	}

	result, err := h.planner.PlanRoutes(r.Context(), planner.Request{
		Origin:      geometry.Coordinate{Lat: input.Origin.Lat, Lon: input.Origin.Lon},
		Destination: geometry.Coordinate{Lat: input.Destination.Lat, Lon: input.Destination.Lon},
		Month:       month,
		Preferences: prefs,
		MaxResults:  input.MaxResults,
	})
	if err != nil {
		switch {
		case errors.Is(err, planner.ErrInvalidInput):
			response.BadRequest(w, r, err.Error(), nil)
		case errors.Is(err, context.DeadlineExceeded):
			response.ServiceUnavailable(w, r, "planning deadline exceeded")
		default:
			response.InternalError(w, r, "route planning failed")
		}
		return
	}

	routes := make([]models.RoutePlan, 0, len(result.Routes))
	for _, plan := range result.Routes {
		routes = append(routes, models.FromRoutePlan(plan))
	}

	input.GVIMonth = result.Month
	response.JSON(w, r, http.StatusOK, models.PlanRoutesResponse{
		Request: input,
		Results: models.PlanResults{
			TotalRoutes: len(routes),
			Routes:      routes,
		},
	})
}
