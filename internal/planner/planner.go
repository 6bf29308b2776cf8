package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/config"
	"github.com/greenroute/greenroute/internal/gvi"
	"github.com/greenroute/greenroute/internal/pathfinder"
	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/internal/transitfeed"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// PathSolver solves shortest edge paths over the road graph.
type PathSolver interface {
	NearestVertex(ctx context.Context, p geometry.Coordinate) (int64, error)
	ShortestEdgePath(ctx context.Context, fromVertex, toVertex int64, month string, cost pathfinder.CostFunc) (*pathfinder.Path, error)
}

// DepartureSource provides batched departure forecasts.
type DepartureSource interface {
	GetBatchDepartures(ctx context.Context, siteIDs []int64, forecastSeconds int) (map[int64][]transitfeed.Departure, error)
}

// TransitStore is the subset of the spatial repository the planner needs
// for transit search.
type TransitStore interface {
	SitesWithinAndNearest(ctx context.Context, p geometry.Coordinate, radiusMeters float64, k, limit int) ([]spatial.Site, error)
	StopPoint(ctx context.Context, id int64) (*spatial.StopPoint, error)
	NextStop(ctx context.Context, lineID int64, directionCode string, stopPointID int64) (*spatial.NextStop, error)
	ReachableSitesFrom(ctx context.Context, lineID int64, directionCode string, stopPointID int64, targetSiteIDs []int64, maxDepth int) ([]int64, error)
	StopsAlong(ctx context.Context, lineID int64, directionCode string, fromStopID, toStopID int64, maxDepth int) ([]spatial.Stop, error)
}

// GreennessEvaluator accumulates greenness for route segments.
type GreennessEvaluator interface {
	WalkingDGVI(ctx context.Context, edgeIDs []int64, month string) float64
	WaitingDGVI(ctx context.Context, stop geometry.Coordinate, month string) (float64, error)
}

// ServiceConfig holds configuration for the planner.
type ServiceConfig struct {
	// Solver computes shortest paths.
	Solver PathSolver

	// Feed provides departure forecasts.
	Feed DepartureSource

	// Store is the transit query surface.
	Store TransitStore

	// Greenness accumulates DGVI for segments.
	Greenness GreennessEvaluator

	// Logger for planner operations.
	Logger zerolog.Logger

	// Engine holds the tunable engine options.
	Engine config.Engine

	// Now overrides the clock (tests); defaults to time.Now.
	Now func() time.Time
}

// Service is the top-level route planner.
type Service struct {
	solver    PathSolver
	feed      DepartureSource
	store     TransitStore
	greenness GreennessEvaluator
	logger    zerolog.Logger
	engine    config.Engine
	now       func() time.Time
}

// NewService creates a new planner service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		solver:    cfg.Solver,
		feed:      cfg.Feed,
		store:     cfg.Store,
		greenness: cfg.Greenness,
		logger:    cfg.Logger,
		engine:    cfg.Engine,
		now:       now,
	}
}

// Request is one planning request.
type Request struct {
	Origin      geometry.Coordinate
	Destination geometry.Coordinate
	Month       string
	Preferences Preferences
	MaxResults  int
}

// Validate checks the request.
func (r *Request) Validate() error {
	if err := validateCoordinate(r.Origin, "origin"); err != nil {
		return err
	}
	if err := validateCoordinate(r.Destination, "destination"); err != nil {
		return err
	}
	if err := r.Preferences.Validate(); err != nil {
		return err
	}
	if err := gvi.ValidateMonth(r.Month); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Result is the outcome of one planning request.
type Result struct {
	Routes []*RoutePlan
	Month  string
}

// PlanRoutes generates, scores, and ranks route candidates. Walking and
// transit discovery run concurrently; either branch failing degrades the
// response instead of failing it. An empty candidate set is a valid result.
func (s *Service) PlanRoutes(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 4
	}

	ctx, cancel := context.WithTimeout(ctx, s.engine.PlanDeadline)
	defer cancel()

	start := s.now()
	s.logger.Info().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Str("month", req.Month).
		Float64("w_time", req.Preferences.Time).
		Float64("w_green", req.Preferences.Green).
		Msg("planning routes")

	var (
		wg       sync.WaitGroup
		walking  []*RoutePlan
		busPlans []*RoutePlan
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		walking = s.walkingCandidates(ctx, req)
	}()
	go func() {
		defer wg.Done()
		busPlans = s.transitCandidates(ctx, req)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("planning deadline exceeded: %w", err)
	}

	walking = scoreCategory(walking, req.Preferences, 2)
	busPlans = scoreCategory(busPlans, req.Preferences, 2)

	s.enrichRoutes(ctx, busPlans, req.Month)

	routes := append([]*RoutePlan{}, walking...)
	routes = append(routes, busPlans...)
	if len(routes) > req.MaxResults {
		routes = routes[:req.MaxResults]
	}

	s.logger.Info().
		Int("walking", len(walking)).
		Int("bus", len(busPlans)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("planning completed")

	return &Result{Routes: routes, Month: req.Month}, nil
}
