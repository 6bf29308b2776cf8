package gvi

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/gvi/geoai"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// DefaultPointListLimit bounds gvi-point listings.
const DefaultPointListLimit = 20000

// GreennessProvider computes greenness values at coordinates.
type GreennessProvider interface {
	Name() string
	CalculateGVI(ctx context.Context, points []geoai.PointRequest, month string) ([]geoai.PointResult, error)
}

// ServiceConfig holds configuration for the GVI service.
type ServiceConfig struct {
	// Repository is the GVI persistence layer.
	Repository Repository

	// Provider computes greenness for new points (optional; AddPoints
	// fails when unset).
	Provider GreennessProvider

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service exposes the green-view point layer and DGVI statistics.
type Service struct {
	repo     Repository
	provider GreennessProvider
	logger   zerolog.Logger
}

// NewService creates a new GVI service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:     cfg.Repository,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// AvailableMonths returns months with DGVI rows, newest first.
func (s *Service) AvailableMonths(ctx context.Context) ([]string, error) {
	return s.repo.AvailableMonths(ctx)
}

// RecommendedMonth returns the newest month with DGVI rows.
func (s *Service) RecommendedMonth(ctx context.Context) (string, error) {
	months, err := s.repo.AvailableMonths(ctx)
	if err != nil {
		return "", err
	}
	if len(months) == 0 {
		return "", ErrNoDataForMonth
	}
	return months[0], nil
}

// MonthStats returns DGVI statistics for one month.
func (s *Service) MonthStats(ctx context.Context, month string) (*MonthStats, error) {
	if err := ValidateMonth(month); err != nil {
		return nil, err
	}
	return s.repo.MonthStats(ctx, month)
}

// PointsForMonth lists GVI points of a month, bounded by limit.
func (s *Service) PointsForMonth(ctx context.Context, month string, limit int) ([]Point, error) {
	if err := ValidateMonth(month); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultPointListLimit {
		limit = DefaultPointListLimit
	}
	return s.repo.PointsForMonth(ctx, month, limit)
}

// AddPoints computes greenness for up to 20 coordinates via the remote
// greenness service and persists the successful results.
func (s *Service) AddPoints(ctx context.Context, coords []geometry.Coordinate, month string) ([]Point, error) {
	if err := ValidateMonth(month); err != nil {
		return nil, err
	}
	if len(coords) > geoai.MaxPointsPerRequest {
		return nil, ErrTooManyPoints
	}
	if s.provider == nil {
		return nil, fmt.Errorf("greenness provider not configured")
	}

	reqs := make([]geoai.PointRequest, 0, len(coords))
	for _, c := range coords {
		reqs = append(reqs, geoai.PointRequest{Lat: c.Lat, Lon: c.Lon})
	}

	results, err := s.provider.CalculateGVI(ctx, reqs, month)
	if err != nil {
		return nil, fmt.Errorf("greenness computation: %w", err)
	}

	var points []Point
	for _, r := range results {
		if !r.Success || r.GVI == nil {
			s.logger.Warn().
				Float64("lat", r.Lat).
				Float64("lon", r.Lon).
				Msg("greenness computation failed for point")
			continue
		}
		points = append(points, Point{
			Position: geometry.Coordinate{Lat: r.Lat, Lon: r.Lon},
			Month:    month,
			Value:    *r.GVI,
		})
	}

	if len(points) > 0 {
		if err := s.repo.InsertPoints(ctx, points); err != nil {
			return nil, fmt.Errorf("persisting gvi points: %w", err)
		}
	}

	s.logger.Info().
		Int("requested", len(coords)).
		Int("stored", len(points)).
		Str("month", month).
		Msg("gvi points added")

	return points, nil
}
