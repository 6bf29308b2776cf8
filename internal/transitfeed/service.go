package transitfeed

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DepartureProvider fetches departures for a single site.
type DepartureProvider interface {
	Name() string
	SiteDepartures(ctx context.Context, siteID int64, forecastSeconds int) ([]Departure, error)
}

// ServiceConfig holds configuration for the departures service.
type ServiceConfig struct {
	// Provider is the departures data provider.
	Provider DepartureProvider

	// Logger for service operations.
	Logger zerolog.Logger

	// PacingDelay is the fixed delay between successive upstream requests
	// within one batch (default: 500 ms). The upstream rate limits are
	// unstated, so batch calls are strictly sequential.
	PacingDelay time.Duration
}

// Service provides departure forecasts with per-site failure isolation.
type Service struct {
	provider    DepartureProvider
	logger      zerolog.Logger
	pacingDelay time.Duration
}

// NewService creates a new departures service.
func NewService(cfg ServiceConfig) *Service {
	pacingDelay := cfg.PacingDelay
	if pacingDelay == 0 {
		pacingDelay = 500 * time.Millisecond
	}

	return &Service{
		provider:    cfg.Provider,
		logger:      cfg.Logger,
		pacingDelay: pacingDelay,
	}
}

// GetDepartures returns bus departures at a site within the forecast
// window. A provider failure yields an empty list, never an error.
func (s *Service) GetDepartures(ctx context.Context, siteID int64, forecastSeconds int) []Departure {
	departures, err := s.provider.SiteDepartures(ctx, siteID, forecastSeconds)
	if err != nil {
		s.logger.Warn().Err(err).
			Int64("site_id", siteID).
			Str("provider", s.provider.Name()).
			Msg("departure fetch failed, returning empty list")
		return []Departure{}
	}
	return departures
}

// GetBatchDepartures fetches departures for every site sequentially, with
// the pacing delay between successive requests. Request order follows the
// input order. Per-site failures yield empty entries; the batch itself only
// fails when the context is cancelled.
func (s *Service) GetBatchDepartures(ctx context.Context, siteIDs []int64, forecastSeconds int) (map[int64][]Departure, error) {
	result := make(map[int64][]Departure, len(siteIDs))

	for i, siteID := range siteIDs {
		if i > 0 {
			if err := s.pace(ctx); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result[siteID] = s.GetDepartures(ctx, siteID, forecastSeconds)
	}

	s.logger.Debug().
		Int("sites", len(siteIDs)).
		Msg("departure batch completed")

	return result, nil
}

// pace sleeps for the pacing delay, observing cancellation.
func (s *Service) pace(ctx context.Context) error {
	timer := time.NewTimer(s.pacingDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
