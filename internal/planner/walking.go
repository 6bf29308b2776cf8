package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenroute/greenroute/internal/pathfinder"
	"github.com/greenroute/greenroute/internal/spatial"
)

// walkingStrategy names a preference variant for walking discovery.
type walkingStrategy struct {
	name   string
	wTime  float64
	wGreen float64
}

// walkingCandidates discovers walking routes under three strategies: the
// caller's weights, pure speed ("ASAP"), and pure greenness ("GROOT").
// Candidates are deduplicated by their sorted edge-id fingerprint and the
// first two survivors in strategy-priority order are kept.
func (s *Service) walkingCandidates(ctx context.Context, req Request) []*RoutePlan {
	fromVertex, err := s.solver.NearestVertex(ctx, req.Origin)
	if err != nil {
		s.logWalkFailure("origin", err)
		return nil
	}
	toVertex, err := s.solver.NearestVertex(ctx, req.Destination)
	if err != nil {
		s.logWalkFailure("destination", err)
		return nil
	}

	strategies := []walkingStrategy{
		{name: "user", wTime: req.Preferences.Time, wGreen: req.Preferences.Green},
		{name: "asap", wTime: 1, wGreen: 0},
		{name: "groot", wTime: 0, wGreen: 1},
	}

	paths := make([]*pathfinder.Path, len(strategies))
	var wg sync.WaitGroup
	for i, strat := range strategies {
		wg.Add(1)
		go func(i int, strat walkingStrategy) {
			defer wg.Done()
			path, err := s.solver.ShortestEdgePath(ctx, fromVertex, toVertex, req.Month, pathfinder.Combined(strat.wTime, strat.wGreen))
			if err != nil {
				if !errors.Is(err, pathfinder.ErrNoPath) {
					s.logger.Warn().Err(err).Str("strategy", strat.name).Msg("walking path solve failed")
				}
				return
			}
			paths[i] = path
		}(i, strat)
	}
	wg.Wait()

	var plans []*RoutePlan
	seen := map[string]bool{}
	for i, path := range paths {
		if path == nil {
			continue
		}
		plan := s.buildWalkingPlan(ctx, req, path)
		fp := plan.WalkingFingerprint()
		if seen[fp] {
			s.logger.Debug().Str("strategy", strategies[i].name).Msg("duplicate walking candidate dropped")
			continue
		}
		seen[fp] = true
		plans = append(plans, plan)
		if len(plans) == 2 {
			break
		}
	}

	return plans
}

// buildWalkingPlan assembles a single-segment walking route and scores its
// end-to-end greenness.
func (s *Service) buildWalkingPlan(ctx context.Context, req Request, path *pathfinder.Path) *RoutePlan {
	duration := time.Duration(path.Distance / s.engine.WalkingSpeed * float64(time.Second))

	plan := &RoutePlan{
		ID:          "route_" + uuid.New().String()[:12],
		Type:        RouteWalking,
		Origin:      req.Origin,
		Destination: req.Destination,
		Month:       req.Month,
		Segments: []Segment{
			{
				Type:     SegmentWalking,
				Duration: duration,
				Walking: &WalkingSegment{
					Distance: path.Distance,
					EdgeIDs:  path.EdgeIDs,
					Geometry: path.Geometry,
				},
			},
		},
		TotalDuration: duration,
	}
	plan.TotalAcDGVI = s.greenness.WalkingDGVI(ctx, path.EdgeIDs, req.Month)

	return plan
}

func (s *Service) logWalkFailure(endpoint string, err error) {
	if errors.Is(err, spatial.ErrNoVertex) {
		s.logger.Warn().Str("endpoint", endpoint).Msg("no graph vertex near walking endpoint")
		return
	}
	s.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("walking endpoint resolution failed")
}
