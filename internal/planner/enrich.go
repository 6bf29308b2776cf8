package planner

import (
	"context"

	"github.com/greenroute/greenroute/internal/pathfinder"
)

// enrichRoutes reconstructs bus-ride geometry and intermediate stops for
// the surviving routes. The geometry uses a pure-length path between the
// ride's endpoint stops; its greenness is deliberately not accumulated —
// riders do not perceive streetscape greenness from a moving bus.
func (s *Service) enrichRoutes(ctx context.Context, plans []*RoutePlan, month string) {
	for _, plan := range plans {
		for _, seg := range plan.RideSegments() {
			ride := seg.Ride

			fromVertex, err := s.solver.NearestVertex(ctx, ride.FromStopPosition)
			if err == nil {
				toVertex, err2 := s.solver.NearestVertex(ctx, ride.ToStopPosition)
				if err2 == nil {
					path, err3 := s.solver.ShortestEdgePath(ctx, fromVertex, toVertex, month, pathfinder.PureLength())
					if err3 == nil {
						ride.Geometry = path.Geometry
						ride.EdgeIDs = path.EdgeIDs
					} else {
						s.logger.Debug().Err(err3).Int64("from_stop", ride.FromStopPointID).Msg("ride geometry reconstruction failed")
					}
				}
			}

			stops, err := s.store.StopsAlong(ctx, ride.Line.ID, ride.Line.DirectionCode, ride.FromStopPointID, ride.ToStopPointID, s.engine.StopsAlongDepth)
			if err != nil {
				s.logger.Debug().Err(err).Int64("line_id", ride.Line.ID).Msg("intermediate stop enumeration failed")
				continue
			}
			ride.IntermediateStops = stops
		}
	}
}
