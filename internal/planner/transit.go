package planner

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/greenroute/greenroute/internal/pathfinder"
	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/internal/transitfeed"
	"github.com/greenroute/greenroute/pkg/geometry"
)

const (
	// nearbySiteNearest is the k of the k-nearest fallback in site lookup.
	nearbySiteNearest = 3

	// nearbySiteLimit caps the sites considered per endpoint.
	nearbySiteLimit = 5

	// boardingMargin is the slack required between reaching a stop on foot
	// and the forecast departure.
	boardingMargin = 60 * time.Second

	// busCandidateLimit is how many bus candidates survive arrival
	// ordering into greenness scoring.
	busCandidateLimit = 5
)

// stopRef identifies a stop point during candidate assembly.
type stopRef struct {
	id     int64
	siteID int64
	name   string
}

// busLeg is one ride of a candidate itinerary.
type busLeg struct {
	boarding    transitfeed.Departure
	fromStop    stopRef
	toStop      stopRef
	departure   time.Time
	arrival     time.Time
	approximate bool
}

// candidate is a bus itinerary before segment assembly.
type candidate struct {
	originSite spatial.Site
	legs       []busLeg
	arrival    time.Time
}

// planContext carries the per-request lookup caches: stop point metadata
// and the (line, direction, stop) successor relation. Both are plain maps;
// a plan request touches them from one goroutine at a time.
type planContext struct {
	stopPoints map[int64]*spatial.StopPoint
	nextStops  map[nextKey]*spatial.NextStop
}

type nextKey struct {
	line int64
	dir  string
	stop int64
}

func newPlanContext() *planContext {
	return &planContext{
		stopPoints: map[int64]*spatial.StopPoint{},
		nextStops:  map[nextKey]*spatial.NextStop{},
	}
}

func (pc *planContext) stopPoint(ctx context.Context, store TransitStore, id int64) (*spatial.StopPoint, error) {
	if sp, ok := pc.stopPoints[id]; ok {
		return sp, nil
	}
	sp, err := store.StopPoint(ctx, id)
	if err != nil {
		return nil, err
	}
	pc.stopPoints[id] = sp
	return sp, nil
}

func (pc *planContext) nextStop(ctx context.Context, store TransitStore, lineID int64, dir string, stopID int64) (*spatial.NextStop, error) {
	key := nextKey{line: lineID, dir: dir, stop: stopID}
	if ns, ok := pc.nextStops[key]; ok {
		return ns, nil
	}
	ns, err := store.NextStop(ctx, lineID, dir, stopID)
	if err != nil {
		return nil, err
	}
	pc.nextStops[key] = ns
	return ns, nil
}

// transitCandidates discovers direct and one-transfer bus itineraries and
// assembles the best of them into route plans. Any upstream failure
// degrades to an empty list.
func (s *Service) transitCandidates(ctx context.Context, req Request) []*RoutePlan {
	pc := newPlanContext()

	radius := s.engine.MaxWalkingDistance()
	originSites, err := s.store.SitesWithinAndNearest(ctx, req.Origin, radius, nearbySiteNearest, nearbySiteLimit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("origin site lookup failed, skipping bus search")
		return nil
	}
	destSites, err := s.store.SitesWithinAndNearest(ctx, req.Destination, radius, nearbySiteNearest, nearbySiteLimit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("destination site lookup failed, skipping bus search")
		return nil
	}
	if len(originSites) == 0 || len(destSites) == 0 {
		return nil
	}

	siteIDs := make([]int64, 0, len(originSites)+len(destSites))
	inBatch := map[int64]bool{}
	for _, site := range originSites {
		if !inBatch[site.ID] {
			siteIDs = append(siteIDs, site.ID)
			inBatch[site.ID] = true
		}
	}
	for _, site := range destSites {
		if !inBatch[site.ID] {
			siteIDs = append(siteIDs, site.ID)
			inBatch[site.ID] = true
		}
	}

	batch, err := s.feed.GetBatchDepartures(ctx, siteIDs, transitfeed.MaxForecastSeconds)
	if err != nil {
		s.logger.Warn().Err(err).Msg("departure batch cancelled, skipping bus search")
		return nil
	}

	now := s.now()
	candidates := s.directCandidates(originSites, destSites, batch, now)
	candidates = append(candidates, s.transferCandidates(ctx, pc, originSites, destSites, batch, now)...)

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].arrival.Before(candidates[j].arrival)
	})
	if len(candidates) > busCandidateLimit {
		candidates = candidates[:busCandidateLimit]
	}

	var plans []*RoutePlan
	for i := range candidates {
		plan, err := s.assembleBusPlan(ctx, pc, req, &candidates[i], now)
		if err != nil {
			s.logger.Warn().Err(err).Msg("bus candidate assembly failed, dropping")
			continue
		}
		plans = append(plans, plan)
	}
	return plans
}

// originObservation is a journey seen departing from an origin site.
type originObservation struct {
	dep  transitfeed.Departure
	site spatial.Site
}

// directCandidates correlates journey ids between origin- and
// destination-site departures. A journey traverses a fixed (line,
// direction) path, so the same journey id at both endpoints with matching
// line and direction implies a seat-through itinerary.
func (s *Service) directCandidates(originSites, destSites []spatial.Site, batch map[int64][]transitfeed.Departure, now time.Time) []candidate {
	originJourneys := map[int64]originObservation{}
	for _, site := range originSites {
		for _, dep := range batch[site.ID] {
			if obs, seen := originJourneys[dep.JourneyID]; seen && !dep.Expected.Before(obs.dep.Expected) {
				continue
			}
			originJourneys[dep.JourneyID] = originObservation{dep: dep, site: site}
		}
	}

	originSiteIDs := map[int64]bool{}
	for _, site := range originSites {
		originSiteIDs[site.ID] = true
	}

	var candidates []candidate
	for _, site := range destSites {
		if originSiteIDs[site.ID] {
			continue
		}
		for _, arr := range batch[site.ID] {
			obs, ok := originJourneys[arr.JourneyID]
			if !ok || obs.dep.LineID != arr.LineID || obs.dep.DirectionCode != arr.DirectionCode {
				continue
			}
			if !s.boardingFeasible(obs.site, obs.dep, now) {
				continue
			}
			ride := arr.Expected.Sub(obs.dep.Expected)
			if ride <= 0 || ride > s.engine.BusSearchMaxDuration {
				continue
			}

			candidates = append(candidates, candidate{
				originSite: obs.site,
				arrival:    arr.Expected,
				legs: []busLeg{{
					boarding:  obs.dep,
					fromStop:  stopRef{id: obs.dep.StopPointID, siteID: obs.site.ID, name: obs.dep.StopPointName},
					toStop:    stopRef{id: arr.StopPointID, siteID: site.ID, name: arr.StopPointName},
					departure: obs.dep.Expected,
					arrival:   arr.Expected,
				}},
			})
		}
	}
	return candidates
}

// boardingFeasible checks the walk to the departure site fits before the
// forecast departure, with the boarding margin.
func (s *Service) boardingFeasible(site spatial.Site, dep transitfeed.Departure, now time.Time) bool {
	walk := time.Duration(site.WalkingDistance / s.engine.WalkingSpeed * float64(time.Second))
	return now.Add(walk+boardingMargin).Before(dep.Expected) || now.Add(walk+boardingMargin).Equal(dep.Expected)
}

// assembleBusPlan builds the full segment list of one bus candidate:
// walk to the first stop, waits and rides (with an intra-site transfer walk
// when the connection changes platforms), and the final walk.
func (s *Service) assembleBusPlan(ctx context.Context, pc *planContext, req Request, c *candidate, now time.Time) (*RoutePlan, error) {
	routeType := RouteDirectBus
	if len(c.legs) == 2 {
		routeType = RouteTransferBus
	}

	plan := &RoutePlan{
		ID:          "route_" + uuid.New().String()[:12],
		Type:        routeType,
		Origin:      req.Origin,
		Destination: req.Destination,
		Month:       req.Month,
	}

	firstStop, err := pc.stopPoint(ctx, s.store, c.legs[0].fromStop.id)
	if err != nil {
		return nil, err
	}
	lastStop, err := pc.stopPoint(ctx, s.store, c.legs[len(c.legs)-1].toStop.id)
	if err != nil {
		return nil, err
	}

	walkIn, err := s.solveWalk(ctx, req, req.Origin, firstStop.Position)
	if err != nil {
		return nil, err
	}
	plan.Segments = append(plan.Segments, *walkIn)

	cursor := now.Add(walkIn.Duration)
	var dgvi float64

	for i := range c.legs {
		leg := &c.legs[i]

		boardStop, err := pc.stopPoint(ctx, s.store, leg.fromStop.id)
		if err != nil {
			return nil, err
		}
		alightStop, err := pc.stopPoint(ctx, s.store, leg.toStop.id)
		if err != nil {
			return nil, err
		}

		line := LineInfo{
			ID:            leg.boarding.LineID,
			Designation:   leg.boarding.LineDesignation,
			DirectionCode: leg.boarding.DirectionCode,
			Destination:   leg.boarding.Destination,
		}

		// Connection from the previous leg: platform change plus wait.
		if i > 0 {
			prev := &c.legs[i-1]
			cursor = prev.arrival
			if prev.toStop.id != leg.fromStop.id {
				intraWalk := s.intraSiteWalk(ctx, pc, prev.toStop, leg.fromStop)
				plan.Segments = append(plan.Segments, *intraWalk)
				cursor = cursor.Add(intraWalk.Duration)
			}
		}

		wait := leg.departure.Sub(cursor)
		if wait < 0 {
			wait = 0
		}

		waiting := Segment{
			Type:     SegmentBusWaiting,
			Duration: wait,
			Waiting: &WaitingSegment{
				StopPointID:       boardStop.ID,
				SiteID:            boardStop.SiteID,
				StopName:          boardStop.Name,
				StopPosition:      boardStop.Position,
				Line:              line,
				ExpectedDeparture: leg.departure,
			},
		}
		if i > 0 {
			prev := &c.legs[i-1]
			waiting.Waiting.Transfer = &TransferInfo{
				WaitingTime: wait,
				FromLine: LineInfo{
					ID:            prev.boarding.LineID,
					Designation:   prev.boarding.LineDesignation,
					DirectionCode: prev.boarding.DirectionCode,
				},
				ToLine:        line,
				IntraSiteWalk: prev.toStop.id != leg.fromStop.id,
				Margin:        leg.departure.Sub(prev.arrival),
			}
		}
		plan.Segments = append(plan.Segments, waiting)

		w, err := s.greenness.WaitingDGVI(ctx, boardStop.Position, req.Month)
		if err != nil {
			s.logger.Warn().Err(err).Int64("stop_point_id", boardStop.ID).Msg("waiting greenness failed, contributing 0")
		} else {
			dgvi += w
		}

		plan.Segments = append(plan.Segments, Segment{
			Type:     SegmentBusRide,
			Duration: leg.arrival.Sub(leg.departure),
			Ride: &RideSegment{
				FromStopPointID:   boardStop.ID,
				FromStopName:      boardStop.Name,
				FromStopPosition:  boardStop.Position,
				ToStopPointID:     alightStop.ID,
				ToStopName:        alightStop.Name,
				ToStopPosition:    alightStop.Position,
				Line:              line,
				ExpectedDeparture: leg.departure,
				ExpectedArrival:   leg.arrival,
				Approximate:       leg.approximate,
			},
		})
		cursor = leg.arrival
	}

	walkOut, err := s.solveWalk(ctx, req, lastStop.Position, req.Destination)
	if err != nil {
		return nil, err
	}
	plan.Segments = append(plan.Segments, *walkOut)

	var total time.Duration
	for _, seg := range plan.Segments {
		total += seg.Duration
	}
	plan.TotalDuration = total
	plan.TotalAcDGVI = dgvi

	return plan, nil
}

// solveWalk builds a walking segment between two points under the user's
// preference weights.
func (s *Service) solveWalk(ctx context.Context, req Request, from, to geometry.Coordinate) (*Segment, error) {
	fromVertex, err := s.solver.NearestVertex(ctx, from)
	if err != nil {
		return nil, err
	}
	toVertex, err := s.solver.NearestVertex(ctx, to)
	if err != nil {
		return nil, err
	}

	path, err := s.solver.ShortestEdgePath(ctx, fromVertex, toVertex, req.Month, pathfinder.Combined(req.Preferences.Time, req.Preferences.Green))
	if err != nil {
		return nil, err
	}

	return &Segment{
		Type:     SegmentWalking,
		Duration: time.Duration(path.Distance / s.engine.WalkingSpeed * float64(time.Second)),
		Walking: &WalkingSegment{
			Distance: path.Distance,
			EdgeIDs:  path.EdgeIDs,
			Geometry: path.Geometry,
		},
	}, nil
}

// intraSiteWalk builds the platform-change walking segment of a transfer.
// The distance is the straight line between the two stop points.
func (s *Service) intraSiteWalk(ctx context.Context, pc *planContext, from, to stopRef) *Segment {
	distance := 0.0
	var line geometry.Line

	fromStop, errFrom := pc.stopPoint(ctx, s.store, from.id)
	toStop, errTo := pc.stopPoint(ctx, s.store, to.id)
	if errFrom == nil && errTo == nil {
		distance = geometry.Haversine(fromStop.Position, toStop.Position)
		line = geometry.Line{fromStop.Position, toStop.Position}
	}

	return &Segment{
		Type:     SegmentWalking,
		Duration: time.Duration(distance / s.engine.WalkingSpeed * float64(time.Second)),
		Walking: &WalkingSegment{
			Distance: distance,
			EdgeIDs:  []int64{},
			Geometry: line,
			IntraSiteTransfer: &IntraSiteTransfer{
				FromStopPointID: from.id,
				ToStopPointID:   to.id,
				SiteID:          to.siteID,
			},
		},
	}
}
