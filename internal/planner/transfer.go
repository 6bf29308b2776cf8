package planner

import (
	"context"
	"time"

	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/internal/transitfeed"
)

const (
	// maxEmissionsPerAgent bounds the itineraries one query agent yields.
	maxEmissionsPerAgent = 2

	// maxTransferEmissions bounds the transfer itineraries per request.
	maxTransferEmissions = 20
)

// queryAgent is a virtual passenger who boarded one of the origin
// departures; the transfer search forward-simulates its position along the
// line's stop sequence.
type queryAgent struct {
	boarding   transitfeed.Departure
	originSite spatial.Site
	emitted    int
}

// transferCandidates discovers one-transfer itineraries. Each agent rides
// its journey forward hop by hop; at every reached site the cached
// departure batch is scanned for connections whose onward stop sequence
// reaches a destination site. The feed cannot be queried beyond its
// forecast window, so inter-stop travel is estimated with a fixed average.
func (s *Service) transferCandidates(ctx context.Context, pc *planContext, originSites, destSites []spatial.Site, batch map[int64][]transitfeed.Departure, now time.Time) []candidate {
	destSiteIDs := make([]int64, 0, len(destSites))
	for _, site := range destSites {
		destSiteIDs = append(destSiteIDs, site.ID)
	}

	// Departure batches for transfer sites, seeded with the endpoint batch.
	transferBatches := make(map[int64][]transitfeed.Departure, len(batch))
	for siteID, deps := range batch {
		transferBatches[siteID] = deps
	}

	var agents []queryAgent
	for _, site := range originSites {
		for _, dep := range batch[site.ID] {
			if !s.boardingFeasible(site, dep, now) {
				continue
			}
			agents = append(agents, queryAgent{boarding: dep, originSite: site})
		}
	}

	var candidates []candidate
	total := 0

	for a := range agents {
		if total >= maxTransferEmissions {
			break
		}
		agent := &agents[a]

		cur := agent.boarding.StopPointID
		eta := agent.boarding.Expected

		for hop := 0; hop < s.engine.TransferSearchDepth; hop++ {
			if agent.emitted >= maxEmissionsPerAgent || total >= maxTransferEmissions {
				break
			}
			if ctx.Err() != nil {
				return candidates
			}

			next, err := pc.nextStop(ctx, s.store, agent.boarding.LineID, agent.boarding.DirectionCode, cur)
			if err != nil {
				s.logger.Warn().Err(err).Int64("stop_point_id", cur).Msg("next-stop lookup failed, ending agent walk")
				break
			}
			if next == nil {
				break
			}

			eta = eta.Add(s.engine.TransferInterStopAvg)
			cur = next.StopPointID

			deps, err := s.transferSiteDepartures(ctx, transferBatches, next.SiteID)
			if err != nil {
				return candidates
			}

			transferStop := stopRef{id: next.StopPointID, siteID: next.SiteID, name: next.Name}
			emitted := s.scanConnections(ctx, pc, agent, transferStop, eta, deps, destSiteIDs, &candidates, &total)
			agent.emitted += emitted
		}
	}

	return candidates
}

// transferSiteDepartures returns the cached departure batch for a site,
// fetching it once per request when absent.
func (s *Service) transferSiteDepartures(ctx context.Context, cache map[int64][]transitfeed.Departure, siteID int64) ([]transitfeed.Departure, error) {
	if deps, ok := cache[siteID]; ok {
		return deps, nil
	}

	fetched, err := s.feed.GetBatchDepartures(ctx, []int64{siteID}, transitfeed.MaxForecastSeconds)
	if err != nil {
		return nil, err
	}
	cache[siteID] = fetched[siteID]
	return fetched[siteID], nil
}

// scanConnections scans one site's departures for feasible connections
// whose onward stop sequence reaches a destination site, and emits
// transfer candidates. Consecutive duplicates on the same (stop point,
// direction) within the scan are suppressed.
func (s *Service) scanConnections(ctx context.Context, pc *planContext, agent *queryAgent, transferStop stopRef, arrival time.Time, deps []transitfeed.Departure, destSiteIDs []int64, candidates *[]candidate, total *int) int {
	emitted := 0
	var lastStop int64
	var lastDir string

	for _, conn := range deps {
		if agent.emitted+emitted >= maxEmissionsPerAgent || *total >= maxTransferEmissions {
			break
		}

		if conn.StopPointID == lastStop && conn.DirectionCode == lastDir {
			continue
		}
		lastStop, lastDir = conn.StopPointID, conn.DirectionCode

		if conn.JourneyID == agent.boarding.JourneyID {
			continue
		}
		if conn.LineID == agent.boarding.LineID && conn.DirectionCode == agent.boarding.DirectionCode {
			continue
		}
		if conn.Expected.Before(arrival.Add(s.engine.TransferMargin)) {
			continue
		}

		reached, err := s.store.ReachableSitesFrom(ctx, conn.LineID, conn.DirectionCode, conn.StopPointID, destSiteIDs, s.engine.DestinationSearchDepth)
		if err != nil {
			s.logger.Warn().Err(err).Int64("line_id", conn.LineID).Msg("reachability check failed, skipping connection")
			continue
		}
		if len(reached) == 0 {
			continue
		}

		finalStop, hops, ok := s.forwardWalkToSite(ctx, pc, conn.LineID, conn.DirectionCode, conn.StopPointID, reached[0])
		if !ok {
			continue
		}

		secondArrival := conn.Expected.Add(time.Duration(hops) * s.engine.TransferInterStopAvg)
		totalRide := secondArrival.Sub(agent.boarding.Expected)
		if totalRide <= 0 || totalRide > s.engine.BusSearchMaxDuration {
			continue
		}

		*candidates = append(*candidates, candidate{
			originSite: agent.originSite,
			arrival:    secondArrival,
			legs: []busLeg{
				{
					boarding:    agent.boarding,
					fromStop:    stopRef{id: agent.boarding.StopPointID, siteID: agent.originSite.ID, name: agent.boarding.StopPointName},
					toStop:      transferStop,
					departure:   agent.boarding.Expected,
					arrival:     arrival,
					approximate: true,
				},
				{
					boarding:    conn,
					fromStop:    stopRef{id: conn.StopPointID, siteID: transferStop.siteID, name: conn.StopPointName},
					toStop:      finalStop,
					departure:   conn.Expected,
					arrival:     secondArrival,
					approximate: true,
				},
			},
		})
		emitted++
		*total++
	}

	return emitted
}

// forwardWalkToSite walks the stop sequence forward until it reaches the
// target site, returning the reached stop and the hop count. The walk is
// bounded by the destination search depth.
func (s *Service) forwardWalkToSite(ctx context.Context, pc *planContext, lineID int64, dir string, fromStop int64, targetSite int64) (stopRef, int, bool) {
	cur := fromStop
	for hop := 1; hop <= s.engine.DestinationSearchDepth; hop++ {
		next, err := pc.nextStop(ctx, s.store, lineID, dir, cur)
		if err != nil || next == nil {
			return stopRef{}, 0, false
		}
		cur = next.StopPointID
		if next.SiteID == targetSite {
			return stopRef{id: next.StopPointID, siteID: next.SiteID, name: next.Name}, hop, true
		}
	}
	return stopRef{}, 0, false
}
