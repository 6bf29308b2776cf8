package models

import (
	"fmt"
	"math"
	"time"

	"github.com/greenroute/greenroute/internal/planner"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// Point is a geographic point in API requests and responses.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PlanRoutesRequest is the body of POST /v1/plan-routes.
type PlanRoutesRequest struct {
	Origin      *Point               `json:"origin"`
	Destination *Point               `json:"destination"`
	GVIMonth    string               `json:"gvi_month,omitempty"`
	Preferences *planner.Preferences `json:"preferences,omitempty"`
	MaxResults  int                  `json:"max_results,omitempty"`
}

// PlanRoutesResponse echoes the request and carries the planned routes.
type PlanRoutesResponse struct {
	Request PlanRoutesRequest `json:"request"`
	Results PlanResults       `json:"results"`
}

// PlanResults is the result envelope.
type PlanResults struct {
	TotalRoutes int         `json:"total_routes"`
	Routes      []RoutePlan `json:"routes"`
}

// RoutePlan is the API representation of a planned route.
type RoutePlan struct {
	RouteID         string                     `json:"route_id"`
	RouteType       string                     `json:"route_type"`
	TotalDuration   int                        `json:"total_duration"`
	DurationScore   float64                    `json:"duration_score"`
	AcDGVIScore     float64                    `json:"acdgvi_score"`
	TotalAcDGVI     float64                    `json:"total_acdgvi"`
	TotalScore      float64                    `json:"total_score"`
	GVIDataMonth    string                     `json:"gvi_data_month"`
	Summary         string                     `json:"summary"`
	Instructions    []string                   `json:"instructions"`
	TimingDetails   []TimingDetail             `json:"timing_details"`
	TransferSummary *TransferSummary           `json:"transfer_summary"`
	GeoJSON         geometry.FeatureCollection `json:"geojson"`
	Segments        []Segment                  `json:"segments"`
}

// TimingDetail describes one segment's timing.
type TimingDetail struct {
	Step            string `json:"step"`
	DurationSeconds int    `json:"duration_seconds"`
	Expected        string `json:"expected,omitempty"`
}

// TransferSummary describes the connection of a transfer route.
type TransferSummary struct {
	TransferSite  string `json:"transfer_site"`
	WaitSeconds   int    `json:"wait_seconds"`
	FromLine      string `json:"from_line"`
	ToLine        string `json:"to_line"`
	IntraSiteWalk bool   `json:"intra_site_walk"`
	Approximate   bool   `json:"approximate"`
}

// Segment is the API representation of one route segment.
type Segment struct {
	Type            string  `json:"type"`
	DurationSeconds int     `json:"duration_seconds"`
	DistanceMeters  *int    `json:"distance_meters,omitempty"`
	EdgeIDs         []int64 `json:"edge_ids,omitempty"`

	StopPointID       *int64   `json:"stop_point_id,omitempty"`
	StopName          string   `json:"stop_name,omitempty"`
	SiteID            *int64   `json:"site_id,omitempty"`
	Line              string   `json:"line,omitempty"`
	Destination       string   `json:"destination,omitempty"`
	ExpectedDeparture string   `json:"expected_departure,omitempty"`
	ExpectedArrival   string   `json:"expected_arrival,omitempty"`
	FromStop          string   `json:"from_stop,omitempty"`
	ToStop            string   `json:"to_stop,omitempty"`
	IntraSiteTransfer bool     `json:"intra_site_transfer,omitempty"`
	Approximate       bool     `json:"approximate,omitempty"`
	IntermediateStops []string `json:"intermediate_stops,omitempty"`
}

// FromRoutePlan converts a planner route to its API representation.
func FromRoutePlan(p *planner.RoutePlan) RoutePlan {
	out := RoutePlan{
		RouteID:       p.ID,
		RouteType:     string(p.Type),
		TotalDuration: int(math.Round(p.TotalDuration.Seconds())),
		DurationScore: round3(p.DurationScore),
		AcDGVIScore:   round3(p.AcDGVIScore),
		TotalAcDGVI:   round3(p.TotalAcDGVI),
		TotalScore:    round3(p.TotalScore),
		GVIDataMonth:  p.Month,
		GeoJSON:       *geometry.NewFeatureCollection(),
		Instructions:  []string{},
		TimingDetails: []TimingDetail{},
		Segments:      []Segment{},
	}

	for i := range p.Segments {
		seg := &p.Segments[i]
		apiSeg := Segment{
			Type:            string(seg.Type),
			DurationSeconds: int(math.Round(seg.Duration.Seconds())),
		}

		switch seg.Type {
		case planner.SegmentWalking:
			w := seg.Walking
			dist := int(math.Round(w.Distance))
			apiSeg.DistanceMeters = &dist
			apiSeg.EdgeIDs = w.EdgeIDs
			apiSeg.IntraSiteTransfer = w.IntraSiteTransfer != nil
			if len(w.Geometry) > 0 {
				out.GeoJSON.AddLineString(w.Geometry, map[string]interface{}{
					"segment": "walking", "index": i,
				})
			}
			out.Instructions = append(out.Instructions, walkInstruction(w, seg.Duration))
			out.TimingDetails = append(out.TimingDetails, TimingDetail{
				Step:            "walk",
				DurationSeconds: apiSeg.DurationSeconds,
			})

		case planner.SegmentBusWaiting:
			wt := seg.Waiting
			apiSeg.StopPointID = &wt.StopPointID
			apiSeg.SiteID = &wt.SiteID
			apiSeg.StopName = wt.StopName
			apiSeg.Line = wt.Line.Designation
			apiSeg.Destination = wt.Line.Destination
			apiSeg.ExpectedDeparture = wt.ExpectedDeparture.Format(time.RFC3339)
			out.GeoJSON.AddPoint(wt.StopPosition, map[string]interface{}{
				"segment": "bus_waiting", "stop": wt.StopName, "index": i,
			})
			out.Instructions = append(out.Instructions, fmt.Sprintf(
				"Wait at %s for bus %s toward %s (departs %s)",
				wt.StopName, wt.Line.Designation, wt.Line.Destination,
				wt.ExpectedDeparture.Format("15:04"),
			))
			out.TimingDetails = append(out.TimingDetails, TimingDetail{
				Step:            "wait",
				DurationSeconds: apiSeg.DurationSeconds,
				Expected:        wt.ExpectedDeparture.Format(time.RFC3339),
			})
			if wt.Transfer != nil {
				out.TransferSummary = &TransferSummary{
					TransferSite:  wt.StopName,
					WaitSeconds:   int(math.Round(wt.Transfer.WaitingTime.Seconds())),
					FromLine:      wt.Transfer.FromLine.Designation,
					ToLine:        wt.Transfer.ToLine.Designation,
					IntraSiteWalk: wt.Transfer.IntraSiteWalk,
					Approximate:   true,
				}
			}

		case planner.SegmentBusRide:
			rd := seg.Ride
			apiSeg.Line = rd.Line.Designation
			apiSeg.Destination = rd.Line.Destination
			apiSeg.FromStop = rd.FromStopName
			apiSeg.ToStop = rd.ToStopName
			apiSeg.ExpectedDeparture = rd.ExpectedDeparture.Format(time.RFC3339)
			apiSeg.ExpectedArrival = rd.ExpectedArrival.Format(time.RFC3339)
			apiSeg.EdgeIDs = rd.EdgeIDs
			apiSeg.Approximate = rd.Approximate
			for _, stop := range rd.IntermediateStops {
				apiSeg.IntermediateStops = append(apiSeg.IntermediateStops, stop.Name)
			}
			if len(rd.Geometry) > 0 {
				out.GeoJSON.AddLineString(rd.Geometry, map[string]interface{}{
					"segment": "bus_ride", "line": rd.Line.Designation, "index": i,
				})
			}
			out.Instructions = append(out.Instructions, fmt.Sprintf(
				"Ride bus %s from %s to %s",
				rd.Line.Designation, rd.FromStopName, rd.ToStopName,
			))
			out.TimingDetails = append(out.TimingDetails, TimingDetail{
				Step:            "ride",
				DurationSeconds: apiSeg.DurationSeconds,
				Expected:        rd.ExpectedArrival.Format(time.RFC3339),
			})
		}

		out.Segments = append(out.Segments, apiSeg)
	}

	out.Summary = summarize(p)
	return out
}

func walkInstruction(w *planner.WalkingSegment, d time.Duration) string {
	if w.IntraSiteTransfer != nil {
		return fmt.Sprintf("Walk to the connecting platform (%.0f m)", w.Distance)
	}
	return fmt.Sprintf("Walk %.0f m (%d min)", w.Distance, int(math.Round(d.Minutes())))
}

func summarize(p *planner.RoutePlan) string {
	minutes := int(math.Round(p.TotalDuration.Minutes()))
	switch p.Type {
	case planner.RouteWalking:
		return fmt.Sprintf("Walking route, %d min", minutes)
	case planner.RouteDirectBus:
		for _, seg := range p.Segments {
			if seg.Type == planner.SegmentBusRide {
				return fmt.Sprintf("Bus %s direct, %d min", seg.Ride.Line.Designation, minutes)
			}
		}
	case planner.RouteTransferBus:
		rides := p.RideSegments()
		if len(rides) == 2 {
			return fmt.Sprintf("Bus %s then %s with one transfer, %d min",
				rides[0].Ride.Line.Designation, rides[1].Ride.Line.Designation, minutes)
		}
	}
	return fmt.Sprintf("Route, %d min", minutes)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
