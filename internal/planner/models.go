// Package planner orchestrates multi-modal journey planning: walking
// candidates over the greenness-weighted road graph, direct and
// one-transfer bus itineraries correlated from live departure forecasts,
// and the scoring that trades travel time against greenness exposure.
package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// Planner errors.
var (
	// ErrInvalidInput covers bad coordinates, non-normalized weights, and
	// malformed months.
	ErrInvalidInput = errors.New("invalid planning input")
)

// RouteType classifies a route plan.
type RouteType string

// Route types.
const (
	RouteWalking     RouteType = "walking"
	RouteDirectBus   RouteType = "direct_bus"
	RouteTransferBus RouteType = "transfer_bus"
)

// SegmentType tags the segment variant.
type SegmentType string

// Segment types.
const (
	SegmentWalking    SegmentType = "walking"
	SegmentBusWaiting SegmentType = "bus_waiting"
	SegmentBusRide    SegmentType = "bus_ride"
)

// Preferences is the caller's preference vector: non-negative weights for
// travel time and greenness, summing to 1.
type Preferences struct {
	Time  float64 `json:"time"`
	Green float64 `json:"green"`
}

// Validate checks the preference vector.
func (p Preferences) Validate() error {
	if p.Time < 0 || p.Green < 0 {
		return fmt.Errorf("%w: preference weights must be non-negative", ErrInvalidInput)
	}
	sum := p.Time + p.Green
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("%w: preference weights must sum to 1, got %.3f", ErrInvalidInput, sum)
	}
	return nil
}

// LineInfo identifies a bus line on one direction.
type LineInfo struct {
	ID            int64  `json:"id"`
	Designation   string `json:"designation"`
	DirectionCode string `json:"direction_code"`
	Destination   string `json:"destination,omitempty"`
}

// IntraSiteTransfer marks a walking segment that connects two stop points
// within one site during a transfer.
type IntraSiteTransfer struct {
	FromStopPointID int64 `json:"from_stop_point_id"`
	ToStopPointID   int64 `json:"to_stop_point_id"`
	SiteID          int64 `json:"site_id"`
}

// WalkingSegment is a walk over road edges.
type WalkingSegment struct {
	Distance          float64
	EdgeIDs           []int64
	Geometry          geometry.Line
	IntraSiteTransfer *IntraSiteTransfer
}

// TransferInfo annotates the waiting segment of a connection.
type TransferInfo struct {
	WaitingTime   time.Duration
	FromLine      LineInfo
	ToLine        LineInfo
	IntraSiteWalk bool
	Margin        time.Duration
}

// WaitingSegment is a wait at a stop point before boarding.
type WaitingSegment struct {
	StopPointID       int64
	SiteID            int64
	StopName          string
	StopPosition      geometry.Coordinate
	Line              LineInfo
	ExpectedDeparture time.Time
	Transfer          *TransferInfo
}

// RideSegment is a bus ride between two stop points. Geometry and edge ids
// are reconstructed for visualization only and never feed the route's
// greenness total.
type RideSegment struct {
	FromStopPointID  int64
	FromStopName     string
	FromStopPosition geometry.Coordinate
	ToStopPointID    int64
	ToStopName       string
	ToStopPosition   geometry.Coordinate

	Line              LineInfo
	ExpectedDeparture time.Time
	ExpectedArrival   time.Time
	Geometry          geometry.Line
	EdgeIDs           []int64
	IntermediateStops []spatial.Stop

	// Approximate is set when the arrival is estimated from the stop
	// sequence rather than observed in the feed.
	Approximate bool
}

// Segment is the tagged variant: exactly one of Walking, Waiting, Ride is
// non-nil, matching Type.
type Segment struct {
	Type     SegmentType
	Duration time.Duration
	Walking  *WalkingSegment
	Waiting  *WaitingSegment
	Ride     *RideSegment
}

// RoutePlan is one planned journey with its segments and scores.
type RoutePlan struct {
	ID          string
	Type        RouteType
	Origin      geometry.Coordinate
	Destination geometry.Coordinate
	Segments    []Segment

	// TotalDuration is the sum of segment durations.
	TotalDuration time.Duration

	// TotalAcDGVI is the accumulated greenness of the route.
	TotalAcDGVI float64

	// Scores are filled by the scoring stage; all in [0, 1], larger is
	// better.
	DurationScore float64
	AcDGVIScore   float64
	TotalScore    float64

	// Month is the greenness data month the plan was evaluated against.
	Month string
}

// RideSegments returns the bus_ride segments in order.
func (r *RoutePlan) RideSegments() []*Segment {
	var rides []*Segment
	for i := range r.Segments {
		if r.Segments[i].Type == SegmentBusRide {
			rides = append(rides, &r.Segments[i])
		}
	}
	return rides
}

// WalkingFingerprint returns the sorted concatenation of the route's
// walking edge ids, used to deduplicate walking candidates.
func (r *RoutePlan) WalkingFingerprint() string {
	var ids []int64
	for _, s := range r.Segments {
		if s.Type == SegmentWalking && s.Walking != nil {
			ids = append(ids, s.Walking.EdgeIDs...)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// Validate checks the segment-sequence invariants: a bus_waiting segment is
// immediately followed by a bus_ride starting at the same stop point on a
// consistent line and direction; two consecutive walking segments are only
// permitted when one is an intra-site transfer; a transfer_bus route has
// exactly two rides; segment durations sum to the total.
func (r *RoutePlan) Validate() error {
	rides := 0
	for i, s := range r.Segments {
		switch s.Type {
		case SegmentWalking:
			if s.Walking == nil {
				return fmt.Errorf("segment %d: walking payload missing", i)
			}
			if i > 0 && r.Segments[i-1].Type == SegmentWalking {
				prev := r.Segments[i-1].Walking
				if prev.IntraSiteTransfer == nil && s.Walking.IntraSiteTransfer == nil {
					return fmt.Errorf("segment %d: consecutive walking segments without intra-site transfer", i)
				}
			}
		case SegmentBusWaiting:
			if s.Waiting == nil {
				return fmt.Errorf("segment %d: waiting payload missing", i)
			}
			if i+1 >= len(r.Segments) || r.Segments[i+1].Type != SegmentBusRide || r.Segments[i+1].Ride == nil {
				return fmt.Errorf("segment %d: bus_waiting not followed by bus_ride", i)
			}
			ride := r.Segments[i+1].Ride
			if ride.FromStopPointID != s.Waiting.StopPointID {
				return fmt.Errorf("segment %d: ride starts at stop %d, waited at %d", i+1, ride.FromStopPointID, s.Waiting.StopPointID)
			}
			if ride.Line.ID != s.Waiting.Line.ID || ride.Line.DirectionCode != s.Waiting.Line.DirectionCode {
				return fmt.Errorf("segment %d: ride line differs from waited line", i+1)
			}
		case SegmentBusRide:
			if s.Ride == nil {
				return fmt.Errorf("segment %d: ride payload missing", i)
			}
			rides++
		default:
			return fmt.Errorf("segment %d: unknown type %q", i, s.Type)
		}
	}

	if r.Type == RouteTransferBus && rides != 2 {
		return fmt.Errorf("transfer route has %d rides, want 2", rides)
	}

	var sum time.Duration
	for _, s := range r.Segments {
		sum += s.Duration
	}
	diff := sum - r.TotalDuration
	if diff < 0 {
		diff = -diff
	}
	if diff > time.Second {
		return fmt.Errorf("segment durations sum to %s, total is %s", sum, r.TotalDuration)
	}

	return nil
}

// validateCoordinate checks a coordinate is within valid WGS84 ranges.
func validateCoordinate(c geometry.Coordinate, field string) error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: %s latitude %f out of range [-90, 90]", ErrInvalidInput, field, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: %s longitude %f out of range [-180, 180]", ErrInvalidInput, field, c.Lon)
	}
	return nil
}
