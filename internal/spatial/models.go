// Package spatial provides read access to the geospatial graph: the road
// network with per-month greenness weights, and the static transit tables
// (sites, stop points, and stop-sequence edges per line and direction).
package spatial

import (
	"errors"

	"github.com/greenroute/greenroute/pkg/geometry"
)

// Sentinel errors for spatial lookups.
var (
	// ErrNoVertex is returned when no graph vertex can be resolved for a point.
	ErrNoVertex = errors.New("no graph vertex near point")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("spatial entity not found")
)

// GraphEdge is a road edge as loaded for shortest-path computation.
// DGVINorm is the per-month normalized greenness of the edge, already
// coalesced to 0 when no greenness row exists for the month.
type GraphEdge struct {
	ID         int64
	Source     int64
	Target     int64
	Length     float64
	LengthNorm float64
	DGVINorm   float64
	Geometry   geometry.Line
}

// Site is a user-facing bus stop aggregate (e.g. "Odenplan").
// WalkingDistance is the straight-line distance in meters from the query
// point; it is populated by nearby-site lookups and zero otherwise.
type Site struct {
	ID              int64
	Name            string
	Position        geometry.Coordinate
	WalkingDistance float64
}

// StopPoint is a specific platform within a site, with a direction code.
type StopPoint struct {
	ID            int64
	SiteID        int64
	Name          string
	Position      geometry.Coordinate
	DirectionCode string
}

// NextStop is the successor of a stop point on one (line, direction).
type NextStop struct {
	StopPointID int64
	SiteID      int64
	Name        string
}

// Stop is an entry of a forward walk along a line's stop sequence.
type Stop struct {
	StopPointID   int64
	SiteID        int64
	Name          string
	SequenceOrder int
}

// BoundingBox is a geographic extent used to scope graph loads.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// NewBoundingBox returns the bounding box of the given coordinates expanded
// by marginMeters on every side.
func NewBoundingBox(points []geometry.Coordinate, marginMeters float64) BoundingBox {
	box := BoundingBox{MinLat: 90, MinLon: 180, MaxLat: -90, MaxLon: -180}
	for _, p := range points {
		if p.Lat < box.MinLat {
			box.MinLat = p.Lat
		}
		if p.Lat > box.MaxLat {
			box.MaxLat = p.Lat
		}
		if p.Lon < box.MinLon {
			box.MinLon = p.Lon
		}
		if p.Lon > box.MaxLon {
			box.MaxLon = p.Lon
		}
	}

	// ~111km per degree latitude; longitude degrees shrink with latitude,
	// so the longitude margin is that latitude margin widened by a fixed
	// factor of 1.5.
	margin := marginMeters / 111000
	box.MinLat -= margin
	box.MaxLat += margin
	box.MinLon -= margin * 1.5
	box.MaxLon += margin * 1.5
	return box
}
