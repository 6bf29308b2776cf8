// Package gvi manages the green-view point layer and the per-month
// distance-adjusted greenness (DGVI) table derived from it.
package gvi

import (
	"errors"
	"regexp"
	"time"

	"github.com/greenroute/greenroute/pkg/geometry"
)

// Sentinel errors.
var (
	// ErrNoDataForMonth is returned when a month has no greenness data.
	ErrNoDataForMonth = errors.New("no greenness data for month")

	// ErrInvalidMonth is returned for a malformed month tag.
	ErrInvalidMonth = errors.New("month must be formatted YYYY-MM")

	// ErrTooManyPoints is returned when a point batch exceeds the limit.
	ErrTooManyPoints = errors.New("too many points in one request")
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidateMonth checks a "YYYY-MM" month tag.
func ValidateMonth(month string) error {
	if !monthPattern.MatchString(month) {
		return ErrInvalidMonth
	}
	return nil
}

// Point is a green-view sample: a geographic point with a per-month
// greenness value in roughly [0, 1].
type Point struct {
	ID       int64
	Position geometry.Coordinate
	Month    string
	Value    float64
}

// Sample is a GVI point matched against a road edge: the projection
// parameter along the edge polyline in [0, 1] and the greenness value.
type Sample struct {
	Parameter float64
	Value     float64
}

// RoadDGVI is the stored greenness accumulation for one (road, month).
type RoadDGVI struct {
	RoadID     int64
	Month      string
	DGVI       float64
	Normalized float64
	UpdatedAt  time.Time
}

// MonthStats summarizes the DGVI table for one month.
type MonthStats struct {
	Month         string  `json:"month"`
	RoadCount     int     `json:"road_count"`
	MinDGVI       float64 `json:"min_dgvi"`
	MaxDGVI       float64 `json:"max_dgvi"`
	MeanDGVI      float64 `json:"mean_dgvi"`
	MinNormalized float64 `json:"min_normalized"`
	MaxNormalized float64 `json:"max_normalized"`
}
