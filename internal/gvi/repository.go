package gvi

import "context"

// Repository defines persistence for GVI points and per-month DGVI rows.
type Repository interface {
	// MatchedSamples returns the GVI points of the month within a one-meter
	// buffer of the edge geometry, projected onto the edge polyline.
	// Samples are ordered by parameter.
	MatchedSamples(ctx context.Context, edgeID int64, month string) ([]Sample, error)

	// AvailableMonths returns the months with DGVI rows, newest first.
	AvailableMonths(ctx context.Context) ([]string, error)

	// MonthStats returns DGVI statistics for one month, or ErrNoDataForMonth.
	MonthStats(ctx context.Context, month string) (*MonthStats, error)

	// PointsForMonth lists GVI points of a month, bounded by limit.
	PointsForMonth(ctx context.Context, month string, limit int) ([]Point, error)

	// InsertPoints persists newly computed GVI points.
	InsertPoints(ctx context.Context, points []Point) error

	// UpsertRoadDGVI writes the raw DGVI for one (road, month).
	UpsertRoadDGVI(ctx context.Context, roadID int64, month string, dgvi float64) error

	// NormalizeMonth recomputes dgvi_normalized as the min-max normalization
	// over all rows of the month; when min equals max, all values become 0.
	NormalizeMonth(ctx context.Context, month string) error
}
