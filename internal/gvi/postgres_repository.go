package gvi

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL/PostGIS implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL GVI repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// MatchedSamples returns the month's GVI points within a 1 m buffer of the
// edge, projected onto the edge line as a fraction of its length.
func (r *PostgresRepository) MatchedSamples(ctx context.Context, edgeID int64, month string) ([]Sample, error) {
	query := `
		SELECT
			ST_LineLocatePoint(ST_LineMerge(rn.geom), gp.geom),
			gp.gvi_value
		FROM gvi_points gp
		JOIN road_network rn ON rn.id = $1
		WHERE gp.month = $2
			AND ST_DWithin(rn.geom::geography, gp.geom::geography, 1.0)
		ORDER BY 1
	`

	rows, err := r.pool.Query(ctx, query, edgeID, month)
	if err != nil {
		return nil, fmt.Errorf("matched samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Parameter, &s.Value); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// AvailableMonths returns months with DGVI rows, newest first.
func (r *PostgresRepository) AvailableMonths(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT month FROM road_dgvi ORDER BY month DESC`)
	if err != nil {
		return nil, fmt.Errorf("available months: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// MonthStats returns DGVI statistics for one month.
func (r *PostgresRepository) MonthStats(ctx context.Context, month string) (*MonthStats, error) {
	query := `
		SELECT
			COUNT(*),
			MIN(dgvi), MAX(dgvi), AVG(dgvi),
			MIN(dgvi_normalized), MAX(dgvi_normalized)
		FROM road_dgvi
		WHERE month = $1
		HAVING COUNT(*) > 0
	`

	stats := MonthStats{Month: month}
	err := r.pool.QueryRow(ctx, query, month).Scan(
		&stats.RoadCount,
		&stats.MinDGVI, &stats.MaxDGVI, &stats.MeanDGVI,
		&stats.MinNormalized, &stats.MaxNormalized,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoDataForMonth
		}
		return nil, fmt.Errorf("month stats: %w", err)
	}
	return &stats, nil
}

// PointsForMonth lists GVI points of a month, bounded by limit.
func (r *PostgresRepository) PointsForMonth(ctx context.Context, month string, limit int) ([]Point, error) {
	query := `
		SELECT id, ST_Y(geom), ST_X(geom), month, gvi_value
		FROM gvi_points
		WHERE month = $1
		ORDER BY id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, month, limit)
	if err != nil {
		return nil, fmt.Errorf("points for month: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.Position.Lat, &p.Position.Lon, &p.Month, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// InsertPoints persists newly computed GVI points.
func (r *PostgresRepository) InsertPoints(ctx context.Context, points []Point) error {
	query := `
		INSERT INTO gvi_points (geom, month, gvi_value)
		VALUES (ST_SetSRID(ST_MakePoint($1, $2), 4326), $3, $4)
	`

	for _, p := range points {
		if _, err := r.pool.Exec(ctx, query, p.Position.Lon, p.Position.Lat, p.Month, p.Value); err != nil {
			return fmt.Errorf("insert gvi point: %w", err)
		}
	}
	return nil
}

// UpsertRoadDGVI writes the raw DGVI for one (road, month).
func (r *PostgresRepository) UpsertRoadDGVI(ctx context.Context, roadID int64, month string, dgvi float64) error {
	query := `
		INSERT INTO road_dgvi (road_id, month, dgvi, dgvi_normalized, updated_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (road_id, month)
		DO UPDATE SET dgvi = EXCLUDED.dgvi, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, roadID, month, dgvi); err != nil {
		return fmt.Errorf("upsert road dgvi: %w", err)
	}
	return nil
}

// NormalizeMonth recomputes the per-month min-max normalization.
// When min equals max the normalized value is 0 for every row.
func (r *PostgresRepository) NormalizeMonth(ctx context.Context, month string) error {
	query := `
		WITH bounds AS (
			SELECT MIN(dgvi) AS lo, MAX(dgvi) AS hi
			FROM road_dgvi
			WHERE month = $1
		)
		UPDATE road_dgvi rd
		SET dgvi_normalized = CASE
			WHEN b.hi = b.lo THEN 0
			ELSE (rd.dgvi - b.lo) / (b.hi - b.lo)
		END
		FROM bounds b
		WHERE rd.month = $1
	`

	if _, err := r.pool.Exec(ctx, query, month); err != nil {
		return fmt.Errorf("normalize month: %w", err)
	}
	return nil
}
