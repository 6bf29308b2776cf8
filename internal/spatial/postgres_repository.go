package spatial

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenroute/greenroute/pkg/geometry"
)

// PostgresRepository is a PostgreSQL/PostGIS implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL spatial repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// NearestVertex returns the closest graph vertex to the point.
func (r *PostgresRepository) NearestVertex(ctx context.Context, p geometry.Coordinate) (int64, error) {
	query := `
		SELECT id
		FROM road_network_vertices
		ORDER BY geom::geography <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, id
		LIMIT 1
	`

	var id int64
	err := r.pool.QueryRow(ctx, query, p.Lon, p.Lat).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoVertex
		}
		return 0, fmt.Errorf("nearest vertex: %w", err)
	}
	return id, nil
}

// VertexPosition returns the position of a graph vertex.
func (r *PostgresRepository) VertexPosition(ctx context.Context, vertexID int64) (geometry.Coordinate, error) {
	query := `
		SELECT ST_Y(geom), ST_X(geom)
		FROM road_network_vertices
		WHERE id = $1
	`

	var c geometry.Coordinate
	err := r.pool.QueryRow(ctx, query, vertexID).Scan(&c.Lat, &c.Lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return geometry.Coordinate{}, ErrNotFound
		}
		return geometry.Coordinate{}, fmt.Errorf("vertex position: %w", err)
	}
	return c, nil
}

// GraphEdges loads road edges within a bounding box together with the
// normalized greenness for the month. The month arrives as a bind parameter;
// edge cost is computed in Go, so no expression text is interpolated here.
func (r *PostgresRepository) GraphEdges(ctx context.Context, box BoundingBox, month string) ([]GraphEdge, error) {
	query := `
		SELECT
			rn.id, rn.source, rn.target,
			rn.length_m, rn.length_normalized,
			COALESCE(rd.dgvi_normalized, 0),
			ST_AsGeoJSON(rn.geom)
		FROM road_network rn
		LEFT JOIN road_dgvi rd
			ON rd.road_id = rn.id AND rd.month = $5
		WHERE rn.geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)
	`

	rows, err := r.pool.Query(ctx, query, box.MinLon, box.MinLat, box.MaxLon, box.MaxLat, month)
	if err != nil {
		return nil, fmt.Errorf("graph edges: %w", err)
	}
	defer rows.Close()

	var edges []GraphEdge
	for rows.Next() {
		var e GraphEdge
		var geomJSON []byte
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Length, &e.LengthNorm, &e.DGVINorm, &geomJSON); err != nil {
			return nil, fmt.Errorf("scan graph edge: %w", err)
		}
		line, err := geometry.ParseLineString(geomJSON)
		if err != nil {
			return nil, fmt.Errorf("edge %d geometry: %w", e.ID, err)
		}
		e.Geometry = line
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// EdgeGeometry returns the polyline and length of a road edge.
func (r *PostgresRepository) EdgeGeometry(ctx context.Context, edgeID int64) (geometry.Line, float64, error) {
	query := `
		SELECT ST_AsGeoJSON(geom), length_m
		FROM road_network
		WHERE id = $1
	`

	var geomJSON []byte
	var length float64
	err := r.pool.QueryRow(ctx, query, edgeID).Scan(&geomJSON, &length)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("edge geometry: %w", err)
	}

	line, err := geometry.ParseLineString(geomJSON)
	if err != nil {
		return nil, 0, fmt.Errorf("edge %d geometry: %w", edgeID, err)
	}
	return line, length, nil
}

// EdgesWithin returns road edges within radiusMeters of a point.
func (r *PostgresRepository) EdgesWithin(ctx context.Context, p geometry.Coordinate, radiusMeters float64) ([]int64, error) {
	query := `
		SELECT id
		FROM road_network
		WHERE ST_DWithin(
			geom::geography,
			ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			$3
		)
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, p.Lon, p.Lat, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("edges within: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RoadIDs returns all road edge ids ordered ascending.
func (r *PostgresRepository) RoadIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM road_network ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("road ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SitesWithinAndNearest returns the union of in-radius and k-nearest sites.
func (r *PostgresRepository) SitesWithinAndNearest(ctx context.Context, p geometry.Coordinate, radiusMeters float64, k, limit int) ([]Site, error) {
	query := `
		WITH query_point AS (
			SELECT ST_SetSRID(ST_MakePoint($1, $2), 4326) AS geom
		),
		within AS (
			SELECT s.site_id, s.name, s.geom
			FROM bus_sites s, query_point q
			WHERE ST_DWithin(s.geom::geography, q.geom::geography, $3)
		),
		nearest AS (
			SELECT s.site_id, s.name, s.geom
			FROM bus_sites s, query_point q
			ORDER BY s.geom <-> q.geom
			LIMIT $4
		)
		SELECT DISTINCT ON (u.site_id)
			u.site_id, u.name, ST_Y(u.geom), ST_X(u.geom),
			ST_Distance(u.geom::geography, q.geom::geography)
		FROM (SELECT * FROM within UNION SELECT * FROM nearest) u, query_point q
		ORDER BY u.site_id
	`

	rows, err := r.pool.Query(ctx, query, p.Lon, p.Lat, radiusMeters, k)
	if err != nil {
		return nil, fmt.Errorf("sites within and nearest: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.ID, &s.Name, &s.Position.Lat, &s.Position.Lon, &s.WalkingDistance); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Closest first, then cap at limit.
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].WalkingDistance < sites[j].WalkingDistance
	})
	if len(sites) > limit {
		sites = sites[:limit]
	}
	return sites, nil
}

// StopPoint returns a stop point by id.
func (r *PostgresRepository) StopPoint(ctx context.Context, id int64) (*StopPoint, error) {
	query := `
		SELECT stop_point_id, site_id, name, ST_Y(geom), ST_X(geom), direction_code
		FROM stop_points
		WHERE stop_point_id = $1
	`

	var sp StopPoint
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sp.ID, &sp.SiteID, &sp.Name, &sp.Position.Lat, &sp.Position.Lon, &sp.DirectionCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stop point %d: %w", id, err)
	}
	return &sp, nil
}

// NextStop returns the successor stop on (line, direction), or nil at the
// end of the line.
func (r *PostgresRepository) NextStop(ctx context.Context, lineID int64, directionCode string, stopPointID int64) (*NextStop, error) {
	query := `
		SELECT ss.next_stop_point_id, sp.site_id, sp.name
		FROM stop_sequences ss
		JOIN stop_points sp ON sp.stop_point_id = ss.next_stop_point_id
		WHERE ss.line_id = $1 AND ss.direction_code = $2 AND ss.stop_point_id = $3
		LIMIT 1
	`

	var ns NextStop
	err := r.pool.QueryRow(ctx, query, lineID, directionCode, stopPointID).Scan(
		&ns.StopPointID, &ns.SiteID, &ns.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next stop: %w", err)
	}
	return &ns, nil
}

// ReachableSitesFrom walks the stop sequence forward and reports which of
// the target sites are reached within maxDepth hops.
func (r *PostgresRepository) ReachableSitesFrom(ctx context.Context, lineID int64, directionCode string, stopPointID int64, targetSiteIDs []int64, maxDepth int) ([]int64, error) {
	if len(targetSiteIDs) == 0 {
		return nil, nil
	}

	query := `
		WITH RECURSIVE walk AS (
			SELECT ss.next_stop_point_id AS stop_point_id, 1 AS depth
			FROM stop_sequences ss
			WHERE ss.line_id = $1 AND ss.direction_code = $2 AND ss.stop_point_id = $3
			UNION ALL
			SELECT ss.next_stop_point_id, w.depth + 1
			FROM stop_sequences ss
			JOIN walk w ON ss.stop_point_id = w.stop_point_id
			WHERE ss.line_id = $1 AND ss.direction_code = $2 AND w.depth < $4
		)
		SELECT site_id
		FROM (
			SELECT DISTINCT ON (sp.site_id) sp.site_id, w.depth
			FROM walk w
			JOIN stop_points sp ON sp.stop_point_id = w.stop_point_id
			WHERE sp.site_id = ANY($5)
			ORDER BY sp.site_id, w.depth
		) first_reach
		ORDER BY depth, site_id
	`

	rows, err := r.pool.Query(ctx, query, lineID, directionCode, stopPointID, maxDepth, targetSiteIDs)
	if err != nil {
		return nil, fmt.Errorf("reachable sites: %w", err)
	}
	defer rows.Close()

	var sites []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sites = append(sites, id)
	}
	return sites, rows.Err()
}

// StopsAlong enumerates named stops between two stop points of one line.
func (r *PostgresRepository) StopsAlong(ctx context.Context, lineID int64, directionCode string, fromStopID, toStopID int64, maxDepth int) ([]Stop, error) {
	query := `
		WITH RECURSIVE walk AS (
			SELECT $3::bigint AS stop_point_id, 0 AS depth
			UNION ALL
			SELECT ss.next_stop_point_id, w.depth + 1
			FROM stop_sequences ss
			JOIN walk w ON ss.stop_point_id = w.stop_point_id
			WHERE ss.line_id = $1 AND ss.direction_code = $2
				AND w.depth < $5
				AND w.stop_point_id <> $4
		)
		SELECT w.stop_point_id, sp.site_id, sp.name, w.depth
		FROM walk w
		JOIN stop_points sp ON sp.stop_point_id = w.stop_point_id
		ORDER BY w.depth
	`

	rows, err := r.pool.Query(ctx, query, lineID, directionCode, fromStopID, toStopID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("stops along: %w", err)
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var s Stop
		if err := rows.Scan(&s.StopPointID, &s.SiteID, &s.Name, &s.SequenceOrder); err != nil {
			return nil, err
		}
		stops = append(stops, s)
		if s.StopPointID == toStopID {
			break
		}
	}
	return stops, rows.Err()
}
