package spatial

import (
	"context"

	"github.com/greenroute/greenroute/pkg/geometry"
)

// Repository defines the typed query surface over the spatial store.
type Repository interface {
	// NearestVertex returns the graph vertex closest to the point by
	// great-circle distance, ties broken by smaller vertex id.
	// Returns ErrNoVertex when the graph has no vertices.
	NearestVertex(ctx context.Context, p geometry.Coordinate) (int64, error)

	// VertexPosition returns the position of a graph vertex.
	VertexPosition(ctx context.Context, vertexID int64) (geometry.Coordinate, error)

	// GraphEdges loads the road edges intersecting the bounding box, with
	// the normalized greenness of the given month coalesced to 0.
	GraphEdges(ctx context.Context, box BoundingBox, month string) ([]GraphEdge, error)

	// EdgeGeometry returns the polyline and length of a road edge.
	EdgeGeometry(ctx context.Context, edgeID int64) (geometry.Line, float64, error)

	// EdgesWithin returns the ids of road edges whose geometry lies within
	// radiusMeters of the point.
	EdgesWithin(ctx context.Context, p geometry.Coordinate, radiusMeters float64) ([]int64, error)

	// RoadIDs returns all road edge ids ordered ascending, for batch jobs.
	RoadIDs(ctx context.Context) ([]int64, error)

	// SitesWithinAndNearest returns the union of sites within radiusMeters
	// of the point and the k nearest sites overall, capped at limit and
	// annotated with their straight-line walking distance.
	SitesWithinAndNearest(ctx context.Context, p geometry.Coordinate, radiusMeters float64, k, limit int) ([]Site, error)

	// StopPoint returns a stop point by id, or ErrNotFound.
	StopPoint(ctx context.Context, id int64) (*StopPoint, error)

	// NextStop returns the successor of a stop point on (line, direction),
	// or nil when the stop is the end of the line.
	NextStop(ctx context.Context, lineID int64, directionCode string, stopPointID int64) (*NextStop, error)

	// ReachableSitesFrom walks the stop sequence forward from a stop point
	// for at most maxDepth hops and returns which of the target sites are
	// reached, in hop order.
	ReachableSitesFrom(ctx context.Context, lineID int64, directionCode string, stopPointID int64, targetSiteIDs []int64, maxDepth int) ([]int64, error)

	// StopsAlong enumerates the stops between two stop points of one
	// (line, direction), ordered by sequence, bounded to maxDepth hops.
	StopsAlong(ctx context.Context, lineID int64, directionCode string, fromStopID, toStopID int64, maxDepth int) ([]Stop, error)
}
