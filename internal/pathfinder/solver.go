// Package pathfinder runs single-source-single-target shortest-path search
// over the road graph. The edge cost is a caller-supplied Go function, so
// preference weights and month never appear in query text.
package pathfinder

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// ErrNoPath is returned when the two vertices are not connected within the
// loaded graph extent. It is non-fatal; callers drop the candidate.
var ErrNoPath = errors.New("no path between vertices")

// CostFunc evaluates the traversal cost of a single road edge.
type CostFunc func(e *spatial.GraphEdge) float64

// Combined returns the preference-weighted cost
// wTime*lengthNorm + wGreen*(1 - dgviNorm). Missing greenness rows arrive
// from the store already coalesced to 0.
func Combined(wTime, wGreen float64) CostFunc {
	return func(e *spatial.GraphEdge) float64 {
		return wTime*e.LengthNorm + wGreen*(1-e.DGVINorm)
	}
}

// PureLength returns a cost of plain edge length in meters. Used to
// reconstruct bus-ride geometry for display.
func PureLength() CostFunc {
	return func(e *spatial.GraphEdge) float64 {
		return e.Length
	}
}

// Store is the subset of the spatial repository the solver needs.
type Store interface {
	NearestVertex(ctx context.Context, p geometry.Coordinate) (int64, error)
	VertexPosition(ctx context.Context, vertexID int64) (geometry.Coordinate, error)
	GraphEdges(ctx context.Context, box spatial.BoundingBox, month string) ([]spatial.GraphEdge, error)
}

// Path is a solved route over the road graph.
type Path struct {
	// EdgeIDs is the ordered edge-id sequence in traversal order.
	EdgeIDs []int64

	// Distance is the sum of edge lengths in meters.
	Distance float64

	// Geometry is the merged polyline, stitched in traversal order.
	Geometry geometry.Line
}

// SolverConfig holds configuration for the path solver.
type SolverConfig struct {
	// Store is the spatial store.
	Store Store

	// Logger for solver operations.
	Logger zerolog.Logger

	// LoadMarginMeters pads the graph-load extent around the endpoints
	// (default: 2000).
	LoadMarginMeters float64
}

// Solver computes shortest edge paths over the road graph.
type Solver struct {
	store            Store
	logger           zerolog.Logger
	loadMarginMeters float64
}

// NewSolver creates a new path solver.
func NewSolver(cfg SolverConfig) *Solver {
	margin := cfg.LoadMarginMeters
	if margin == 0 {
		margin = 2000
	}

	return &Solver{
		store:            cfg.Store,
		logger:           cfg.Logger,
		loadMarginMeters: margin,
	}
}

// NearestVertex resolves the closest graph vertex to a point.
func (s *Solver) NearestVertex(ctx context.Context, p geometry.Coordinate) (int64, error) {
	return s.store.NearestVertex(ctx, p)
}

// ShortestEdgePath solves the cheapest path between two vertices under the
// given cost function, interpreting the graph as undirected. Equal
// endpoints yield an empty path with zero distance.
func (s *Solver) ShortestEdgePath(ctx context.Context, fromVertex, toVertex int64, month string, cost CostFunc) (*Path, error) {
	if fromVertex == toVertex {
		return &Path{EdgeIDs: []int64{}, Geometry: geometry.Line{}}, nil
	}

	fromPos, err := s.store.VertexPosition(ctx, fromVertex)
	if err != nil {
		return nil, fmt.Errorf("from vertex %d: %w", fromVertex, err)
	}
	toPos, err := s.store.VertexPosition(ctx, toVertex)
	if err != nil {
		return nil, fmt.Errorf("to vertex %d: %w", toVertex, err)
	}

	margin := s.loadMarginMeters
	if span := geometry.Haversine(fromPos, toPos); span*0.3 > margin {
		margin = span * 0.3
	}
	box := spatial.NewBoundingBox([]geometry.Coordinate{fromPos, toPos}, margin)

	edges, err := s.store.GraphEdges(ctx, box, month)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}

	path, found := dijkstra(edges, fromVertex, toVertex, cost)
	if !found {
		s.logger.Debug().
			Int64("from", fromVertex).
			Int64("to", toVertex).
			Int("edges_loaded", len(edges)).
			Msg("no path in loaded extent")
		return nil, ErrNoPath
	}

	return path, nil
}

// adjacency entry: an edge leaving a vertex, with the vertex it reaches.
type arc struct {
	edge *spatial.GraphEdge
	to   int64
}

// dijkstra runs a binary-heap Dijkstra over the undirected edge set.
func dijkstra(edges []spatial.GraphEdge, from, to int64, cost CostFunc) (*Path, bool) {
	adj := make(map[int64][]arc, len(edges)*2)
	for i := range edges {
		e := &edges[i]
		adj[e.Source] = append(adj[e.Source], arc{edge: e, to: e.Target})
		adj[e.Target] = append(adj[e.Target], arc{edge: e, to: e.Source})
	}

	dist := map[int64]float64{from: 0}
	prev := map[int64]arc{}
	visited := map[int64]bool{}

	pq := &vertexQueue{{vertex: from, priority: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*vertexItem)
		v := item.vertex
		if visited[v] {
			continue
		}
		visited[v] = true
		if v == to {
			break
		}

		for _, a := range adj[v] {
			if visited[a.to] {
				continue
			}
			next := dist[v] + cost(a.edge)
			if d, ok := dist[a.to]; !ok || next < d {
				dist[a.to] = next
				prev[a.to] = arc{edge: a.edge, to: v}
				heap.Push(pq, &vertexItem{vertex: a.to, priority: next})
			}
		}
	}

	if !visited[to] {
		return nil, false
	}

	// Walk predecessors back to the origin, then reverse.
	var reversed []*spatial.GraphEdge
	for v := to; v != from; {
		step := prev[v]
		reversed = append(reversed, step.edge)
		v = step.to
	}

	path := &Path{EdgeIDs: make([]int64, 0, len(reversed))}
	segments := make([]geometry.Line, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		e := reversed[i]
		path.EdgeIDs = append(path.EdgeIDs, e.ID)
		path.Distance += e.Length
		segments = append(segments, e.Geometry)
	}
	path.Geometry = geometry.Stitch(segments)

	return path, true
}

// vertexItem is a priority queue entry.
type vertexItem struct {
	vertex   int64
	priority float64
}

type vertexQueue []*vertexItem

func (q vertexQueue) Len() int            { return len(q) }
func (q vertexQueue) Less(i, j int) bool  { return q[i].priority < q[j].priority }
func (q vertexQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *vertexQueue) Push(x interface{}) { *q = append(*q, x.(*vertexItem)) }
func (q *vertexQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
