// Package dgvi computes distance-adjusted green-view accumulation along
// road edges, walking paths, and stop surroundings, and rebuilds the
// per-month DGVI table.
package dgvi

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/gvi"
	"github.com/greenroute/greenroute/pkg/geometry"
)

// WaitingRadiusMeters is the circular buffer around a waiting stop whose
// edges contribute to waiting greenness.
const WaitingRadiusMeters = 200

// EdgeStore is the subset of the spatial repository the evaluator needs.
type EdgeStore interface {
	EdgeGeometry(ctx context.Context, edgeID int64) (geometry.Line, float64, error)
	EdgesWithin(ctx context.Context, p geometry.Coordinate, radiusMeters float64) ([]int64, error)
}

// SampleStore matches GVI points against edges.
type SampleStore interface {
	MatchedSamples(ctx context.Context, edgeID int64, month string) ([]gvi.Sample, error)
}

// EvaluatorConfig holds configuration for the evaluator.
type EvaluatorConfig struct {
	// Edges is the road edge store.
	Edges EdgeStore

	// Samples is the GVI sample store.
	Samples SampleStore

	// Logger for evaluator operations.
	Logger zerolog.Logger
}

// Evaluator computes greenness accumulation.
type Evaluator struct {
	edges   EdgeStore
	samples SampleStore
	logger  zerolog.Logger
}

// NewEvaluator creates a new DGVI evaluator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{
		edges:   cfg.Edges,
		samples: cfg.Samples,
		logger:  cfg.Logger,
	}
}

// EdgeDGVI integrates greenness along one road edge for a month.
//
// Matched samples are projected onto the edge line as parameters in [0,1].
// Endpoints are synthesized from the nearest matched value when missing.
// Each consecutive interval contributes (p2-p1) * L * ((v1+v2)/2 - 1):
// baseline (no vegetation) contributes zero, averaged greenness above 1
// is positive, below 1 negative. An edge with no matched samples is 0.
func (e *Evaluator) EdgeDGVI(ctx context.Context, edgeID int64, month string) (float64, error) {
	_, length, err := e.edges.EdgeGeometry(ctx, edgeID)
	if err != nil {
		return 0, fmt.Errorf("edge %d: %w", edgeID, err)
	}

	samples, err := e.samples.MatchedSamples(ctx, edgeID, month)
	if err != nil {
		return 0, fmt.Errorf("samples for edge %d: %w", edgeID, err)
	}
	if len(samples) == 0 {
		return 0, nil
	}

	return IntegrateSamples(samples, length), nil
}

// IntegrateSamples applies the interval integration law to an already
// matched, possibly unsorted sample set over an edge of the given length.
func IntegrateSamples(samples []gvi.Sample, length float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	pts := make([]gvi.Sample, len(samples))
	copy(pts, samples)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Parameter < pts[j].Parameter })

	// Synthesize missing endpoints from the nearest matched value.
	if pts[0].Parameter > 0 {
		pts = append([]gvi.Sample{{Parameter: 0, Value: pts[0].Value}}, pts...)
	}
	if pts[len(pts)-1].Parameter < 1 {
		pts = append(pts, gvi.Sample{Parameter: 1, Value: pts[len(pts)-1].Value})
	}

	var sum float64
	for i := 1; i < len(pts); i++ {
		dp := pts[i].Parameter - pts[i-1].Parameter
		avg := (pts[i-1].Value + pts[i].Value) / 2
		sum += dp * length * (avg - 1)
	}
	return sum
}

// WalkingDGVI sums per-edge DGVI over an ordered edge list. Duplicate
// edges are counted as often as they appear. A per-edge failure logs and
// contributes 0 rather than failing the path.
func (e *Evaluator) WalkingDGVI(ctx context.Context, edgeIDs []int64, month string) float64 {
	var total float64
	for _, id := range edgeIDs {
		v, err := e.EdgeDGVI(ctx, id, month)
		if err != nil {
			e.logger.Warn().Err(err).
				Int64("edge_id", id).
				Str("month", month).
				Msg("edge greenness failed, contributing 0")
			continue
		}
		total += v
	}
	return total
}

// WaitingDGVI accumulates greenness around a waiting stop: every road edge
// within WaitingRadiusMeters contributes L*avgGVI - L, where avgGVI is the
// arithmetic mean of the edge's matched samples (0 when none matched).
func (e *Evaluator) WaitingDGVI(ctx context.Context, stop geometry.Coordinate, month string) (float64, error) {
	edgeIDs, err := e.edges.EdgesWithin(ctx, stop, WaitingRadiusMeters)
	if err != nil {
		return 0, fmt.Errorf("edges near stop: %w", err)
	}

	var total float64
	for _, id := range edgeIDs {
		_, length, err := e.edges.EdgeGeometry(ctx, id)
		if err != nil {
			e.logger.Warn().Err(err).Int64("edge_id", id).Msg("edge geometry failed, contributing 0")
			continue
		}

		samples, err := e.samples.MatchedSamples(ctx, id, month)
		if err != nil {
			e.logger.Warn().Err(err).Int64("edge_id", id).Msg("edge samples failed, contributing 0")
			continue
		}

		var avg float64
		if len(samples) > 0 {
			for _, s := range samples {
				avg += s.Value
			}
			avg /= float64(len(samples))
		}
		total += length*avg - length
	}
	return total, nil
}
