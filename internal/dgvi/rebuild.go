package dgvi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RoadLister enumerates road ids for batch jobs.
type RoadLister interface {
	RoadIDs(ctx context.Context) ([]int64, error)
}

// DGVIWriter persists rebuild results.
type DGVIWriter interface {
	UpsertRoadDGVI(ctx context.Context, roadID int64, month string, dgvi float64) error
	NormalizeMonth(ctx context.Context, month string) error
}

// RebuildConfig holds configuration for the per-month DGVI rebuild.
type RebuildConfig struct {
	// Evaluator computes per-edge greenness.
	Evaluator *Evaluator

	// Roads enumerates the road ids to rebuild.
	Roads RoadLister

	// Writer persists DGVI rows and runs normalization.
	Writer DGVIWriter

	// Logger for rebuild operations.
	Logger zerolog.Logger

	// BatchSize is the number of roads per batch (default: 100).
	BatchSize int

	// Concurrency is the number of workers per batch (default: 4).
	Concurrency int
}

// Rebuilder runs the per-month DGVI rebuild. The operation is idempotent:
// rows are upserted and the normalization is recomputed from the stored
// values, so a rerun converges to the same table.
type Rebuilder struct {
	evaluator   *Evaluator
	roads       RoadLister
	writer      DGVIWriter
	logger      zerolog.Logger
	batchSize   int
	concurrency int
}

// NewRebuilder creates a new rebuilder.
func NewRebuilder(cfg RebuildConfig) *Rebuilder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Rebuilder{
		evaluator:   cfg.Evaluator,
		roads:       cfg.Roads,
		writer:      cfg.Writer,
		logger:      cfg.Logger,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// RebuildResult summarizes one rebuild run.
type RebuildResult struct {
	Month      string        `json:"month"`
	TotalRoads int           `json:"total_roads"`
	Updated    int           `json:"updated"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"-"`
	StartedAt  time.Time     `json:"started_at"`
}

// Rebuild recomputes DGVI for every road for the month, in batches, then
// recomputes the month's min-max normalization. Cancellation is observed
// between batches; the rows written so far remain valid and a rerun picks
// them up again.
func (r *Rebuilder) Rebuild(ctx context.Context, month string) (*RebuildResult, error) {
	start := time.Now()

	roadIDs, err := r.roads.RoadIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roads: %w", err)
	}

	result := &RebuildResult{
		Month:      month,
		TotalRoads: len(roadIDs),
		StartedAt:  start,
	}

	r.logger.Info().
		Str("month", month).
		Int("roads", len(roadIDs)).
		Int("batch_size", r.batchSize).
		Msg("starting dgvi rebuild")

	for offset := 0; offset < len(roadIDs); offset += r.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := offset + r.batchSize
		if end > len(roadIDs) {
			end = len(roadIDs)
		}

		updated, failed := r.rebuildBatch(ctx, roadIDs[offset:end], month)
		result.Updated += updated
		result.Failed += failed

		r.logger.Debug().
			Int("offset", offset).
			Int("updated", result.Updated).
			Int("failed", result.Failed).
			Msg("dgvi batch completed")
	}

	if err := r.writer.NormalizeMonth(ctx, month); err != nil {
		return nil, fmt.Errorf("normalizing month %s: %w", month, err)
	}

	result.Duration = time.Since(start)

	r.logger.Info().
		Str("month", month).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("dgvi rebuild completed")

	return result, nil
}

// rebuildBatch computes and upserts one batch of roads with a worker pool.
func (r *Rebuilder) rebuildBatch(ctx context.Context, roadIDs []int64, month string) (updated, failed int) {
	type roadResult struct {
		ok bool
	}

	roadsChan := make(chan int64, len(roadIDs))
	resultsChan := make(chan roadResult, len(roadIDs))

	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for roadID := range roadsChan {
				select {
				case <-ctx.Done():
					resultsChan <- roadResult{ok: false}
					continue
				default:
				}

				value, err := r.evaluator.EdgeDGVI(ctx, roadID, month)
				if err == nil {
					err = r.writer.UpsertRoadDGVI(ctx, roadID, month, value)
				}
				if err != nil {
					r.logger.Warn().Err(err).
						Int64("road_id", roadID).
						Str("month", month).
						Msg("road dgvi rebuild failed")
					resultsChan <- roadResult{ok: false}
					continue
				}
				resultsChan <- roadResult{ok: true}
			}
		}()
	}

	for _, id := range roadIDs {
		roadsChan <- id
	}
	close(roadsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for res := range resultsChan {
		if res.ok {
			updated++
		} else {
			failed++
		}
	}
	return updated, failed
}
