package dgvi_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenroute/greenroute/internal/dgvi"
	"github.com/greenroute/greenroute/internal/gvi"
)

type memoryDGVIStore struct {
	mu    sync.Mutex
	roads []int64
	rows  map[int64]*gvi.RoadDGVI
}

func newMemoryDGVIStore(roads []int64) *memoryDGVIStore {
	return &memoryDGVIStore{
		roads: roads,
		rows:  map[int64]*gvi.RoadDGVI{},
	}
}

func (m *memoryDGVIStore) RoadIDs(_ context.Context) ([]int64, error) {
	return m.roads, nil
}

func (m *memoryDGVIStore) UpsertRoadDGVI(_ context.Context, roadID int64, month string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[roadID] = &gvi.RoadDGVI{RoadID: roadID, Month: month, DGVI: value}
	return nil
}

func (m *memoryDGVIStore) NormalizeMonth(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lo, hi float64
	first := true
	for _, row := range m.rows {
		if first {
			lo, hi = row.DGVI, row.DGVI
			first = false
			continue
		}
		if row.DGVI < lo {
			lo = row.DGVI
		}
		if row.DGVI > hi {
			hi = row.DGVI
		}
	}
	for _, row := range m.rows {
		if hi == lo {
			row.Normalized = 0
			continue
		}
		row.Normalized = (row.DGVI - lo) / (hi - lo)
	}
	return nil
}

func (m *memoryDGVIStore) snapshot() map[int64]gvi.RoadDGVI {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]gvi.RoadDGVI{}
	for id, row := range m.rows {
		out[id] = *row
	}
	return out
}

func rebuildFixture(roads []int64, samples map[int64][]gvi.Sample) (*dgvi.Rebuilder, *memoryDGVIStore) {
	lengths := map[int64]float64{}
	for _, id := range roads {
		lengths[id] = 100
	}

	store := newMemoryDGVIStore(roads)
	evaluator := dgvi.NewEvaluator(dgvi.EvaluatorConfig{
		Edges:   &fakeEdgeStore{lengths: lengths},
		Samples: &fakeSampleStore{samples: samples},
		Logger:  zerolog.Nop(),
	})

	rebuilder := dgvi.NewRebuilder(dgvi.RebuildConfig{
		Evaluator:   evaluator,
		Roads:       store,
		Writer:      store,
		Logger:      zerolog.Nop(),
		BatchSize:   2,
		Concurrency: 2,
	})
	return rebuilder, store
}

func TestRebuild_WritesAndNormalizes(t *testing.T) {
	roads := []int64{1, 2, 3}
	samples := map[int64][]gvi.Sample{
		1: {{Parameter: 0, Value: 2}, {Parameter: 1, Value: 2}},     // +100
		2: {{Parameter: 0, Value: 0.5}, {Parameter: 1, Value: 0.5}}, // -50
		// road 3 unmatched: 0
	}
	rebuilder, store := rebuildFixture(roads, samples)

	result, err := rebuilder.Rebuild(context.Background(), "2025-08")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRoads)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 0, result.Failed)

	rows := store.snapshot()
	require.Len(t, rows, 3)
	assert.InDelta(t, 100, rows[1].DGVI, 1e-9)
	assert.InDelta(t, -50, rows[2].DGVI, 1e-9)
	assert.InDelta(t, 0, rows[3].DGVI, 1e-9)

	// Min-max normalization over [-50, 100]
	assert.InDelta(t, 1.0, rows[1].Normalized, 1e-9)
	assert.InDelta(t, 0.0, rows[2].Normalized, 1e-9)
	assert.InDelta(t, 1.0/3.0, rows[3].Normalized, 1e-9)
}

func TestRebuild_Idempotent(t *testing.T) {
	roads := []int64{1, 2}
	samples := map[int64][]gvi.Sample{
		1: {{Parameter: 0, Value: 1.8}, {Parameter: 1, Value: 1.8}},
		2: {{Parameter: 0.4, Value: 0.9}},
	}
	rebuilder, store := rebuildFixture(roads, samples)

	_, err := rebuilder.Rebuild(context.Background(), "2025-08")
	require.NoError(t, err)
	first := store.snapshot()

	_, err = rebuilder.Rebuild(context.Background(), "2025-08")
	require.NoError(t, err)
	second := store.snapshot()

	assert.Equal(t, first, second)
}

func TestRebuild_AllEqualNormalizesToZero(t *testing.T) {
	roads := []int64{1, 2}
	rebuilder, store := rebuildFixture(roads, map[int64][]gvi.Sample{})

	_, err := rebuilder.Rebuild(context.Background(), "2025-08")
	require.NoError(t, err)

	for _, row := range store.snapshot() {
		assert.Equal(t, 0.0, row.Normalized)
	}
}

func TestRebuild_CancelledBetweenBatches(t *testing.T) {
	roads := []int64{1, 2, 3, 4}
	rebuilder, _ := rebuildFixture(roads, map[int64][]gvi.Sample{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rebuilder.Rebuild(ctx, "2025-08")
	assert.ErrorIs(t, err, context.Canceled)
}
