package planner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenroute/greenroute/internal/planner"
)

func TestScoring_SingleCandidateScoresOne(t *testing.T) {
	service := newPlannerService(walkOnlyFixture())

	result, err := service.PlanRoutes(context.Background(), defaultRequest())
	require.NoError(t, err)

	require.Len(t, result.Routes, 1)
	route := result.Routes[0]
	assert.Equal(t, 1.0, route.TotalScore)
	assert.Equal(t, 1.0, route.DurationScore)
	assert.Equal(t, 0.0, route.AcDGVIScore)
}

func TestScoring_RankedByTotalScore(t *testing.T) {
	solver, feed, store, green := walkOnlyFixture()
	solver.pathEdges = map[string][]int64{
		"user":  {1},
		"asap":  {2},
		"groot": {1},
	}
	green.perEdge = map[int64]float64{1: 50, 2: -50}
	service := newPlannerService(solver, feed, store, green)

	req := defaultRequest()
	req.Preferences = planner.Preferences{Time: 0, Green: 1}
	result, err := service.PlanRoutes(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Routes, 2)
	assert.GreaterOrEqual(t, result.Routes[0].TotalScore, result.Routes[1].TotalScore)
	assert.Equal(t, 1.0, result.Routes[0].TotalScore)
	assert.InDelta(t, 50, result.Routes[0].TotalAcDGVI, 1e-9)
}

func TestScoring_ScoresStayInUnitInterval(t *testing.T) {
	solver, feed, store, green := walkOnlyFixture()
	solver.pathEdges = map[string][]int64{
		"user":  {1},
		"asap":  {2},
		"groot": {3},
	}
	green.perEdge = map[int64]float64{1: 120, 2: -80, 3: 15}
	service := newPlannerService(solver, feed, store, green)

	result, err := service.PlanRoutes(context.Background(), defaultRequest())
	require.NoError(t, err)

	for _, route := range result.Routes {
		assert.GreaterOrEqual(t, route.TotalScore, 0.0)
		assert.LessOrEqual(t, route.TotalScore, 1.0)
		assert.GreaterOrEqual(t, route.DurationScore, 0.0)
		assert.LessOrEqual(t, route.DurationScore, 1.0)
		assert.GreaterOrEqual(t, route.AcDGVIScore, 0.0)
		assert.LessOrEqual(t, route.AcDGVIScore, 1.0)
	}
}

func TestScoring_MaxResultsRespected(t *testing.T) {
	service := newPlannerService(directFixture())

	req := mixedRequest()
	req.MaxResults = 1
	result, err := service.PlanRoutes(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Routes, 1)
}

func TestPlanRoutes_DeadlineSurfaces(t *testing.T) {
	service := newPlannerService(walkOnlyFixture())

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := service.PlanRoutes(ctx, defaultRequest())
	assert.Error(t, err)
}
