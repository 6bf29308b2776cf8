package planner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenroute/greenroute/internal/planner"
	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/internal/transitfeed"
	"github.com/greenroute/greenroute/pkg/geometry"
)

var transferPos = geometry.Coordinate{Lat: 59.3400, Lon: 18.0700}

// transferFixture wires one connection: line 4 runs from the origin site to
// a transfer site; line 7 departs there and reaches the destination site
// one hop later.
func transferFixture() (*fakeSolver, *fakeFeed, *fakeTransitStore, *fakeGreenness) {
	solver := &fakeSolver{
		vertices: map[int64]geometry.Coordinate{
			1: originPos,
			2: destPos,
			3: transferPos,
		},
		distance: 140,
	}

	store := &fakeTransitStore{
		originPos:   originPos,
		destPos:     destPos,
		originSites: []spatial.Site{{ID: 10, Name: "Origin Site", Position: originPos, WalkingDistance: 140}},
		destSites:   []spatial.Site{{ID: 20, Name: "Dest Site", Position: destPos, WalkingDistance: 90}},
		stopPoints: map[int64]*spatial.StopPoint{
			101: {ID: 101, SiteID: 10, Name: "Origin Stop A", Position: originPos, DirectionCode: "1"},
			111: {ID: 111, SiteID: 30, Name: "Transfer Stop A", Position: transferPos, DirectionCode: "1"},
			112: {ID: 112, SiteID: 30, Name: "Transfer Stop B", Position: transferPos, DirectionCode: "1"},
			211: {ID: 211, SiteID: 20, Name: "Dest Stop A", Position: destPos, DirectionCode: "1"},
		},
		successors: map[string]*spatial.NextStop{
			seqKey(4, "1", 101): {StopPointID: 111, SiteID: 30, Name: "Transfer Stop A"},
			seqKey(7, "1", 112): {StopPointID: 211, SiteID: 20, Name: "Dest Stop A"},
		},
	}

	feed := &fakeFeed{departures: map[int64][]transitfeed.Departure{
		10: {{
			JourneyID: 900, LineID: 4, LineDesignation: "4", DirectionCode: "1",
			SiteID: 10, StopPointID: 101, StopPointName: "Origin Stop A",
			Expected: planNow.Add(5 * time.Minute), Destination: "Gullmarsplan",
		}},
		30: {{
			JourneyID: 910, LineID: 7, LineDesignation: "7", DirectionCode: "1",
			SiteID: 30, StopPointID: 112, StopPointName: "Transfer Stop B",
			Expected: planNow.Add(10 * time.Minute), Destination: "Ropsten",
		}},
	}}

	green := &fakeGreenness{perEdge: map[int64]float64{}, perStop: map[int64]float64{}}
	return solver, feed, store, green
}

func TestTransfer_OneTransferItineraryFound(t *testing.T) {
	service := newPlannerService(transferFixture())

	result, err := service.PlanRoutes(context.Background(), mixedRequest())
	require.NoError(t, err)

	buses := busRoutes(result.Routes)
	require.Len(t, buses, 1)
	route := buses[0]

	assert.Equal(t, planner.RouteTransferBus, route.Type)
	require.NoError(t, route.Validate())

	rides := route.RideSegments()
	require.Len(t, rides, 2)

	first, second := rides[0].Ride, rides[1].Ride
	assert.Equal(t, int64(101), first.FromStopPointID)
	assert.Equal(t, int64(111), first.ToStopPointID)
	assert.True(t, first.Approximate)

	assert.Equal(t, int64(112), second.FromStopPointID)
	assert.Equal(t, int64(211), second.ToStopPointID)
	assert.True(t, second.Approximate)

	// Second ride is one hop with the 90 s inter-stop estimate.
	assert.Equal(t, 90*time.Second, rides[1].Duration)
}

func TestTransfer_PlatformChangeIsIntraSiteWalk(t *testing.T) {
	service := newPlannerService(transferFixture())

	result, err := service.PlanRoutes(context.Background(), mixedRequest())
	require.NoError(t, err)

	buses := busRoutes(result.Routes)
	require.Len(t, buses, 1)

	var intra *planner.WalkingSegment
	var transferWait *planner.WaitingSegment
	for _, seg := range buses[0].Segments {
		if seg.Type == planner.SegmentWalking && seg.Walking.IntraSiteTransfer != nil {
			intra = seg.Walking
		}
		if seg.Type == planner.SegmentBusWaiting && seg.Waiting.Transfer != nil {
			transferWait = seg.Waiting
		}
	}

	require.NotNil(t, intra)
	assert.Equal(t, int64(111), intra.IntraSiteTransfer.FromStopPointID)
	assert.Equal(t, int64(112), intra.IntraSiteTransfer.ToStopPointID)
	assert.Equal(t, int64(30), intra.IntraSiteTransfer.SiteID)

	require.NotNil(t, transferWait)
	assert.True(t, transferWait.Transfer.IntraSiteWalk)
	assert.Equal(t, "4", transferWait.Transfer.FromLine.Designation)
	assert.Equal(t, "7", transferWait.Transfer.ToLine.Designation)
}

func TestTransfer_ConnectionInsideMarginRejected(t *testing.T) {
	solver, feed, store, green := transferFixture()
	// Arrival estimate at the transfer site is 10:06:30; a connection at
	// 10:07:00 violates the 60 s margin.
	feed.departures[30][0].Expected = planNow.Add(7 * time.Minute)
	service := newPlannerService(solver, feed, store, green)

	result, err := service.PlanRoutes(context.Background(), mixedRequest())
	require.NoError(t, err)
	assert.Empty(t, busRoutes(result.Routes))
}

func TestTransfer_SameLineConnectionSkipped(t *testing.T) {
	solver, feed, store, green := transferFixture()
	feed.departures[30][0].LineID = 4
	feed.departures[30][0].LineDesignation = "4"
	service := newPlannerService(solver, feed, store, green)

	result, err := service.PlanRoutes(context.Background(), mixedRequest())
	require.NoError(t, err)
	assert.Empty(t, busRoutes(result.Routes))
}

func TestTransfer_UnreachableDestinationSkipped(t *testing.T) {
	solver, feed, store, green := transferFixture()
	delete(store.successors, seqKey(7, "1", 112))
	service := newPlannerService(solver, feed, store, green)

	result, err := service.PlanRoutes(context.Background(), mixedRequest())
	require.NoError(t, err)
	assert.Empty(t, busRoutes(result.Routes))
}

func TestTransfer_DuplicateStopDirectionSuppressed(t *testing.T) {
	solver, feed, store, green := transferFixture()
	// A consecutive duplicate on the same (stop point, direction) must not
	// yield a second itinerary.
	dup := feed.departures[30][0]
	dup.JourneyID = 911
	dup.Expected = dup.Expected.Add(5 * time.Minute)
	feed.departures[30] = append(feed.departures[30], dup)
	service := newPlannerService(solver, feed, store, green)

	result, err := service.PlanRoutes(context.Background(), mixedRequest())
	require.NoError(t, err)

	buses := busRoutes(result.Routes)
	require.Len(t, buses, 1)
	assert.Equal(t, planner.RouteTransferBus, buses[0].Type)
}
