package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/greenroute/greenroute/internal/api"
	"github.com/greenroute/greenroute/internal/dgvi"
	"github.com/greenroute/greenroute/internal/gvi"
	"github.com/greenroute/greenroute/internal/planner"
	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/pkg/geometry"
)

type stubPlanner struct{}

func (stubPlanner) PlanRoutes(_ context.Context, _ planner.Request) (*planner.Result, error) {
	return &planner.Result{Month: "2025-08"}, nil
}

type stubGVI struct{}

func (stubGVI) AvailableMonths(_ context.Context) ([]string, error) {
	return []string{"2025-08"}, nil
}

func (stubGVI) MonthStats(_ context.Context, month string) (*gvi.MonthStats, error) {
	return &gvi.MonthStats{Month: month}, nil
}

func (stubGVI) PointsForMonth(_ context.Context, _ string, _ int) ([]gvi.Point, error) {
	return nil, nil
}

func (stubGVI) AddPoints(_ context.Context, _ []geometry.Coordinate, _ string) ([]gvi.Point, error) {
	return nil, nil
}

func (stubGVI) RecommendedMonth(_ context.Context) (string, error) {
	return "2025-08", nil
}

type stubSites struct{}

func (stubSites) SitesWithinAndNearest(_ context.Context, _ geometry.Coordinate, _ float64, _, _ int) ([]spatial.Site, error) {
	return nil, nil
}

type stubRebuilder struct{}

func (stubRebuilder) Rebuild(_ context.Context, month string) (*dgvi.RebuildResult, error) {
	return &dgvi.RebuildResult{Month: month}, nil
}

func newTestRouter() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "now",
		Logger:    zerolog.Nop(),
		Planner:   stubPlanner{},
		GVI:       stubGVI{},
		Months:    stubGVI{},
		Sites:     stubSites{},
		Rebuilder: stubRebuilder{},
	})
}

func TestRouter_RoutesWired(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/v1/ops/health", "", http.StatusOK},
		{http.MethodGet, "/v1/ops/ready", "", http.StatusOK},
		{http.MethodGet, "/v1/ops/status", "", http.StatusOK},
		{http.MethodGet, "/v1/available-months", "", http.StatusOK},
		{http.MethodGet, "/v1/dgvi-stats/2025-08", "", http.StatusOK},
		{http.MethodGet, "/v1/gvi-points/2025-08", "", http.StatusOK},
		{http.MethodGet, "/v1/nearby-sites?lat=59.33&lon=18.06", "", http.StatusOK},
		{
			http.MethodPost, "/v1/plan-routes",
			`{"origin":{"lat":59.33,"lon":18.06},"destination":{"lat":59.34,"lon":18.07}}`,
			http.StatusOK,
		},
		{http.MethodPost, "/v1/admin/update-dgvi", `{"month":"2025-08"}`, http.StatusOK},
		{http.MethodGet, "/v1/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
