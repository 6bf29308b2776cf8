package geoai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenroute/greenroute/internal/gvi/geoai"
)

func TestCalculateGVI_SubmitsBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calculate_gvi", r.URL.Path)

		var body struct {
			Points []geoai.PointRequest `json:"points"`
			Month  string               `json:"month"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Points, 2)
		assert.Equal(t, "2025-08", body.Month)

		fmt.Fprint(w, `{
			"results": [
				{"lat": 59.33, "lon": 18.06, "gvi": 0.58, "success": true, "confidence": 0.9},
				{"lat": 59.34, "lon": 18.07, "gvi": null, "success": false, "error": "no imagery"}
			],
			"processed_count": 1,
			"failed_count": 1,
			"month": "2025-08"
		}`)
	}))
	defer server.Close()

	client := geoai.NewClient(geoai.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	results, err := client.CalculateGVI(context.Background(), []geoai.PointRequest{
		{Lat: 59.33, Lon: 18.06},
		{Lat: 59.34, Lon: 18.07},
	}, "2025-08")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	require.NotNil(t, results[0].GVI)
	assert.Equal(t, 0.58, *results[0].GVI)
	assert.False(t, results[1].Success)
	assert.Nil(t, results[1].GVI)
}

func TestCalculateGVI_EmptyBatchIsNoop(t *testing.T) {
	client := geoai.NewClient(geoai.ClientConfig{BaseURL: "http://unused", Logger: zerolog.Nop()})

	results, err := client.CalculateGVI(context.Background(), nil, "2025-08")
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestCalculateGVI_RejectsOversizedBatch(t *testing.T) {
	client := geoai.NewClient(geoai.ClientConfig{BaseURL: "http://unused", Logger: zerolog.Nop()})

	points := make([]geoai.PointRequest, geoai.MaxPointsPerRequest+1)
	_, err := client.CalculateGVI(context.Background(), points, "2025-08")
	assert.Error(t, err)
}

func TestCalculateGVI_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := geoai.NewClient(geoai.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := client.CalculateGVI(context.Background(), []geoai.PointRequest{{Lat: 1, Lon: 1}}, "2025-08")
	assert.Error(t, err)
}
