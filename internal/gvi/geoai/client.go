// Package geoai provides a client for the remote greenness service that
// computes a green-view value at a geographic point from a satellite-image
// model.
package geoai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this greenness provider.
	ProviderName = "geoai"

	// DefaultBaseURL is the greenness service base URL.
	DefaultBaseURL = "http://localhost:8000/api/v1"

	// MaxPointsPerRequest is the upstream batch limit.
	MaxPointsPerRequest = 20
)

// ClientConfig holds configuration for the greenness client.
type ClientConfig struct {
	// BaseURL is the service base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client calls the remote greenness service.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new greenness client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// PointRequest is a coordinate submitted for greenness computation.
type PointRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PointResult is the computed greenness at one coordinate.
type PointResult struct {
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	GVI        *float64 `json:"gvi"`
	Success    bool     `json:"success"`
	Error      *string  `json:"error"`
	Confidence *float64 `json:"confidence"`
}

type calculateRequest struct {
	Points []PointRequest `json:"points"`
	Month  string         `json:"month"`
}

type calculateResponse struct {
	Results        []PointResult `json:"results"`
	ProcessedCount int           `json:"processed_count"`
	FailedCount    int           `json:"failed_count"`
	Month          string        `json:"month"`
}

// CalculateGVI submits up to MaxPointsPerRequest coordinates and returns the
// per-point greenness results for the month.
func (c *Client) CalculateGVI(ctx context.Context, points []PointRequest, month string) ([]PointResult, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if len(points) > MaxPointsPerRequest {
		return nil, fmt.Errorf("at most %d points per request, got %d", MaxPointsPerRequest, len(points))
	}

	body, err := json.Marshal(calculateRequest{Points: points, Month: month})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/calculate_gvi", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var out calculateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug().
		Int("processed", out.ProcessedCount).
		Int("failed", out.FailedCount).
		Str("month", month).
		Msg("greenness batch computed")

	return out.Results, nil
}
