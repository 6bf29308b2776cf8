package transitfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this transit feed provider.
	ProviderName = "transitfeed"

	// DefaultBaseURL is the departures API base URL.
	DefaultBaseURL = "https://transport.integration.sl.se/v1"
)

// ClientConfig holds configuration for the departures client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches departure forecasts from the remote transit API.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new departures client.
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

// SiteDepartures fetches bus departures expected at a site within the
// forecast window. forecastSeconds is clamped to MaxForecastSeconds.
func (c *Client) SiteDepartures(ctx context.Context, siteID int64, forecastSeconds int) ([]Departure, error) {
	if forecastSeconds <= 0 || forecastSeconds > MaxForecastSeconds {
		forecastSeconds = MaxForecastSeconds
	}

	url := fmt.Sprintf("%s/sites/%d/departures?forecast=%d", c.baseURL, siteID, forecastSeconds)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var feed departuresResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	departures := make([]Departure, 0, len(feed.Departures))
	for i := range feed.Departures {
		d := &feed.Departures[i]
		if !strings.EqualFold(d.Line.TransportMode, "BUS") {
			continue
		}

		expected, err := time.Parse(time.RFC3339, d.Expected)
		if err != nil {
			// The feed occasionally omits the zone suffix.
			expected, err = time.ParseInLocation("2006-01-02T15:04:05", d.Expected, time.Local)
			if err != nil {
				c.logger.Warn().
					Str("expected", d.Expected).
					Int64("site_id", siteID).
					Msg("skipping departure with unparseable timestamp")
				continue
			}
		}

		departures = append(departures, Departure{
			JourneyID:       d.Journey.ID,
			LineID:          d.Line.ID,
			LineDesignation: d.Line.Designation,
			DirectionCode:   fmt.Sprintf("%d", d.DirectionCode),
			SiteID:          siteID,
			StopPointID:     d.StopPoint.ID,
			StopPointName:   d.StopPoint.Name,
			Expected:        expected,
			Destination:     d.Destination,
		})
	}

	return departures, nil
}

// Feed response structures.

type departuresResponse struct {
	Departures []feedDeparture `json:"departures"`
}

type feedDeparture struct {
	Destination   string `json:"destination"`
	DirectionCode int    `json:"direction_code"`
	Expected      string `json:"expected"`
	Journey       struct {
		ID int64 `json:"id"`
	} `json:"journey"`
	Line struct {
		ID            int64  `json:"id"`
		Designation   string `json:"designation"`
		TransportMode string `json:"transport_mode"`
	} `json:"line"`
	StopPoint struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"stop_point"`
}
