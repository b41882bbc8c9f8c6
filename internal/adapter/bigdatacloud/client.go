// Package bigdatacloud implements domain.Geocoder against the
// BigDataCloud reverse-geocode API.
package bigdatacloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
	"github.com/couchcryptid/firewatch-etl/internal/secrets"
)

// DefaultBaseURL is the client-grade reverse geocode endpoint; it works
// without a key, and a configured key raises the rate limits.
const DefaultBaseURL = "https://api.bigdatacloud.net/data/reverse-geocode-client"

// Client resolves coordinates to place names.
//
// The API key is resolved from the credential source at most once per
// client lifetime and cached, including a failed resolution. A stale
// cached key therefore causes persistent lookup failures until the
// worker is recycled; downstream that only degrades records to
// "Unknown", so the trade-off against a per-call secret fetch is
// accepted.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      secrets.Source
	logger     *slog.Logger
	metrics    *observability.Metrics

	keyOnce sync.Once
	key     string
}

// NewClient creates a BigDataCloud geocoding client.
func NewClient(baseURL string, timeout time.Duration, creds secrets.Source, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		logger:     logger,
		metrics:    metrics,
	}
}

// ReverseGeocode converts a coordinate pair to place details.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodeResult, error) {
	params := url.Values{
		"latitude":         {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":        {strconv.FormatFloat(lon, 'f', -1, 64)},
		"localityLanguage": {"en"},
	}
	if key := c.apiKey(ctx); key != "" {
		params.Set("key", key)
	}

	start := time.Now()
	result, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.GeocodeDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case result == (domain.GeocodeResult{}):
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return result, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.GeocodeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodeResult{}, fmt.Errorf("bigdatacloud API error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("decode response: %w", err)
	}

	return domain.GeocodeResult{
		City:                 payload.City,
		Locality:             payload.Locality,
		CountryName:          payload.CountryName,
		PrincipalSubdivision: payload.PrincipalSubdivision,
	}, nil
}

// apiKey resolves the credential exactly once per client lifetime.
func (c *Client) apiKey(ctx context.Context) string {
	c.keyOnce.Do(func() {
		key, err := c.creds.Get(ctx, secrets.APIKey)
		if err != nil {
			c.logger.Warn("could not load geocode api key, proceeding keyless", "error", err)
			return
		}
		c.key = key
	})
	return c.key
}

// BigDataCloud API response subset.
type response struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	CountryName          string `json:"countryName"`
	PrincipalSubdivision string `json:"principalSubdivision"`
}
