// Package firms fetches active-fire detections from the NASA FIRMS
// area API and parses its CSV responses.
package firms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
	"github.com/couchcryptid/firewatch-etl/internal/secrets"
)

// DefaultBaseURL is the FIRMS area CSV endpoint. Request shape:
// {base}/{map_key}/{source}/{area}/{day_range}.
const DefaultBaseURL = "https://firms.modaps.eosdis.nasa.gov/api/area/csv"

// ErrNoMapKey indicates the FIRMS credential is unset; fetching cannot
// proceed until the secret is populated.
var ErrNoMapKey = errors.New("firms map key not configured")

// Client retrieves detections for a trailing day window.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      secrets.Source
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a FIRMS client. The map key is resolved from creds
// on every fetch so a rotated key takes effect on the next cycle.
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

// Fetch retrieves and parses detections for the trailing window. A
// "no data" response (404 or empty body) is success with an empty
// slice; any other transport failure propagates so the next scheduled
// cycle can retry.
func (c *Client) Fetch(ctx context.Context, windowDays int, source, area string) ([]domain.RawDetection, error) {
	mapKey, err := c.creds.Get(ctx, secrets.MapKey)
	if err != nil {
		return nil, fmt.Errorf("resolve map key: %w", err)
	}
	if mapKey == "" {
		return nil, ErrNoMapKey
	}

	url := fmt.Sprintf("%s/%s/%s/%s/%d", c.baseURL, mapKey, source, area, windowDays)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch firms data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Info("no fire data available", "source", source, "area", area)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("firms API error: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	detections, skipped := ParseCSV(string(data))
	if skipped > 0 {
		c.logger.Warn("skipped malformed feed rows", "skipped", skipped)
	}
	c.metrics.RowsSkipped.Add(float64(skipped))
	c.metrics.FiresFetched.Add(float64(len(detections)))

	return detections, nil
}

// ParseCSV parses a FIRMS area CSV response. The header row defines
// column order. Rows shorter than the header are skipped silently; rows
// whose numeric columns fail to parse, or whose coordinates are out of
// range, are skipped and counted. Returns the valid detections and the
// skip count.
func ParseCSV(data string) ([]domain.RawDetection, int) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) < 2 {
		return nil, 0
	}

	header := strings.Split(strings.TrimSpace(lines[0]), ",")
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	latIdx, latOK := col["latitude"]
	lonIdx, lonOK := col["longitude"]
	if !latOK || !lonOK {
		// Without coordinate columns every row is invalid.
		return nil, len(lines) - 1
	}

	var detections []domain.RawDetection
	var skipped int

	for _, line := range lines[1:] {
		values := strings.Split(strings.TrimSpace(line), ",")
		if len(values) < len(header) {
			continue
		}

		lat, errLat := strconv.ParseFloat(values[latIdx], 64)
		lon, errLon := strconv.ParseFloat(values[lonIdx], 64)
		if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			skipped++
			continue
		}

		brightness, err := floatField(values, col, "brightness")
		if err != nil {
			skipped++
			continue
		}
		frp, err := floatField(values, col, "frp")
		if err != nil {
			skipped++
			continue
		}

		detections = append(detections, domain.RawDetection{
			Latitude:   lat,
			Longitude:  lon,
			Brightness: brightness,
			Confidence: stringField(values, col, "confidence", "unknown"),
			FRP:        frp,
			AcqDate:    stringField(values, col, "acq_date", ""),
			AcqTime:    stringField(values, col, "acq_time", ""),
			Satellite:  stringField(values, col, "satellite", ""),
			Instrument: stringField(values, col, "instrument", ""),
			DayNight:   stringField(values, col, "daynight", ""),
		})
	}

	return detections, skipped
}

// floatField parses a numeric column. An absent column or empty value
// is zero (unmeasured); a present but unparsable value is an error so
// the caller can skip the row.
func floatField(values []string, col map[string]int, name string) (float64, error) {
	idx, ok := col[name]
	if !ok || idx >= len(values) {
		return 0, nil
	}
	s := strings.TrimSpace(values[idx])
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func stringField(values []string, col map[string]int, name, def string) string {
	idx, ok := col[name]
	if !ok || idx >= len(values) {
		return def
	}
	s := strings.TrimSpace(values[idx])
	if s == "" {
		return def
	}
	return s
}
