package firms

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/firewatch-etl/internal/observability"
	"github.com/couchcryptid/firewatch-etl/internal/secrets"
)

const viirsHeader = "latitude,longitude,bright_ti4,scan,track,acq_date,acq_time,satellite,instrument,confidence,version,bright_ti5,frp,daynight"

func testFirmsClient(baseURL string) *Client {
	return NewClient(
		baseURL,
		5*time.Second,
		secrets.Static{secrets.MapKey: "test-key"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
	)
}

func TestClient_Fetch_Success(t *testing.T) {
	body := viirsHeader + "\n" +
		"34.05,-118.24,330.5,0.39,0.36,2024-04-26,1510,N,VIIRS,h,2.0NRT,290.1,18.7,D\n" +
		"-33.86,151.20,310.2,0.41,0.37,2024-04-26,0355,N,VIIRS,n,2.0NRT,285.4,5.3,N\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-key/VIIRS_SNPP_NRT/world/1", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := testFirmsClient(srv.URL)
	detections, err := c.Fetch(context.Background(), 1, "VIIRS_SNPP_NRT", "world")
	require.NoError(t, err)

	require.Len(t, detections, 2)
	assert.Equal(t, 34.05, detections[0].Latitude)
	assert.Equal(t, -118.24, detections[0].Longitude)
	assert.Equal(t, "h", detections[0].Confidence)
	assert.Equal(t, 18.7, detections[0].FRP)
	assert.Equal(t, "2024-04-26", detections[0].AcqDate)
	assert.Equal(t, "1510", detections[0].AcqTime)
	assert.Equal(t, "VIIRS", detections[0].Instrument)
	assert.Equal(t, "N", detections[1].DayNight)
}

func TestClient_Fetch_NoData(t *testing.T) {
	t.Run("404 is success with empty result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		detections, err := testFirmsClient(srv.URL).Fetch(context.Background(), 1, "MODIS_NRT", "world")
		require.NoError(t, err)
		assert.Empty(t, detections)
	})

	t.Run("empty body is success with empty result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		defer srv.Close()

		detections, err := testFirmsClient(srv.URL).Fetch(context.Background(), 1, "MODIS_NRT", "world")
		require.NoError(t, err)
		assert.Empty(t, detections)
	})
}

func TestClient_Fetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testFirmsClient(srv.URL).Fetch(context.Background(), 1, "MODIS_NRT", "world")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_Fetch_MissingMapKey(t *testing.T) {
	c := NewClient("http://unused", time.Second, secrets.Static{},
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	_, err := c.Fetch(context.Background(), 1, "MODIS_NRT", "world")
	assert.ErrorIs(t, err, ErrNoMapKey)
}

func TestParseCSV(t *testing.T) {
	t.Run("malformed latitude skips only that row", func(t *testing.T) {
		data := viirsHeader + "\n" +
			"34.05,-118.24,330.5,0.39,0.36,2024-04-26,1510,N,VIIRS,h,2.0NRT,290.1,18.7,D\n" +
			"abc,-118.24,330.5,0.39,0.36,2024-04-26,1510,N,VIIRS,h,2.0NRT,290.1,18.7,D\n" +
			"-33.86,151.20,310.2,0.41,0.37,2024-04-26,0355,N,VIIRS,n,2.0NRT,285.4,5.3,N\n" +
			"40.71,-74.00,305.0,0.40,0.36,2024-04-26,0612,N,VIIRS,l,2.0NRT,280.0,2.1,N\n"

		detections, skipped := ParseCSV(data)
		assert.Len(t, detections, 3)
		assert.Equal(t, 1, skipped)
	})

	t.Run("short rows skipped silently", func(t *testing.T) {
		data := viirsHeader + "\n" +
			"34.05,-118.24\n" +
			"-33.86,151.20,310.2,0.41,0.37,2024-04-26,0355,N,VIIRS,n,2.0NRT,285.4,5.3,N\n"

		detections, skipped := ParseCSV(data)
		assert.Len(t, detections, 1)
		assert.Equal(t, 0, skipped)
	})

	t.Run("out-of-range coordinates skipped", func(t *testing.T) {
		data := viirsHeader + "\n" +
			"91.0,-118.24,330.5,0.39,0.36,2024-04-26,1510,N,VIIRS,h,2.0NRT,290.1,18.7,D\n" +
			"34.05,-181.0,330.5,0.39,0.36,2024-04-26,1510,N,VIIRS,h,2.0NRT,290.1,18.7,D\n"

		detections, skipped := ParseCSV(data)
		assert.Empty(t, detections)
		assert.Equal(t, 2, skipped)
	})

	t.Run("unparsable frp skips the row", func(t *testing.T) {
		data := viirsHeader + "\n" +
			"34.05,-118.24,330.5,0.39,0.36,2024-04-26,1510,N,VIIRS,h,2.0NRT,290.1,not-a-number,D\n"

		detections, skipped := ParseCSV(data)
		assert.Empty(t, detections)
		assert.Equal(t, 1, skipped)
	})

	t.Run("empty numeric columns default to zero", func(t *testing.T) {
		data := "latitude,longitude,frp,confidence,acq_date,acq_time\n" +
			"34.05,-118.24,,,2024-04-26,1510\n"

		detections, skipped := ParseCSV(data)
		require.Len(t, detections, 1)
		assert.Equal(t, 0, skipped)
		assert.Equal(t, 0.0, detections[0].FRP)
		assert.Equal(t, "unknown", detections[0].Confidence)
	})

	t.Run("header only", func(t *testing.T) {
		detections, skipped := ParseCSV(viirsHeader)
		assert.Empty(t, detections)
		assert.Equal(t, 0, skipped)
	})

	t.Run("missing coordinate columns invalidates all rows", func(t *testing.T) {
		data := "frp,confidence\n18.7,h\n5.3,n\n"
		detections, skipped := ParseCSV(data)
		assert.Empty(t, detections)
		assert.Equal(t, 2, skipped)
	})
}
