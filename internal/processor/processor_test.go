package processor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
	"github.com/couchcryptid/firewatch-etl/internal/processor"
)

// --- mocks ---

// memStore is an in-memory FireStore with the same conditional-create
// semantics as the real one: first write wins, later writes no-op.
type memStore struct {
	mu      sync.Mutex
	records map[string]domain.StoredFireRecord
	failFor func(rec domain.StoredFireRecord) error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.StoredFireRecord)}
}

func (s *memStore) CreateIfAbsent(_ context.Context, rec domain.StoredFireRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor != nil {
		if err := s.failFor(rec); err != nil {
			return false, err
		}
	}
	if _, exists := s.records[rec.FireID]; exists {
		return false, nil
	}
	s.records[rec.FireID] = rec
	return true, nil
}

type staticGeocoder struct {
	result domain.GeocodeResult
	err    error
}

func (g staticGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodeResult, error) {
	return g.result, g.err
}

type mockExtractor struct {
	deliveries [][]domain.QueuedChunk
	index      int
}

func (m *mockExtractor) ExtractDelivery(ctx context.Context, _ int) ([]domain.QueuedChunk, error) {
	if m.index >= len(m.deliveries) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d := m.deliveries[m.index]
	m.index++
	return d, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chunkOf(ordinal int, detections ...domain.RawDetection) domain.QueuedChunk {
	return domain.QueuedChunk{
		Chunk: domain.DetectionChunk{
			Ordinal:    ordinal,
			FetchedAt:  time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC),
			Detections: detections,
		},
	}
}

func detectionAt(lat, lon float64) domain.RawDetection {
	return domain.RawDetection{
		Latitude:  lat,
		Longitude: lon,
		AcqDate:   "2024-04-26",
		AcqTime:   "1510",
		FRP:       7.5,
	}
}

func newProcessor(store domain.FireStore, geo domain.Geocoder) *processor.Processor {
	return processor.New(nil, geo, store, testLogger(), observability.NewMetricsForTesting(), 10)
}

// --- tests ---

func TestProcessDelivery_StoresAndEnriches(t *testing.T) {
	store := newMemStore()
	geo := staticGeocoder{result: domain.GeocodeResult{
		City: "Sacramento", CountryName: "United States of America", PrincipalSubdivision: "California",
	}}
	p := newProcessor(store, geo)

	report := p.ProcessDelivery(context.Background(), []domain.QueuedChunk{
		chunkOf(0, detectionAt(38.58, -121.49), detectionAt(39.16, -121.59)),
	})

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 0, report.ErrorCount)
	assert.Equal(t, http.StatusOK, report.Code())
	assert.Len(t, store.records, 2)
	for _, rec := range store.records {
		assert.Equal(t, "Sacramento", rec.LocationCity)
		assert.Equal(t, domain.Unknown, rec.LocationLocality)
	}
}

func TestProcessDelivery_IdempotentUnderRedelivery(t *testing.T) {
	store := newMemStore()
	p := newProcessor(store, staticGeocoder{})

	delivery := []domain.QueuedChunk{
		chunkOf(0, detectionAt(38.58, -121.49), detectionAt(39.16, -121.59)),
	}

	first := p.ProcessDelivery(context.Background(), delivery)
	assert.Equal(t, 2, first.Stored)
	assert.Equal(t, 0, first.Duplicates)

	// Redeliver the same chunk: same final store state, no errors.
	for range 3 {
		again := p.ProcessDelivery(context.Background(), delivery)
		assert.Equal(t, 0, again.Stored)
		assert.Equal(t, 2, again.Duplicates)
		assert.Equal(t, 0, again.ErrorCount)
		assert.Equal(t, http.StatusOK, again.Code())
	}
	assert.Len(t, store.records, 2)
}

func TestProcessDelivery_GeocodeFailureStillStores(t *testing.T) {
	store := newMemStore()
	p := newProcessor(store, staticGeocoder{err: errors.New("geocode timeout")})

	report := p.ProcessDelivery(context.Background(), []domain.QueuedChunk{
		chunkOf(0, detectionAt(38.58, -121.49)),
	})

	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 0, report.ErrorCount)
	require.Len(t, store.records, 1)
	for _, rec := range store.records {
		assert.Equal(t, domain.Unknown, rec.LocationCity)
		assert.Equal(t, domain.Unknown, rec.LocationLocality)
		assert.Equal(t, domain.Unknown, rec.LocationState)
		assert.Equal(t, domain.Unknown, rec.LocationCountry)
	}
}

func TestProcessDelivery_MissingCoordinatesSkipped(t *testing.T) {
	store := newMemStore()
	p := newProcessor(store, staticGeocoder{})

	report := p.ProcessDelivery(context.Background(), []domain.QueuedChunk{
		chunkOf(0, domain.RawDetection{AcqDate: "2024-04-26", AcqTime: "1510"}, detectionAt(38.58, -121.49)),
	})

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Stored)
	assert.Len(t, store.records, 1)
}

func TestProcessDelivery_PartialSuccess(t *testing.T) {
	store := newMemStore()
	// Two specific records fail with a non-duplicate store error.
	store.failFor = func(rec domain.StoredFireRecord) error {
		if rec.Latitude == 31 || rec.Latitude == 32 {
			return errors.New("provisioned throughput exceeded")
		}
		return nil
	}
	p := newProcessor(store, staticGeocoder{})

	detections := make([]domain.RawDetection, 10)
	for i := range detections {
		detections[i] = detectionAt(float64(30+i), -100)
	}

	report := p.ProcessDelivery(context.Background(), []domain.QueuedChunk{chunkOf(0, detections...)})

	assert.Equal(t, 10, report.Processed)
	assert.Equal(t, 8, report.Stored)
	assert.Equal(t, 2, report.ErrorCount)
	require.Len(t, report.ErrorDetails, 2)
	assert.Equal(t, http.StatusMultiStatus, report.Code())
	assert.Contains(t, report.ErrorDetails[0].Error, "throughput")
	assert.Len(t, store.records, 8)
}

func TestProcessDelivery_ErrorDetailsCapped(t *testing.T) {
	store := newMemStore()
	store.failFor = func(domain.StoredFireRecord) error {
		return errors.New("persistent store outage")
	}
	p := newProcessor(store, staticGeocoder{})

	detections := make([]domain.RawDetection, 15)
	for i := range detections {
		detections[i] = detectionAt(float64(20+i), -100)
	}

	report := p.ProcessDelivery(context.Background(), []domain.QueuedChunk{chunkOf(0, detections...)})

	assert.Equal(t, 15, report.ErrorCount)
	assert.Len(t, report.ErrorDetails, 10)
	assert.Equal(t, 0, report.Stored)
}

func TestRun_ProcessesAndCommits(t *testing.T) {
	store := newMemStore()
	var committed []int64
	chunk := chunkOf(0, detectionAt(38.58, -121.49))
	chunk.Offset = 42
	chunk.Commit = func(context.Context) error {
		committed = append(committed, 42)
		return nil
	}

	ext := &mockExtractor{deliveries: [][]domain.QueuedChunk{{chunk}}}
	p := processor.New(ext, staticGeocoder{}, store, testLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Len(t, store.records, 1)
	assert.Equal(t, []int64{42}, committed)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestRun_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{}
	p := processor.New(ext, staticGeocoder{}, newMemStore(), testLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Error(t, p.CheckReadiness(context.Background()))
}
