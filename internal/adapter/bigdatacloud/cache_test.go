package bigdatacloud

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
)

type countingGeocoder struct {
	calls  int
	result domain.GeocodeResult
	err    error
}

func (g *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodeResult, error) {
	g.calls++
	return g.result, g.err
}

func TestCachedGeocoder_HitSkipsInner(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodeResult{City: "Lisbon", CountryName: "Portugal"}}
	c := NewCachedGeocoder(inner, 10, testMetrics())

	for range 3 {
		result, err := c.ReverseGeocode(context.Background(), 38.72, -9.14)
		require.NoError(t, err)
		assert.Equal(t, "Lisbon", result.City)
	}
	assert.Equal(t, 1, inner.calls)

	// A different coordinate pair is a miss.
	_, err := c.ReverseGeocode(context.Background(), 41.15, -8.61)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_DoesNotCacheFailures(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("timeout")}
	c := NewCachedGeocoder(inner, 10, testMetrics())

	_, err := c.ReverseGeocode(context.Background(), 1, 2)
	require.Error(t, err)
	_, err = c.ReverseGeocode(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_DoesNotCacheUnresolved(t *testing.T) {
	inner := &countingGeocoder{} // empty result
	c := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = c.ReverseGeocode(context.Background(), 1, 2)
	_, _ = c.ReverseGeocode(context.Background(), 1, 2)
	assert.Equal(t, 2, inner.calls)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.GeocodeResult{City: "A"})
	c.put("b", domain.GeocodeResult{City: "B"})

	// Touch "a" so "b" is the eviction candidate.
	_, ok := c.get("a")
	require.True(t, ok)

	c.put("c", domain.GeocodeResult{City: "C"})

	_, ok = c.get("b")
	assert.False(t, ok)
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}
