package domain

import "context"

// GeocodeResult contains the place names returned by a reverse-geocode
// provider for a coordinate pair.
type GeocodeResult struct {
	City                 string
	Locality             string
	CountryName          string
	PrincipalSubdivision string
}

// Geocoder resolves coordinates to human-readable place names.
type Geocoder interface {
	// ReverseGeocode converts a coordinate pair to place details.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodeResult, error)
}
