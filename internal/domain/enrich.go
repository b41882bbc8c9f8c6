package domain

import (
	"context"
	"log/slog"
)

// EnrichDetection attaches reverse-geocoded place names to a detection.
// Geocoding degrades gracefully: on any lookup failure, or when a field
// comes back empty, the field defaults to Unknown and the record
// survives. Enrichment never fails a record solely because geocoding
// failed.
func EnrichDetection(ctx context.Context, d RawDetection, geocoder Geocoder, logger *slog.Logger) EnrichedFire {
	fire := EnrichedFire{
		RawDetection:     d,
		LocationCity:     Unknown,
		LocationLocality: Unknown,
		LocationState:    Unknown,
		LocationCountry:  Unknown,
	}

	if geocoder == nil {
		return fire
	}

	result, err := geocoder.ReverseGeocode(ctx, d.Latitude, d.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", d.Latitude,
			"lon", d.Longitude,
			"error", err,
		)
		return fire
	}

	fire.LocationCity = orUnknown(result.City)
	fire.LocationLocality = orUnknown(result.Locality)
	fire.LocationState = orUnknown(result.PrincipalSubdivision)
	fire.LocationCountry = orUnknown(result.CountryName)
	return fire
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
