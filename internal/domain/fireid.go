package domain

import (
	"fmt"
	"strconv"
	"time"
)

// DeriveFireID produces the deterministic identity key for a detection.
//
// Primary policy: "{lat}_{lon}_{acqDate}_{acqTime}" when both the
// acquisition date and time are non-empty. Identical coordinates and
// acquisition stamps collapse to the same ID no matter how many times
// or through how many pipeline runs the detection is ingested; this is
// the sole deduplication mechanism.
//
// Fallback: "{lat}_{lon}_{ingestUnixSeconds}" when either acquisition
// field is empty. Known limitation: the fallback keys on ingest time,
// so the same acquisition-time-less detection redelivered at a
// different second stores a second row. Kept as-is.
func DeriveFireID(lat, lon float64, acqDate, acqTime string, ingest time.Time) string {
	if acqDate != "" && acqTime != "" {
		return fmt.Sprintf("%s_%s_%s_%s", formatCoord(lat), formatCoord(lon), acqDate, acqTime)
	}
	return fmt.Sprintf("%s_%s_%d", formatCoord(lat), formatCoord(lon), ingest.Unix())
}

// formatCoord renders a coordinate with its minimal decimal
// representation so the same float always yields the same key segment.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NewStoredRecord stamps an enriched fire with its identity and write
// metadata. IngestTimestamp is enrichment time, not acquisition time.
func NewStoredRecord(fire EnrichedFire) StoredFireRecord {
	now := clock.Now()
	return StoredFireRecord{
		EnrichedFire:    fire,
		FireID:          DeriveFireID(fire.Latitude, fire.Longitude, fire.AcqDate, fire.AcqTime, now),
		IngestTimestamp: now.Unix(),
		CreatedAt:       now.UTC().Format(time.RFC3339),
	}
}
