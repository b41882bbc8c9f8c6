// Package domain models NASA FIRMS active-fire detections.
//
// # Data Source
//
// Detections originate from the NASA FIRMS area API
// (https://firms.modaps.eosdis.nasa.gov/api/area/), which serves CSV
// snapshots of satellite thermal anomalies for a trailing day window.
// Supported sources include VIIRS_SNPP_NRT, VIIRS_NOAA20_NRT, and
// MODIS_NRT. The fetcher service pulls one window per cycle, parses the
// CSV, and enqueues validated detections in chunks of at most ten.
//
// # FIRMS Data Conventions
//
// Coordinates:
//
//	WGS-84 decimal degrees. Latitude in [-90, 90], longitude in
//	[-180, 180]. Rows with unparsable or out-of-range coordinates are
//	discarded during parsing.
//
// Acquisition time:
//
//	acq_date is a calendar date string ("2024-04-26"); acq_time is a
//	4-digit 24-hour clock string in the feed's timezone ("1510").
//	Three-digit values appear for early-morning overpasses ("0730" may
//	arrive as "730"); both are kept verbatim because they participate
//	in identity derivation, not arithmetic.
//
// Confidence:
//
//	MODIS reports a 0-100 integer; VIIRS reports the categories
//	"l"/"n"/"h" (low/nominal/high). Kept as a free-text string.
//
// FRP:
//
//	Fire radiative power in megawatts, a satellite-derived intensity
//	measure. Zero when unmeasured.
//
// # Enrichment
//
// Each detection is enriched with reverse-geocoded place names (city,
// locality, country, principal subdivision). The sentinel "Unknown" is
// a semantic default, not an absence marker: downstream alert grouping
// keys on it literally, so a failed lookup still produces a storable,
// groupable record.
//
// # ID Generation
//
// Fire IDs are deterministic: coordinates joined with the acquisition
// date and time. Reprocessing the same detection any number of times
// derives the same ID, which is what makes at-least-once queue delivery
// safe against the store's create-if-absent write. See [DeriveFireID].
package domain
