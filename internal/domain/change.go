package domain

import (
	"encoding/json"
	"strconv"
)

// ChangeKind classifies a row-level mutation observed on the store.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is one entry of the store's ordered change feed. Image is
// the post-image for INSERT/UPDATE and the pre-image for DELETE, in the
// store's wire representation: field values may arrive as JSON numbers
// or as their string renderings depending on how the row was written.
type ChangeEvent struct {
	Seq   int64
	Kind  ChangeKind
	Image map[string]any
}

// MaterializeRecord converts a change-event image into the
// StoredFireRecord shape. Numeric fields are parsed from whichever wire
// form they arrived in; missing fields default to the usual sentinels
// (Unknown for location fields, zero otherwise). Never errors; a
// malformed image yields a record of defaults.
func MaterializeRecord(image map[string]any) StoredFireRecord {
	return StoredFireRecord{
		EnrichedFire: EnrichedFire{
			RawDetection: RawDetection{
				Latitude:   wireFloat(image, "latitude"),
				Longitude:  wireFloat(image, "longitude"),
				Brightness: wireFloat(image, "brightness"),
				Confidence: wireString(image, "confidence", "unknown"),
				FRP:        wireFloat(image, "frp"),
				AcqDate:    wireString(image, "acq_date", ""),
				AcqTime:    wireString(image, "acq_time", ""),
				Satellite:  wireString(image, "satellite", ""),
				Instrument: wireString(image, "instrument", ""),
				DayNight:   wireString(image, "daynight", ""),
			},
			LocationCity:     wireString(image, "location_city", Unknown),
			LocationLocality: wireString(image, "location_locality", Unknown),
			LocationState:    wireString(image, "location_state", Unknown),
			LocationCountry:  wireString(image, "location_country", Unknown),
		},
		FireID:          wireString(image, "fire_id", ""),
		IngestTimestamp: int64(wireFloat(image, "ingest_timestamp")),
		CreatedAt:       wireString(image, "created_at", ""),
	}
}

func wireString(image map[string]any, key, def string) string {
	v, ok := image[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

func wireFloat(image map[string]any, key string) float64 {
	switch v := image[key].(type) {
	case float64:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
