package domain

import "time"

// Unknown is the sentinel for location fields the geocoder could not
// resolve. It is a real value, not an absence marker: alert aggregation
// groups on it literally.
const Unknown = "Unknown"

// RawDetection is one satellite observation parsed from a FIRMS CSV row.
// It exists only between a fetch cycle and the enqueue of its chunk.
type RawDetection struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Brightness float64 `json:"brightness"`
	Confidence string  `json:"confidence"`
	FRP        float64 `json:"frp"`
	AcqDate    string  `json:"acq_date"`
	AcqTime    string  `json:"acq_time"`
	Satellite  string  `json:"satellite"`
	Instrument string  `json:"instrument"`
	DayNight   string  `json:"daynight"`
}

// HasCoordinates reports whether the detection carries a usable
// coordinate pair. The (0,0) pair doubles as the absence marker; FIRMS
// does not report open-ocean Null Island fires.
func (d RawDetection) HasCoordinates() bool {
	return d.Latitude != 0 || d.Longitude != 0
}

// EnrichedFire is a detection plus reverse-geocoded place names. Every
// location field defaults to Unknown when the lookup fails or returns
// no match.
type EnrichedFire struct {
	RawDetection

	LocationCity     string `json:"location_city"`
	LocationLocality string `json:"location_locality"`
	LocationState    string `json:"location_state"`
	LocationCountry  string `json:"location_country"`
}

// StoredFireRecord is the durable unit persisted by the store. Records
// are create-only: once written under a fire_id they are never updated.
type StoredFireRecord struct {
	EnrichedFire

	FireID          string `json:"fire_id"`
	IngestTimestamp int64  `json:"ingest_timestamp"` // seconds since epoch at enrichment time
	CreatedAt       string `json:"created_at"`       // ISO-8601 wall clock of the write attempt
}

// DetectionChunk is one enqueued unit of work: up to ChunkSize
// detections tagged with their ordinal within the fetch cycle and the
// cycle's timestamp.
type DetectionChunk struct {
	Ordinal    int            `json:"ordinal"`
	FetchedAt  time.Time      `json:"fetched_at"`
	Detections []RawDetection `json:"fires"`
}

// ChunkSize is the queue's per-message batching limit.
const ChunkSize = 10

// PartitionDetections splits detections into chunks of at most size,
// assigning ordinals 0..n and stamping every chunk with fetchedAt.
func PartitionDetections(detections []RawDetection, size int, fetchedAt time.Time) []DetectionChunk {
	if size <= 0 {
		size = ChunkSize
	}
	chunks := make([]DetectionChunk, 0, (len(detections)+size-1)/size)
	for i := 0; i < len(detections); i += size {
		end := i + size
		if end > len(detections) {
			end = len(detections)
		}
		chunks = append(chunks, DetectionChunk{
			Ordinal:    i / size,
			FetchedAt:  fetchedAt,
			Detections: detections[i:end],
		})
	}
	return chunks
}

// Alert is one notification aggregating the new fires observed in a
// single change-feed delivery.
type Alert struct {
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	FireCount int      `json:"fire_count"`
	Countries []string `json:"countries"`
}
