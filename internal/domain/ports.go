package domain

import "context"

// FireStore persists fire records keyed by fire_id with create-only
// semantics. CreateIfAbsent returns (false, nil) when a record with the
// same fire_id already exists; the store's change feed fires only on
// actual inserts.
type FireStore interface {
	CreateIfAbsent(ctx context.Context, rec StoredFireRecord) (inserted bool, err error)
}

// ChangeFeed delivers the store's ordered stream of row-level changes.
// Events stay pending until committed, so an uncommitted delivery is
// redelivered on the next poll.
type ChangeFeed interface {
	// NextBatch returns up to max pending events in seq order. An empty
	// slice means nothing is pending.
	NextBatch(ctx context.Context, max int) ([]ChangeEvent, error)

	// Commit marks the given events consumed.
	Commit(ctx context.Context, events []ChangeEvent) error
}

// QueuedChunk is one chunk as delivered by the work queue, with enough
// position metadata for logging and a commit hook to acknowledge it.
type QueuedChunk struct {
	Chunk     DetectionChunk
	Topic     string
	Partition int
	Offset    int64
	Commit    func(ctx context.Context) error
}

// ChunkEnqueuer hands one detection chunk to the work queue.
type ChunkEnqueuer interface {
	EnqueueChunk(ctx context.Context, chunk DetectionChunk) error
}

// AlertPublisher delivers one alert to the notification sink. Publish
// failure must propagate: alerts are important enough that silent loss
// is not acceptable.
type AlertPublisher interface {
	Publish(ctx context.Context, alert Alert) error
}
