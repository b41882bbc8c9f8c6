// Package fetcher orchestrates one side of the pipeline: pull a window
// of detections from the feed, partition them into queue-sized chunks,
// and hand the chunks to the work queue best-effort.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
)

// FeedSource retrieves raw detections for a trailing day window.
type FeedSource interface {
	Fetch(ctx context.Context, windowDays int, source, area string) ([]domain.RawDetection, error)
}

// Fetcher runs periodic fetch-partition-enqueue cycles.
type Fetcher struct {
	feed    FeedSource
	queue   domain.ChunkEnqueuer
	logger  *slog.Logger
	metrics *observability.Metrics

	windowDays int
	source     string
	area       string
	chunkSize  int

	ready atomic.Bool
}

// New creates a Fetcher. chunkSize <= 0 falls back to the queue's
// batching limit.
func New(feed FeedSource, queue domain.ChunkEnqueuer, logger *slog.Logger, metrics *observability.Metrics, windowDays int, source, area string, chunkSize int) *Fetcher {
	if chunkSize <= 0 || chunkSize > domain.ChunkSize {
		chunkSize = domain.ChunkSize
	}
	return &Fetcher{
		feed:       feed,
		queue:      queue,
		logger:     logger,
		metrics:    metrics,
		windowDays: windowDays,
		source:     source,
		area:       area,
		chunkSize:  chunkSize,
	}
}

// CycleResult summarizes one fetch cycle.
type CycleResult struct {
	FiresFound   int
	FiresQueued  int
	ChunksSent   int
	ChunksFailed int
}

// RunCycle executes one fetch-partition-enqueue cycle. A feed failure
// propagates (the next scheduled cycle retries); a chunk enqueue
// failure is logged and skipped without aborting the remaining chunks,
// so gaps are possible and accepted.
func (f *Fetcher) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()

	detections, err := f.feed.Fetch(ctx, f.windowDays, f.source, f.area)
	if err != nil {
		return CycleResult{}, err
	}

	result := CycleResult{FiresFound: len(detections)}
	if len(detections) == 0 {
		f.logger.Info("no active fires detected", "window_days", f.windowDays, "area", f.area)
		f.ready.Store(true)
		return result, nil
	}

	chunks := domain.PartitionDetections(detections, f.chunkSize, start.UTC())
	for _, chunk := range chunks {
		if err := f.queue.EnqueueChunk(ctx, chunk); err != nil {
			f.logger.Error("enqueue chunk failed, skipping",
				"ordinal", chunk.Ordinal,
				"size", len(chunk.Detections),
				"error", err,
			)
			f.metrics.EnqueueErrors.Inc()
			result.ChunksFailed++
			continue
		}
		f.metrics.ChunksEnqueued.Inc()
		result.ChunksSent++
		result.FiresQueued += len(chunk.Detections)
	}

	f.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	f.ready.Store(true)

	f.logger.Info("fetch cycle complete",
		"fires_found", result.FiresFound,
		"fires_queued", result.FiresQueued,
		"chunks_sent", result.ChunksSent,
		"chunks_failed", result.ChunksFailed,
	)
	return result, nil
}

// Run executes cycles on a fixed interval until the context is
// cancelled. The first cycle starts immediately. Cycle errors are
// logged, never fatal: the trigger cadence is the retry mechanism.
func (f *Fetcher) Run(ctx context.Context, interval time.Duration) error {
	f.logger.Info("fetcher started", "interval", interval, "source", f.source, "area", f.area)
	f.metrics.FetcherRunning.Set(1)
	defer f.metrics.FetcherRunning.Set(0)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := f.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Error("fetch cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			f.logger.Info("fetcher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// CheckReadiness returns nil once at least one cycle has completed.
func (f *Fetcher) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return errors.New("fetcher has not completed a cycle yet")
	}
	return nil
}
