// Package processor consumes detection chunks from the work queue,
// enriches each detection with reverse-geocoded location fields, and
// performs the conditional create that makes redelivery idempotent.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
)

// maxErrorDetails caps the per-record error list embedded in a report.
const maxErrorDetails = 10

// DeliveryExtractor reads up to max queued chunks as one delivery unit.
type DeliveryExtractor interface {
	ExtractDelivery(ctx context.Context, max int) ([]domain.QueuedChunk, error)
}

// Processor runs the enrich-derive-store loop over delivery units.
type Processor struct {
	queue    DeliveryExtractor
	geocoder domain.Geocoder
	store    domain.FireStore
	logger   *slog.Logger
	metrics  *observability.Metrics

	batchSize int
	ready     atomic.Bool
}

// New creates a Processor. Pass a nil geocoder to run without
// enrichment (all location fields default to Unknown).
func New(queue DeliveryExtractor, geocoder domain.Geocoder, store domain.FireStore, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Processor {
	return &Processor{
		queue:     queue,
		geocoder:  geocoder,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// RecordError describes one record that failed a non-duplicate store
// write inside a delivery.
type RecordError struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	FireID    string  `json:"fire_id,omitempty"`
	Error     string  `json:"error"`
}

// Report is the partial-success summary for one delivery unit.
// Processed counts every record seen, stored or not; Skipped counts
// records dropped for missing coordinates; Duplicates counts
// conditional writes that no-opped.
type Report struct {
	Processed    int           `json:"processed"`
	Stored       int           `json:"stored"`
	Duplicates   int           `json:"duplicates"`
	Skipped      int           `json:"skipped"`
	ErrorCount   int           `json:"errors"`
	ErrorDetails []RecordError `json:"error_details,omitempty"`
}

// Code distinguishes a clean delivery from a partial success.
func (r Report) Code() int {
	if r.ErrorCount > 0 {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}

// ProcessDelivery handles one delivery unit. Records are processed in
// arrival order; a per-record failure never aborts its siblings, and a
// duplicate fire_id is success-with-skip. Reprocessing the same
// delivery any number of times leaves the store in the same state as
// processing it once.
func (p *Processor) ProcessDelivery(ctx context.Context, chunks []domain.QueuedChunk) Report {
	var report Report
	for _, qc := range chunks {
		p.logger.Debug("processing chunk",
			"ordinal", qc.Chunk.Ordinal,
			"fires", len(qc.Chunk.Detections),
			"fetched_at", qc.Chunk.FetchedAt,
		)
		for _, d := range qc.Chunk.Detections {
			p.processDetection(ctx, d, &report)
		}
	}
	return report
}

func (p *Processor) processDetection(ctx context.Context, d domain.RawDetection, report *Report) {
	report.Processed++
	p.metrics.RecordsProcessed.Inc()

	if !d.HasCoordinates() {
		p.logger.Warn("skipping detection with missing coordinates")
		p.metrics.RecordsSkipped.Inc()
		report.Skipped++
		return
	}

	fire := domain.EnrichDetection(ctx, d, p.geocoder, p.logger)
	rec := domain.NewStoredRecord(fire)

	inserted, err := p.store.CreateIfAbsent(ctx, rec)
	if err != nil {
		p.logger.Error("store write failed",
			"fire_id", rec.FireID,
			"lat", d.Latitude,
			"lon", d.Longitude,
			"error", err,
		)
		p.metrics.StoreErrors.Inc()
		report.ErrorCount++
		if len(report.ErrorDetails) < maxErrorDetails {
			report.ErrorDetails = append(report.ErrorDetails, RecordError{
				Latitude:  d.Latitude,
				Longitude: d.Longitude,
				FireID:    rec.FireID,
				Error:     err.Error(),
			})
		}
		return
	}
	if !inserted {
		p.logger.Debug("duplicate fire_id, skipping", "fire_id", rec.FireID)
		p.metrics.DuplicatesSkipped.Inc()
		report.Duplicates++
		return
	}

	p.metrics.RecordsStored.Inc()
	report.Stored++
	p.logger.Info("stored fire",
		"fire_id", rec.FireID,
		"city", rec.LocationCity,
		"state", rec.LocationState,
		"country", rec.LocationCountry,
	)
}

// Run executes the consume loop until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("processor started", "batch_size", p.batchSize)
	p.metrics.ProcessorRunning.Set(1)
	defer p.metrics.ProcessorRunning.Set(0)

	// Exponential backoff on extract failure: start at 200ms, double
	// each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("processor stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processOnce(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processOnce runs one extract-process-commit cycle. Returns false if
// the loop should stop.
func (p *Processor) processOnce(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	chunks, err := p.queue.ExtractDelivery(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract delivery failed", "error", err)
		return backoffOrStop(ctx, backoff, maxBackoff)
	}
	if len(chunks) == 0 {
		return ctx.Err() == nil
	}
	*backoff = 200 * time.Millisecond

	report := p.ProcessDelivery(ctx, chunks)
	p.metrics.DeliverySize.Observe(float64(report.Processed))
	p.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	// Offsets commit even on a partial success: per-record store errors
	// surface in the report, not through redelivery. Redelivery covers
	// crashes, and the conditional write makes that safe.
	for _, qc := range chunks {
		p.commit(ctx, qc)
	}

	p.ready.Store(true)
	p.logger.Info("delivery complete",
		"code", report.Code(),
		"processed", report.Processed,
		"stored", report.Stored,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"errors", report.ErrorCount,
	)
	return true
}

func (p *Processor) commit(ctx context.Context, qc domain.QueuedChunk) {
	if qc.Commit == nil {
		return
	}
	if err := qc.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", qc.Topic, "partition", qc.Partition, "offset", qc.Offset)
	}
}

// CheckReadiness returns nil once at least one delivery has been
// processed.
func (p *Processor) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("processor has not handled a delivery yet")
	}
	return nil
}

func backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	next := *backoff * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	*backoff = next
	return true
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
