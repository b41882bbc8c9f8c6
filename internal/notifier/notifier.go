// Package notifier watches the store's change feed and publishes one
// aggregated alert per delivery of newly inserted fire records.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
)

// maxDetailLines caps the per-country detail lines in an alert body;
// the remainder collapses into an overflow line.
const maxDetailLines = 5

// Notifier drains the change feed and turns INSERT events into alerts.
type Notifier struct {
	feed      domain.ChangeFeed
	publisher domain.AlertPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	batchSize    int
	pollInterval time.Duration

	ready atomic.Bool
}

// New creates a Notifier polling the feed every pollInterval for up to
// batchSize events.
func New(feed domain.ChangeFeed, publisher domain.AlertPublisher, logger *slog.Logger, metrics *observability.Metrics, batchSize int, pollInterval time.Duration) *Notifier {
	return &Notifier{
		feed:         feed,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

// HandleDelivery processes one ordered batch of change events. Only
// INSERT events trigger notification; UPDATE and DELETE are counted and
// otherwise ignored (the store is create-only, so they are unexpected
// but must not crash the notifier). Zero inserts means zero publishes.
// A publish failure propagates so the caller leaves the batch
// uncommitted for redelivery.
func (n *Notifier) HandleDelivery(ctx context.Context, events []domain.ChangeEvent) error {
	var inserts []domain.StoredFireRecord
	var updated, removed int

	for _, ev := range events {
		n.metrics.ChangeEvents.WithLabelValues(string(ev.Kind)).Inc()
		switch ev.Kind {
		case domain.ChangeInsert:
			inserts = append(inserts, domain.MaterializeRecord(ev.Image))
		case domain.ChangeUpdate:
			updated++
		case domain.ChangeDelete:
			removed++
		default:
			n.logger.Warn("unknown change kind, ignoring", "kind", ev.Kind, "seq", ev.Seq)
		}
	}

	n.logger.Info("change delivery classified",
		"new_fires", len(inserts),
		"updated_fires", updated,
		"removed_fires", removed,
	)

	if len(inserts) == 0 {
		return nil
	}

	alert := BuildAlert(inserts, time.Now().UTC())
	if err := n.publisher.Publish(ctx, alert); err != nil {
		n.metrics.AlertPublishErrors.Inc()
		return fmt.Errorf("publish alert: %w", err)
	}

	n.metrics.AlertsPublished.Inc()
	n.logger.Info("alert published", "subject", alert.Subject, "fire_count", alert.FireCount, "countries", alert.Countries)
	return nil
}

// BuildAlert aggregates inserted records into one alert. Records group
// by country; countries render in lexicographic order, and within a
// group records keep their arrival order. Each group shows at most
// maxDetailLines detail lines plus an overflow counter.
func BuildAlert(records []domain.StoredFireRecord, detectedAt time.Time) domain.Alert {
	byCountry := make(map[string][]domain.StoredFireRecord)
	for _, rec := range records {
		country := rec.LocationCountry
		if country == "" {
			country = domain.Unknown
		}
		byCountry[country] = append(byCountry[country], rec)
	}

	countries := make([]string, 0, len(byCountry))
	for country := range byCountry {
		countries = append(countries, country)
	}
	sort.Strings(countries)

	lines := []string{
		fmt.Sprintf("Firewatch has detected %d new active fire(s).", len(records)),
		"",
		"Summary by Country:",
		"---------------------",
	}

	for _, country := range countries {
		group := byCountry[country]
		lines = append(lines, "", fmt.Sprintf("%s: %d fire(s)", country, len(group)))

		for i, rec := range group {
			if i == maxDetailLines {
				break
			}
			lines = append(lines,
				fmt.Sprintf("  - %s, %s (%.4f, %.4f)", rec.LocationCity, rec.LocationState, rec.Latitude, rec.Longitude),
				fmt.Sprintf("    Confidence: %s, FRP: %.1f MW", rec.Confidence, rec.FRP),
			)
		}
		if overflow := len(group) - maxDetailLines; overflow > 0 {
			lines = append(lines, fmt.Sprintf("  ... and %d more", overflow))
		}
	}

	lines = append(lines,
		"",
		"---------------------",
		fmt.Sprintf("Detection time: %s", detectedAt.Format("2006-01-02 15:04:05 UTC")),
		"",
		"This is an automated alert from Firewatch.",
	)

	return domain.Alert{
		Subject:   fmt.Sprintf("Firewatch Alert: %d New Fire(s) Detected", len(records)),
		Body:      strings.Join(lines, "\n"),
		FireCount: len(records),
		Countries: countries,
	}
}

// Run polls the change feed until the context is cancelled. Events
// commit only after a successful delivery, so a failed publish leaves
// them pending for the next poll.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Info("notifier started", "batch_size", n.batchSize, "poll_interval", n.pollInterval)
	n.metrics.NotifierRunning.Set(1)
	defer n.metrics.NotifierRunning.Set(0)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("notifier stopping", "reason", ctx.Err())
			return nil
		default:
		}

		events, err := n.feed.NextBatch(ctx, n.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.logger.Error("change feed poll failed", "error", err)
			if !sleepWithContext(ctx, n.pollInterval) {
				return nil
			}
			continue
		}
		n.ready.Store(true)

		if len(events) == 0 {
			if !sleepWithContext(ctx, n.pollInterval) {
				return nil
			}
			continue
		}

		if err := n.HandleDelivery(ctx, events); err != nil {
			// Leave the batch uncommitted; the next poll redelivers it.
			n.logger.Error("delivery failed, will retry", "error", err, "events", len(events))
			if !sleepWithContext(ctx, n.pollInterval) {
				return nil
			}
			continue
		}

		if err := n.feed.Commit(ctx, events); err != nil {
			n.logger.Error("commit change events failed", "error", err, "events", len(events))
			if !sleepWithContext(ctx, n.pollInterval) {
				return nil
			}
		}
	}
}

// CheckReadiness returns nil once the feed has been polled successfully.
func (n *Notifier) CheckReadiness(_ context.Context) error {
	if !n.ready.Load() {
		return errors.New("change feed has not been polled yet")
	}
	return nil
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
