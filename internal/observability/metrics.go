package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges shared
// by the fetcher, processor, and notifier services. Each binary only
// touches its own subset; registering the full set keeps the dashboards
// uniform.
type Metrics struct {
	// Fetch cycle metrics.
	FiresFetched    prometheus.Counter
	RowsSkipped     prometheus.Counter
	ChunksEnqueued  prometheus.Counter
	EnqueueErrors   prometheus.Counter
	FetchDuration   prometheus.Histogram
	FetcherRunning  prometheus.Gauge

	// Processing metrics.
	RecordsProcessed  prometheus.Counter
	RecordsStored     prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	RecordsSkipped    prometheus.Counter
	StoreErrors       prometheus.Counter
	DeliverySize      prometheus.Histogram
	DeliveryDuration  prometheus.Histogram
	ProcessorRunning  prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeDuration prometheus.Histogram

	// Change stream / alert metrics.
	ChangeEvents       *prometheus.CounterVec // labels: kind={INSERT,UPDATE,DELETE}
	AlertsPublished    prometheus.Counter
	AlertPublishErrors prometheus.Counter
	NotifierRunning    prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FiresFetched,
		m.RowsSkipped,
		m.ChunksEnqueued,
		m.EnqueueErrors,
		m.FetchDuration,
		m.FetcherRunning,
		m.RecordsProcessed,
		m.RecordsStored,
		m.DuplicatesSkipped,
		m.RecordsSkipped,
		m.StoreErrors,
		m.DeliverySize,
		m.DeliveryDuration,
		m.ProcessorRunning,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeDuration,
		m.ChangeEvents,
		m.AlertsPublished,
		m.AlertPublishErrors,
		m.NotifierRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so
// parallel tests don't hit "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FiresFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "fires_fetched_total",
			Help:      "Total detections parsed from the FIRMS feed.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "feed_rows_skipped_total",
			Help:      "Feed rows discarded for malformed or missing fields.",
		}),
		ChunksEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "chunks_enqueued_total",
			Help:      "Detection chunks handed to the work queue.",
		}),
		EnqueueErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "enqueue_errors_total",
			Help:      "Chunk enqueue attempts that failed and were skipped.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "fetch_cycle_duration_seconds",
			Help:      "Duration of a complete fetch-parse-enqueue cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetcherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firewatch",
			Name:      "fetcher_running",
			Help:      "1 when the fetch loop is active, 0 when shut down.",
		}),
		RecordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "records_processed_total",
			Help:      "Detections handled by the processor, stored or not.",
		}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "records_stored_total",
			Help:      "Fire records newly created in the store.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "duplicates_skipped_total",
			Help:      "Conditional writes that no-opped on an existing fire_id.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "records_skipped_total",
			Help:      "Detections skipped for missing coordinates.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "store_errors_total",
			Help:      "Non-duplicate store write failures.",
		}),
		DeliverySize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "delivery_size",
			Help:      "Detections per consumed delivery unit.",
			Buckets:   []float64{1, 5, 10, 20, 30, 50, 75, 100},
		}),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a complete delivery-unit processing cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ProcessorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firewatch",
			Name:      "processor_running",
			Help:      "1 when the processing loop is active, 0 when shut down.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "geocode_requests_total",
			Help:      "Reverse-geocode API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "geocode_cache_total",
			Help:      "Reverse-geocode cache lookups by result.",
		}, []string{"result"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "geocode_api_duration_seconds",
			Help:      "Reverse-geocode API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "change_events_total",
			Help:      "Store change-feed events by kind.",
		}, []string{"kind"}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "alerts_published_total",
			Help:      "Alerts delivered to the notification sink.",
		}),
		AlertPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "alert_publish_errors_total",
			Help:      "Alert publish attempts that failed.",
		}),
		NotifierRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firewatch",
			Name:      "notifier_running",
			Help:      "1 when the change-feed loop is active, 0 when shut down.",
		}),
	}
}
