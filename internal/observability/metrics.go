package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper feed service.
// Metrics are organized by subsystem: fetch runs, source requests, records,
// and promotions. All counters and histograms are registered via promauto
// for automatic registration with the default Prometheus registry.
type Metrics struct {
	// RunsStarted counts the total number of fetch cycles initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts the total number of fetch cycles that finished successfully.
	RunsCompleted prometheus.Counter

	// RunsFailed counts the total number of fetch cycles that ended in failure.
	RunsFailed prometheus.Counter

	// RunDuration observes the end-to-end duration of fetch cycles in seconds.
	RunDuration prometheus.Histogram

	// PagesFetched counts result pages retrieved from the upstream source.
	PagesFetched prometheus.Counter

	// PageFetchFailures counts result pages that could not be retrieved.
	PageFetchFailures prometheus.Counter

	// SourceRequestDuration observes upstream API request duration in seconds.
	SourceRequestDuration prometheus.Histogram

	// SourceRateLimited counts rate limit responses from the upstream source.
	SourceRateLimited prometheus.Counter

	// RecordsStored counts records written to the store (created or updated).
	RecordsStored prometheus.Counter

	// RecordsStoredByDomain counts stored records, labeled by domain tag.
	RecordsStoredByDomain *prometheus.CounterVec

	// RecordsUnchanged counts records whose stored content was already current.
	RecordsUnchanged prometheus.Counter

	// RecordsSkipped counts records rejected before storage, labeled by reason.
	RecordsSkipped *prometheus.CounterVec

	// RecordFailures counts per-record store failures.
	RecordFailures prometheus.Counter

	// PapersPromoted counts documents re-surfaced into the daily feed.
	PapersPromoted prometheus.Counter

	// PapersExpired counts documents removed by the retention sweep.
	PapersExpired prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Runs
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of fetch cycles started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of fetch cycles completed successfully",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of fetch cycles that failed",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of fetch cycles in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Source
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of result pages fetched from the source",
		}),
		PageFetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetch_failures_total",
			Help:      "Total number of result pages that failed to fetch",
		}),
		SourceRequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to the upstream source in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SourceRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from the source",
		}),

		// Records
		RecordsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Total number of records created or updated in the store",
		}),
		RecordsStoredByDomain: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_by_domain_total",
			Help:      "Total number of records stored by domain tag",
		}, []string{"domain"}),
		RecordsUnchanged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_unchanged_total",
			Help:      "Total number of records whose stored content was already current",
		}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Total number of records rejected before storage by reason",
		}, []string{"reason"}),
		RecordFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_failures_total",
			Help:      "Total number of per-record store failures",
		}),

		// Promotions and retention
		PapersPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_promoted_total",
			Help:      "Total number of documents re-surfaced into the daily feed",
		}),
		PapersExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_expired_total",
			Help:      "Total number of documents removed by the retention sweep",
		}),
	}
}

// RecordRunStarted records that a fetch cycle has started.
func (m *Metrics) RecordRunStarted() {
	m.RunsStarted.Inc()
}

// RecordRunCompleted records that a fetch cycle has completed.
func (m *Metrics) RecordRunCompleted(durationSeconds float64) {
	m.RunsCompleted.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunFailed records that a fetch cycle has failed.
func (m *Metrics) RecordRunFailed(durationSeconds float64) {
	m.RunsFailed.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordPageFetched records a successfully retrieved result page.
func (m *Metrics) RecordPageFetched(durationSeconds float64) {
	m.PagesFetched.Inc()
	m.SourceRequestDuration.Observe(durationSeconds)
}

// RecordPageFetchFailed records a result page that could not be retrieved.
func (m *Metrics) RecordPageFetchFailed() {
	m.PageFetchFailures.Inc()
}

// RecordSourceRateLimited records a rate limit response from the source.
func (m *Metrics) RecordSourceRateLimited() {
	m.SourceRateLimited.Inc()
}

// RecordStored records a stored record and its domain tags.
func (m *Metrics) RecordStored(domains []string) {
	m.RecordsStored.Inc()
	for _, d := range domains {
		m.RecordsStoredByDomain.WithLabelValues(d).Inc()
	}
}

// RecordUnchanged records an upsert that left the stored row untouched.
func (m *Metrics) RecordUnchanged() {
	m.RecordsUnchanged.Inc()
}

// RecordSkipped records a record rejected before storage.
func (m *Metrics) RecordSkipped(reason string) {
	m.RecordsSkipped.WithLabelValues(reason).Inc()
}

// RecordFailure records a per-record store failure.
func (m *Metrics) RecordFailure() {
	m.RecordFailures.Inc()
}

// RecordPromoted records documents re-surfaced into the daily feed.
func (m *Metrics) RecordPromoted(count int) {
	m.PapersPromoted.Add(float64(count))
}

// RecordExpired records documents removed by the retention sweep.
func (m *Metrics) RecordExpired(count int) {
	m.PapersExpired.Add(float64(count))
}
