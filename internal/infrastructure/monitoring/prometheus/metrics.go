package prometheus

import (
	"strconv"
	"time"
)

// Bucket layouts tuned to the pipeline's time scales.
var (
	// DefaultHTTPDurationBuckets covers interactive request latencies.
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	// DefaultStageDurationBuckets covers chemistry stages: a filter pass is
	// milliseconds, a 100-conformer pose run can take minutes.
	DefaultStageDurationBuckets = []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300, 600}

	// DefaultDBDurationBuckets covers store round-trips.
	DefaultDBDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}

	// ScoreBuckets spans the combined pose score range.
	ScoreBuckets = []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1}
)

// AppMetrics is the application metric set: everything the pipeline, its
// stores, and its surfaces record. Construct once at startup and inject; a
// nil *AppMetrics no-ops every helper so tests and minimal deployments need
// no registry.
type AppMetrics struct {
	// HTTP surface
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Library and elaboration loading
	LibrarySize         GaugeVec
	ElaborationsLoaded  CounterVec
	ElaborationDuration HistogramVec

	// Property filters
	FilterCandidates CounterVec
	FilterDuration   HistogramVec

	// Posing
	PoseJobsTotal CounterVec
	PoseDuration  HistogramVec
	EmbedFailures CounterVec
	BestScore     HistogramVec
	QueueDepth    GaugeVec
	WorkersActive GaugeVec

	// Stores and queue plumbing
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageProcessDuration HistogramVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// NewAppMetrics registers the full metric set on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Library / elaboration
	m.LibrarySize = collector.RegisterGauge("library_fragments", "Fragments in the loaded library", "library")
	m.ElaborationsLoaded = collector.RegisterCounter("elaborations_loaded_total", "Candidate structures loaded from elaboration sets", "mode")
	m.ElaborationDuration = collector.RegisterHistogram("elaboration_load_duration_seconds", "Elaboration set load duration", DefaultHTTPDurationBuckets, "mode")

	// Filters
	m.FilterCandidates = collector.RegisterCounter("filter_candidates_total", "Candidates seen by property filters", "filter", "verdict")
	m.FilterDuration = collector.RegisterHistogram("filter_duration_seconds", "Property filter pass duration", DefaultHTTPDurationBuckets, "filter")

	// Posing
	m.PoseJobsTotal = collector.RegisterCounter("pose_jobs_total", "Pose jobs by terminal status", "strategy", "status")
	m.PoseDuration = collector.RegisterHistogram("pose_duration_seconds", "Per-candidate pose duration", DefaultStageDurationBuckets, "strategy")
	m.EmbedFailures = collector.RegisterCounter("embed_failures_total", "Recoverable embedding failures", "strategy")
	m.BestScore = collector.RegisterHistogram("best_pose_score", "Best combined pose score per run", ScoreBuckets, "mode")
	m.QueueDepth = collector.RegisterGauge("pose_queue_depth", "Pose jobs waiting in the queue", "topic")
	m.WorkersActive = collector.RegisterGauge("pose_workers_active", "Pose workers currently executing", "strategy")

	// Stores / queue
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Store round-trip duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultStageDurationBuckets, "topic")

	// Health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Component health (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

// ── nil-safe recording helpers ──────────────────────────────────────────────
//
// Services hold a possibly-nil *AppMetrics and call these without guards.

// ObserveHTTPRequest records one completed HTTP request.
func (m *AppMetrics) ObserveHTTPRequest(method, path string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// SetLibrarySize records the loaded library's fragment count.
func (m *AppMetrics) SetLibrarySize(library string, n int) {
	if m == nil {
		return
	}
	m.LibrarySize.WithLabelValues(library).Set(float64(n))
}

// ObserveElaborationLoad records one elaboration set load.
func (m *AppMetrics) ObserveElaborationLoad(mode string, count int, d time.Duration) {
	if m == nil {
		return
	}
	m.ElaborationsLoaded.WithLabelValues(mode).Add(float64(count))
	m.ElaborationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveFilter records one filter pass over a candidate list.
func (m *AppMetrics) ObserveFilter(filter string, kept, dropped int, d time.Duration) {
	if m == nil {
		return
	}
	m.FilterCandidates.WithLabelValues(filter, "kept").Add(float64(kept))
	m.FilterCandidates.WithLabelValues(filter, "dropped").Add(float64(dropped))
	m.FilterDuration.WithLabelValues(filter).Observe(d.Seconds())
}

// ObservePose records one candidate's pose attempt with its terminal status
// ("posed", "skipped", "failed").
func (m *AppMetrics) ObservePose(strategy, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PoseJobsTotal.WithLabelValues(strategy, status).Inc()
	m.PoseDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// IncEmbedFailure counts one recoverable embedding failure.
func (m *AppMetrics) IncEmbedFailure(strategy string) {
	if m == nil {
		return
	}
	m.EmbedFailures.WithLabelValues(strategy).Inc()
}

// ObserveBestScore records a completed run's best combined score.
func (m *AppMetrics) ObserveBestScore(mode string, score float64) {
	if m == nil {
		return
	}
	m.BestScore.WithLabelValues(mode).Observe(score)
}

// SetQueueDepth records the pose queue backlog.
func (m *AppMetrics) SetQueueDepth(topic string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(topic).Set(float64(depth))
}

// WorkerStarted and WorkerFinished bracket one in-flight pose execution.
func (m *AppMetrics) WorkerStarted(strategy string) {
	if m == nil {
		return
	}
	m.WorkersActive.WithLabelValues(strategy).Inc()
}

// WorkerFinished marks one pose execution done.
func (m *AppMetrics) WorkerFinished(strategy string) {
	if m == nil {
		return
	}
	m.WorkersActive.WithLabelValues(strategy).Dec()
}

// ObserveDBQuery records one store round-trip.
func (m *AppMetrics) ObserveDBQuery(db, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(db, operation).Observe(d.Seconds())
}

// ObserveCacheAccess records a cache hit or miss.
func (m *AppMetrics) ObserveCacheAccess(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// ObserveMessageProcessed records one consumed queue message.
func (m *AppMetrics) ObserveMessageProcessed(topic string, d time.Duration) {
	if m == nil {
		return
	}
	m.MessageProcessDuration.WithLabelValues(topic).Observe(d.Seconds())
}

// SetHealth records a component health probe.
func (m *AppMetrics) SetHealth(component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

// IncError counts one error by component and application error code.
func (m *AppMetrics) IncError(component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
