package prometheus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	return NewAppMetrics(c), c
}

func TestNewAppMetrics_AllMetricsRegistered(t *testing.T) {
	m, _ := newTestAppMetrics(t)
	require.NotNil(t, m)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.LibrarySize)
	assert.NotNil(t, m.ElaborationsLoaded)
	assert.NotNil(t, m.FilterCandidates)
	assert.NotNil(t, m.PoseJobsTotal)
	assert.NotNil(t, m.EmbedFailures)
	assert.NotNil(t, m.BestScore)
	assert.NotNil(t, m.WorkersActive)
	assert.NotNil(t, m.DBQueryDuration)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestObserveHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.ObserveHTTPRequest("GET", "/api/v1/fragments", 200, 100*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="GET",path="/api/v1/fragments",status_code="200"} 1`)
	assert.Contains(t, output, `test_unit_http_request_duration_seconds_count{method="GET",path="/api/v1/fragments"} 1`)
}

func TestSetLibrarySize(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.SetLibrarySize("default", 42)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_library_fragments{library="default"} 42`)
}

func TestObserveElaborationLoad(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.ObserveElaborationLoad("link", 12, 30*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_elaborations_loaded_total{mode="link"} 12`)
	assert.Contains(t, output, `test_unit_elaboration_load_duration_seconds_count{mode="link"} 1`)
}

func TestObserveFilter(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.ObserveFilter("druglike", 9, 3, 5*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_filter_candidates_total{filter="druglike",verdict="kept"} 9`)
	assert.Contains(t, output, `test_unit_filter_candidates_total{filter="druglike",verdict="dropped"} 3`)
	assert.Contains(t, output, `test_unit_filter_duration_seconds_count{filter="druglike"} 1`)
}

func TestObservePose(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.ObservePose("ensemble", "posed", 2*time.Second)
	m.ObservePose("ensemble", "skipped", 100*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_pose_jobs_total{status="posed",strategy="ensemble"} 1`)
	assert.Contains(t, output, `test_unit_pose_jobs_total{status="skipped",strategy="ensemble"} 1`)
	assert.Contains(t, output, `test_unit_pose_duration_seconds_count{strategy="ensemble"} 2`)
}

func TestIncEmbedFailure(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.IncEmbedFailure("constrained")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_embed_failures_total{strategy="constrained"} 1`)
}

func TestObserveBestScore(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.ObserveBestScore("grow", 0.85)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_best_pose_score_bucket{mode="grow",le="0.9"} 1`)
	assert.Contains(t, output, `test_unit_best_pose_score_bucket{mode="grow",le="0.8"} 0`)
}

func TestWorkerGauges(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.WorkerStarted("ensemble")
	m.WorkerStarted("ensemble")
	m.WorkerFinished("ensemble")
	m.SetQueueDepth("fragelab.pose.jobs", 7)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_pose_workers_active{strategy="ensemble"} 1`)
	assert.Contains(t, output, `test_unit_pose_queue_depth{topic="fragelab.pose.jobs"} 7`)
}

func TestObserveDBQuery(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.ObserveDBQuery("postgres", "insert_run", 10*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_db_query_duration_seconds_count{db="postgres",operation="insert_run"} 1`)
}

func TestObserveCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.ObserveCacheAccess("redis", true)
	m.ObserveCacheAccess("redis", false)
	m.ObserveCacheAccess("redis", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_cache_hits_total{cache="redis"} 1`)
	assert.Contains(t, output, `test_unit_cache_misses_total{cache="redis"} 2`)
}

func TestSetHealthAndIncError(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.SetHealth("postgres", true)
	m.SetHealth("kafka", false)
	m.IncError("posing", "POSE_002")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_health_check_status{component="postgres"} 1`)
	assert.Contains(t, output, `test_unit_health_check_status{component="kafka"} 0`)
	assert.Contains(t, output, `test_unit_errors_total{code="POSE_002",component="posing"} 1`)
}

func TestNilAppMetrics_HelpersNoop(t *testing.T) {
	var m *AppMetrics

	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
		m.SetLibrarySize("default", 1)
		m.ObserveElaborationLoad("grow", 1, time.Millisecond)
		m.ObserveFilter("pains", 1, 0, time.Millisecond)
		m.ObservePose("ensemble", "posed", time.Millisecond)
		m.IncEmbedFailure("ensemble")
		m.ObserveBestScore("grow", 0.5)
		m.SetQueueDepth("t", 0)
		m.WorkerStarted("ensemble")
		m.WorkerFinished("ensemble")
		m.ObserveDBQuery("postgres", "select", time.Millisecond)
		m.ObserveCacheAccess("redis", true)
		m.ObserveMessageProcessed("t", time.Millisecond)
		m.SetHealth("postgres", true)
		m.IncError("posing", "POSE_002")
	})
}

func TestConcurrentMetricRecording(t *testing.T) {
	m, _ := newTestAppMetrics(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.ObserveHTTPRequest("GET", "/path", 200, time.Millisecond)
				m.ObservePose("ensemble", "posed", time.Millisecond)
			}
		}()
	}
	wg.Wait()
}
