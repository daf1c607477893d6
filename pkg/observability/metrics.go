package observability

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage metrics
	artifactWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtrail_artifact_writes_total",
			Help: "Total number of artifact write attempts",
		},
		[]string{"kind", "status"},
	)

	artifactWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webtrail_artifact_write_duration_seconds",
			Help:    "Artifact write duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	artifactBytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtrail_artifact_bytes_written_total",
			Help: "Total bytes written per artifact kind",
		},
		[]string{"kind"},
	)

	artifactReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtrail_artifact_reads_total",
			Help: "Total number of artifact read attempts",
		},
		[]string{"kind", "status"},
	)

	// Collection metrics
	stepsCollectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtrail_steps_collected_total",
			Help: "Total number of workflow steps captured",
		},
		[]string{"action"},
	)

	stepCollectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webtrail_step_collect_duration_seconds",
			Help:    "Step capture duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// Workflow metrics
	workflowSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtrail_workflow_sessions_total",
			Help: "Total number of workflow sessions run",
		},
		[]string{"workflow", "status"},
	)

	workflowSessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webtrail_workflow_session_duration_seconds",
			Help:    "Workflow session duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	datasetRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webtrail_dataset_records_total",
			Help: "Total number of dataset records materialized",
		},
	)

	// System metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "webtrail_active_sessions",
			Help: "Number of browser sessions currently running",
		},
	)

	memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "webtrail_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "webtrail_goroutines",
			Help: "Number of goroutines",
		},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			artifactWritesTotal,
			artifactWriteDuration,
			artifactBytesWritten,
			artifactReadsTotal,
			stepsCollectedTotal,
			stepCollectDuration,
			workflowSessionsTotal,
			workflowSessionDuration,
			datasetRecordsTotal,
			activeSessions,
			memoryUsage,
			goroutines,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordArtifactWrite records one artifact write attempt.
func RecordArtifactWrite(kind, status string, size int, duration time.Duration) {
	artifactWritesTotal.WithLabelValues(kind, status).Inc()
	artifactWriteDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if status == "ok" {
		artifactBytesWritten.WithLabelValues(kind).Add(float64(size))
	}
}

// RecordArtifactRead records one artifact read attempt.
func RecordArtifactRead(kind, status string) {
	artifactReadsTotal.WithLabelValues(kind, status).Inc()
}

// RecordStepCollected records one captured workflow step.
func RecordStepCollected(action string, duration time.Duration) {
	stepsCollectedTotal.WithLabelValues(action).Inc()
	stepCollectDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordWorkflowSession records one finished workflow session.
func RecordWorkflowSession(workflow, status string, duration time.Duration) {
	workflowSessionsTotal.WithLabelValues(workflow, status).Inc()
	workflowSessionDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// RecordDatasetRecords adds to the materialized record counter.
func RecordDatasetRecords(count int) {
	datasetRecordsTotal.Add(float64(count))
}

// SetActiveSessions sets the running browser session gauge
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// SetMemoryUsage sets the memory usage gauge
func SetMemoryUsage(bytes uint64) {
	memoryUsage.Set(float64(bytes))
}

// SetGoroutines sets the goroutines gauge
func SetGoroutines(count int) {
	goroutines.Set(float64(count))
}

// SampleRuntime refreshes the memory and goroutine gauges from the Go
// runtime.
func SampleRuntime() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	SetMemoryUsage(m.Alloc)
	SetGoroutines(runtime.NumGoroutine())
}

// StartRuntimeSampler samples the runtime gauges every interval until ctx is
// canceled. It takes an initial sample before returning so scrapes never see
// zeroed gauges.
func StartRuntimeSampler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	SampleRuntime()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				SampleRuntime()
			}
		}
	}()
}
