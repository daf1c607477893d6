package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitMetricsIdempotent(t *testing.T) {
	// Repeated initialization must not double-register and panic.
	InitMetrics()
	InitMetrics()
}

func TestSampleRuntime(t *testing.T) {
	memoryUsage.Set(0)
	goroutines.Set(0)

	SampleRuntime()

	if got := testutil.ToFloat64(memoryUsage); got <= 0 {
		t.Errorf("memory usage gauge = %v, want > 0 after sampling", got)
	}
	if got := testutil.ToFloat64(goroutines); got <= 0 {
		t.Errorf("goroutine gauge = %v, want > 0 after sampling", got)
	}
}

func TestStartRuntimeSamplerTakesInitialSample(t *testing.T) {
	memoryUsage.Set(0)
	goroutines.Set(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRuntimeSampler(ctx, time.Hour)

	if got := testutil.ToFloat64(goroutines); got <= 0 {
		t.Errorf("goroutine gauge = %v, want initial sample before first tick", got)
	}
}

func TestRecordArtifactWriteCountsBytesOnlyOnSuccess(t *testing.T) {
	before := testutil.ToFloat64(artifactBytesWritten.WithLabelValues("html"))

	RecordArtifactWrite("html", "ok", 100, time.Millisecond)
	RecordArtifactWrite("html", "error", 100, time.Millisecond)

	after := testutil.ToFloat64(artifactBytesWritten.WithLabelValues("html"))
	if after-before != 100 {
		t.Errorf("bytes counter grew by %v, want 100 (failed writes excluded)", after-before)
	}
}

func TestHealthCheckerStorageFailure(t *testing.T) {
	checker := &HealthChecker{checks: make(map[string]*HealthCheck)}
	checker.RegisterCheck(PingCheck())
	checker.RegisterCheck(StorageCheck(func(ctx context.Context) error {
		return errors.New("bucket unreachable")
	}))

	resp := checker.Check(context.Background())
	if resp.Status != HealthStatusUnhealthy {
		t.Errorf("Status = %v, want %v when the critical storage check fails", resp.Status, HealthStatusUnhealthy)
	}
	if resp.Checks["storage"].Status != HealthStatusUnhealthy {
		t.Errorf("storage check status = %v, want %v", resp.Checks["storage"].Status, HealthStatusUnhealthy)
	}
	if resp.Checks["ping"].Status != HealthStatusHealthy {
		t.Errorf("ping check status = %v, want %v", resp.Checks["ping"].Status, HealthStatusHealthy)
	}
}

func TestHealthCheckerStorageHealthy(t *testing.T) {
	checker := &HealthChecker{checks: make(map[string]*HealthCheck)}
	checker.RegisterCheck(StorageCheck(func(ctx context.Context) error { return nil }))

	resp := checker.Check(context.Background())
	if resp.Status != HealthStatusHealthy {
		t.Errorf("Status = %v, want %v", resp.Status, HealthStatusHealthy)
	}
}

func TestMetricsHandlerServes(t *testing.T) {
	InitMetrics()
	SampleRuntime()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	MetricsHandler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("GET /metrics returned empty body")
	}
}
