package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"video-transcriber/internal/config"
)

// TestSetupWithoutEndpointIsDisabled checks the no-op default.
func TestSetupWithoutEndpointIsDisabled(t *testing.T) {
	providers, err := Setup(context.Background(), config.TelemetryConfig{}, "test", "dev", nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if providers.Enabled() {
		t.Fatal("expected telemetry to be disabled")
	}
	if err := providers.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

// TestMetricsRecordRunAndStage checks instruments are exported.
func TestMetricsRecordRunAndStage(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := NewMetricsWithMeter(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsWithMeter() error = %v", err)
	}

	ctx := context.Background()
	metrics.RecordRunStart(ctx)
	metrics.RecordUpload(ctx, 1024)
	metrics.RecordStage(ctx, "extracting", "ok", 2*time.Second)
	metrics.RecordFailure(ctx, "transcription_error")
	metrics.RecordRunEnd(ctx, "medium", "failed", 3*time.Second)

	var data metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &data); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	names := map[string]bool{}
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	for _, want := range []string{
		"transcription.run.total",
		"transcription.run.duration",
		"transcription.run.active",
		"transcription.stage.duration",
		"transcription.failure.total",
		"transcription.upload.size",
	} {
		if !names[want] {
			t.Fatalf("metric %s not recorded; got %v", want, names)
		}
	}
}

// TestNilMetricsAreSafe checks recording on a nil receiver.
func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	ctx := context.Background()
	metrics.RecordRunStart(ctx)
	metrics.RecordRunEnd(ctx, "tiny", "done", time.Second)
	metrics.RecordStage(ctx, "transcribing", "ok", time.Second)
	metrics.RecordFailure(ctx, "x")
	metrics.RecordUpload(ctx, 1)
}

// TestSamplerFor checks rate boundaries.
func TestSamplerFor(t *testing.T) {
	if got := samplerFor(1).Description(); got != "AlwaysOnSampler" {
		t.Fatalf("rate 1 sampler = %s", got)
	}
	if got := samplerFor(0).Description(); got != "AlwaysOffSampler" {
		t.Fatalf("rate 0 sampler = %s", got)
	}
}
