package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the pipeline.
type Metrics struct {
	runTotal      metric.Int64Counter
	runDuration   metric.Float64Histogram
	runActive     metric.Int64UpDownCounter
	stageDuration metric.Float64Histogram
	failureTotal  metric.Int64Counter
	uploadBytes   metric.Int64Histogram
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(instrumentationName))
}

// NewMetricsWithMeter creates instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	runTotal, err := meter.Int64Counter("transcription.run.total",
		metric.WithDescription("Total number of pipeline runs by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcription.run.total counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram("transcription.run.duration",
		metric.WithDescription("Duration of pipeline runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcription.run.duration histogram: %w", err)
	}

	runActive, err := meter.Int64UpDownCounter("transcription.run.active",
		metric.WithDescription("Number of pipeline runs in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcription.run.active gauge: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("transcription.stage.duration",
		metric.WithDescription("Duration of pipeline stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcription.stage.duration histogram: %w", err)
	}

	failureTotal, err := meter.Int64Counter("transcription.failure.total",
		metric.WithDescription("Total pipeline failures by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcription.failure.total counter: %w", err)
	}

	uploadBytes, err := meter.Int64Histogram("transcription.upload.size",
		metric.WithDescription("Size of accepted uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcription.upload.size histogram: %w", err)
	}

	return &Metrics{
		runTotal:      runTotal,
		runDuration:   runDuration,
		runActive:     runActive,
		stageDuration: stageDuration,
		failureTotal:  failureTotal,
		uploadBytes:   uploadBytes,
	}, nil
}

// RecordRunStart increments the active run count.
func (m *Metrics) RecordRunStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.runActive.Add(ctx, 1)
}

// RecordRunEnd decrements active runs and records the outcome.
func (m *Metrics) RecordRunEnd(ctx context.Context, model, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runActive.Add(ctx, -1)
	m.runTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("model", model),
	))
}

// RecordStage records the duration of one stage.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordFailure counts a failure by kind.
func (m *Metrics) RecordFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.failureTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordUpload records the size of an accepted upload.
func (m *Metrics) RecordUpload(ctx context.Context, size int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Record(ctx, size)
}
