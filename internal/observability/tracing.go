package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartDBSpan starts a span for local store operations
func StartDBSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("DB %s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SyncMetrics holds reconciliation metrics
type SyncMetrics struct {
	cycles        metric.Int64Counter
	uploads       metric.Int64Counter
	uploadErrors  metric.Int64Counter
	pendingGauge  metric.Int64UpDownCounter
	cycleDuration metric.Float64Histogram
}

// NewSyncMetrics creates the sync metric instruments
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.Meter(instrumentationName)

	cycles, err := meter.Int64Counter(
		"surveysync.sync.cycles",
		metric.WithDescription("Total number of sync cycles started"),
		metric.WithUnit("{cycles}"),
	)
	if err != nil {
		return nil, err
	}

	uploads, err := meter.Int64Counter(
		"surveysync.sync.uploads",
		metric.WithDescription("Total number of successful entity uploads"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	uploadErrors, err := meter.Int64Counter(
		"surveysync.sync.upload_errors",
		metric.WithDescription("Total number of failed entity uploads"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	pendingGauge, err := meter.Int64UpDownCounter(
		"surveysync.sync.pending",
		metric.WithDescription("Records currently awaiting upload"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	cycleDuration, err := meter.Float64Histogram(
		"surveysync.sync.cycle_duration",
		metric.WithDescription("Sync cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycles:        cycles,
		uploads:       uploads,
		uploadErrors:  uploadErrors,
		pendingGauge:  pendingGauge,
		cycleDuration: cycleDuration,
	}, nil
}

// RecordCycle records one completed sync cycle
func (m *SyncMetrics) RecordCycle(ctx context.Context, durationMs float64, interrupted bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("interrupted", interrupted),
	}
	m.cycles.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.cycleDuration.Record(ctx, durationMs, metric.WithAttributes(attrs...))
}

// RecordUpload records one entity upload attempt
func (m *SyncMetrics) RecordUpload(ctx context.Context, kind string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("entity.kind", kind),
	}
	if err != nil {
		m.uploadErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	m.uploads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// SetPending adjusts the pending-records gauge by delta
func (m *SyncMetrics) SetPending(ctx context.Context, delta int64) {
	m.pendingGauge.Add(ctx, delta)
}
