// Package observability wires OpenTelemetry tracing and metrics for the dispatcher.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/apnshub/pkg/config"
)

const instrumentationName = "github.com/kart-io/apnshub"

// Failure reasons used as metric attributes.
const (
	ReasonNoConnection = "no_connection"
	ReasonExhausted    = "exhausted"
	ReasonCancelled    = "cancelled"
)

// Telemetry provides tracing and metrics. The zero value is not usable; use New or Noop.
type Telemetry struct {
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider

	transmitted      metric.Int64Counter
	failed           metric.Int64Counter
	failovers        metric.Int64Counter
	connectionEvents metric.Int64Counter
	sendDuration     metric.Float64Histogram
	inflight         metric.Int64UpDownCounter
}

// Option configures New.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider uses tp instead of building an OTLP exporter.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider uses mp instead of the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// New creates telemetry from cfg. When telemetry is disabled and no providers are
// given, the global (no-op by default) providers are used.
func New(cfg config.TelemetryConfig, opts ...Option) (*Telemetry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Telemetry{}

	tp := o.tracerProvider
	if tp == nil && cfg.Enabled && cfg.TracingEnabled {
		sdkTP, err := newOTLPTracerProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		t.traceProvider = sdkTP
		otel.SetTracerProvider(sdkTP)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		tp = sdkTP
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	t.tracer = tp.Tracer(instrumentationName, trace.WithSchemaURL(semconv.SchemaURL))

	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	t.meter = mp.Meter(instrumentationName, metric.WithSchemaURL(semconv.SchemaURL))
	if o.meterProvider != nil || (cfg.Enabled && cfg.MetricsEnabled) {
		if err := t.initMetrics(); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}
	return t, nil
}

// Noop returns telemetry that records nothing.
func Noop() *Telemetry {
	t, _ := New(config.TelemetryConfig{})
	return t
}

func newOTLPTracerProvider(cfg config.TelemetryConfig) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlptrace.New(context.Background(),
		otlptracehttp.NewClient(
			otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
			otlptracehttp.WithHeaders(cfg.OTLPHeaders),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	), nil
}

func (t *Telemetry) initMetrics() error {
	var err error

	if t.transmitted, err = t.meter.Int64Counter(
		"apnshub_notifications_transmitted_total",
		metric.WithDescription("Notifications accepted by a connection"),
	); err != nil {
		return err
	}
	if t.failed, err = t.meter.Int64Counter(
		"apnshub_notifications_failed_total",
		metric.WithDescription("Notifications that could not be delivered to a recipient"),
	); err != nil {
		return err
	}
	if t.failovers, err = t.meter.Int64Counter(
		"apnshub_failovers_total",
		metric.WithDescription("Transmissions re-routed to a lower priority connection"),
	); err != nil {
		return err
	}
	if t.connectionEvents, err = t.meter.Int64Counter(
		"apnshub_connection_events_total",
		metric.WithDescription("Connection lifecycle events by type"),
	); err != nil {
		return err
	}
	if t.sendDuration, err = t.meter.Float64Histogram(
		"apnshub_send_duration_seconds",
		metric.WithDescription("Duration of batch sends"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}
	if t.inflight, err = t.meter.Int64UpDownCounter(
		"apnshub_deliveries_inflight",
		metric.WithDescription("Deliveries waiting for a terminal outcome"),
	); err != nil {
		return err
	}
	return nil
}

// StartSend opens the span covering one batch send.
func (t *Telemetry) StartSend(ctx context.Context, batchID string, recipients int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "apnshub.send",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("apnshub.batch.id", batchID),
			attribute.Int("apnshub.recipients.count", recipients),
		),
	)
}

// EndSend records the batch duration and closes the span.
func (t *Telemetry) EndSend(ctx context.Context, span trace.Span, transmitted, failed int, d time.Duration) {
	span.SetAttributes(
		attribute.Int("apnshub.transmitted", transmitted),
		attribute.Int("apnshub.failed", failed),
	)
	if failed > 0 && transmitted == 0 {
		span.SetStatus(codes.Error, "no recipient transmitted")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if t.sendDuration != nil {
		t.sendDuration.Record(ctx, d.Seconds())
	}
	span.End()
}

// DeliveryStarted marks one recipient as in flight.
func (t *Telemetry) DeliveryStarted(ctx context.Context) {
	if t.inflight != nil {
		t.inflight.Add(ctx, 1)
	}
}

// RecordTransmitted records a successful delivery and ends one in-flight delivery.
func (t *Telemetry) RecordTransmitted(ctx context.Context, bundleID string) {
	if t.inflight != nil {
		t.inflight.Add(ctx, -1)
	}
	if t.transmitted != nil {
		t.transmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("bundle_id", bundleID)))
	}
}

// RecordFailed records a failed delivery. inflight says whether the recipient had
// been counted by DeliveryStarted.
func (t *Telemetry) RecordFailed(ctx context.Context, reason string, code int, inflight bool) {
	if inflight && t.inflight != nil {
		t.inflight.Add(ctx, -1)
	}
	if t.failed != nil {
		t.failed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.Int("code", code),
		))
	}
	trace.SpanFromContext(ctx).AddEvent("delivery failed", trace.WithAttributes(
		attribute.String("reason", reason),
		attribute.Int("code", code),
	))
}

// RecordFailover records one hop from one connection to the next.
func (t *Telemetry) RecordFailover(ctx context.Context, from, to int, code int) {
	if t.failovers != nil {
		t.failovers.Add(ctx, 1, metric.WithAttributes(
			attribute.Int("from", from),
			attribute.Int("to", to),
			attribute.Int("code", code),
		))
	}
	trace.SpanFromContext(ctx).AddEvent("failover", trace.WithAttributes(
		attribute.Int("from", from),
		attribute.Int("to", to),
		attribute.Int("code", code),
	))
}

// RecordConnectionEvent counts a connection lifecycle event.
func (t *Telemetry) RecordConnectionEvent(ctx context.Context, bundleID string, index int, event string) {
	if t.connectionEvents != nil {
		t.connectionEvents.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bundle_id", bundleID),
			attribute.Int("index", index),
			attribute.String("event", event),
		))
	}
}

// Shutdown flushes and stops the tracer provider created by New, if any.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.traceProvider != nil {
		return t.traceProvider.Shutdown(ctx)
	}
	return nil
}
