package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type (
	// OtelMetrics records counters/histograms against the global OTEL MeterProvider.
	OtelMetrics struct {
		meter metric.Meter
	}

	// OtelTracer creates spans against the global OTEL TracerProvider.
	OtelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

// NewOtelMetrics constructs a Metrics recorder delegating to OTEL metrics.
// Configure the global MeterProvider (otel.SetMeterProvider) before use.
func NewOtelMetrics(instrumentationName string) Metrics {
	return &OtelMetrics{meter: otel.Meter(instrumentationName)}
}

// NewOtelTracer constructs a Tracer delegating to OTEL tracing. Configure the
// global TracerProvider (otel.SetTracerProvider) before use.
func NewOtelTracer(instrumentationName string) Tracer {
	return &OtelTracer{tracer: otel.Tracer(instrumentationName)}
}

// IncCounter increments a counter metric by value, tagged with labels (k1, v1, ...).
func (m *OtelMetrics) IncCounter(name string, value float64, labels ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(labelsToAttrs(labels)...))
}

// RecordTimer records a duration as a histogram in seconds.
func (m *OtelMetrics) RecordTimer(name string, d time.Duration, labels ...string) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(context.Background(), d.Seconds(), metric.WithAttributes(labelsToAttrs(labels)...))
}

// RecordGauge records a point-in-time value. OTEL has no synchronous gauge
// instrument, so this records into a "<name>_gauge" histogram as a fallback,
// matching the teacher's ClueMetrics convention.
func (m *OtelMetrics) RecordGauge(name string, value float64, labels ...string) {
	hist, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	hist.Record(context.Background(), value, metric.WithAttributes(labelsToAttrs(labels)...))
}

// Start creates a new span and returns the updated context and span handle.
func (t *OtelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, opts...)
	return newCtx, &otelSpan{span: span}
}

// Span retrieves the current span from the context.
func (t *OtelTracer) Span(ctx context.Context) Span {
	return &otelSpan{span: trace.SpanFromContext(ctx)}
}

func (s *otelSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s *otelSpan) AddEvent(name string, kv ...any) {
	s.span.AddEvent(name, trace.WithAttributes(kvToAttrs(kv)...))
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *otelSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}

func labelsToAttrs(labels []string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(labels); i += 2 {
		k := labels[i]
		v := ""
		if i+1 < len(labels) {
			v = labels[i+1]
		}
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func kvToAttrs(kv []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(kv); i += 2 {
		key, _ := kv[i].(string)
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		switch v := val.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		default:
			attrs = append(attrs, attribute.String(key, ""))
		}
	}
	return attrs
}
