package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/labtrack/lims"

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	ResultsCreated     metric.Int64Counter
	StatusTransitions  metric.Int64Counter
	BillingTransitions metric.Int64Counter
	AuditFailures      metric.Int64Counter
	AuditSubscribers   metric.Int64UpDownCounter
	AuthEvents         metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing, metrics export and runtime metrics
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		GetLogger().Warn().Err(err).Msg("runtime metrics disabled")
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics against the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	resultsCreated, err := meter.Int64Counter(
		"lims.results.created",
		metric.WithDescription("Test results created, by section and billing mode"),
	)
	if err != nil {
		return nil, err
	}

	statusTransitions, err := meter.Int64Counter(
		"lims.results.status_transitions",
		metric.WithDescription("Result pipeline transitions, by target status"),
	)
	if err != nil {
		return nil, err
	}

	billingTransitions, err := meter.Int64Counter(
		"lims.billing.transitions",
		metric.WithDescription("Billing entry status changes, by target status"),
	)
	if err != nil {
		return nil, err
	}

	auditFailures, err := meter.Int64Counter(
		"lims.audit.failures",
		metric.WithDescription("Audit entries that could not be stored or published"),
	)
	if err != nil {
		return nil, err
	}

	auditSubscribers, err := meter.Int64UpDownCounter(
		"lims.audit.subscribers",
		metric.WithDescription("Live audit log subscriptions"),
	)
	if err != nil {
		return nil, err
	}

	authEvents, err := meter.Int64Counter(
		"lims.auth.events",
		metric.WithDescription("Staff sign-ins and sign-outs"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:       requestCount,
		RequestDuration:    requestDuration,
		ResultsCreated:     resultsCreated,
		StatusTransitions:  statusTransitions,
		BillingTransitions: billingTransitions,
		AuditFailures:      auditFailures,
		AuditSubscribers:   auditSubscribers,
		AuthEvents:         authEvents,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records an HTTP request
func (m *Metrics) RecordRequestMetric(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.RequestCount.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordResultCreated counts a new test result
func (m *Metrics) RecordResultCreated(ctx context.Context, section string, component bool) {
	if m == nil {
		return
	}
	m.ResultsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lims.section", section),
		attribute.Bool("lims.component", component),
	))
}

// RecordStatusTransition counts a result pipeline transition
func (m *Metrics) RecordStatusTransition(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("lims.status", to)))
}

// RecordBillingTransition counts a billing status change
func (m *Metrics) RecordBillingTransition(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.BillingTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("lims.billing_status", to)))
}

// RecordAuditFailure counts a swallowed audit failure
func (m *Metrics) RecordAuditFailure(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.AuditFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("lims.audit_stage", stage)))
}

// RecordAuditSubscribers adjusts the live subscriber gauge by delta
func (m *Metrics) RecordAuditSubscribers(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.AuditSubscribers.Add(ctx, delta)
}

// RecordAuthEvent counts a sign-in or sign-out
func (m *Metrics) RecordAuthEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.AuthEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("lims.auth_event", eventType)))
}
