// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records analysis job outcomes through an OpenTelemetry meter
// exported on the Prometheus registry. A zero value is a no-op.
type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	unitCounter   otelmetric.Int64Counter
}

// New installs a global meter provider. On exporter failure it returns a
// no-op instance together with the error.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName), nil
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"analysis.jobs.processed",
		otelmetric.WithDescription("Analysis jobs that reached a terminal status"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"analysis.jobs.duration",
		otelmetric.WithDescription("Wall time from processing start to terminal status"),
		otelmetric.WithUnit("ms"),
	)
	unitCounter, _ := meter.Int64Counter(
		"analysis.units.processed",
		otelmetric.WithDescription("Work units analyzed"),
	)

	return &Observability{
		meterProvider: provider,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
		unitCounter:   unitCounter,
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()),
		otelmetric.WithAttributes(attribute.String("status", status)))
}

func (o *Observability) RecordUnit(ctx context.Context, outcome string) {
	if o == nil || o.unitCounter == nil {
		return
	}
	o.unitCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
