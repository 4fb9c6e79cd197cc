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

// Observability records wizard activity through an OpenTelemetry meter
// exported to the default Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	stepSaves     otelmetric.Int64Counter
	stepDuration  otelmetric.Float64Histogram
	jobCounter    otelmetric.Int64Counter
}

// New builds the meter. On exporter failure it returns a disabled instance
// whose recorders are no-ops.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	stepSaves, _ := meter.Int64Counter(
		"prereport.step.saves",
		otelmetric.WithDescription("Number of step saves"),
	)
	stepDuration, _ := meter.Float64Histogram(
		"prereport.step.save.duration",
		otelmetric.WithDescription("Step save duration"),
		otelmetric.WithUnit("ms"),
	)
	jobCounter, _ := meter.Int64Counter(
		"prereport.jobs.processed",
		otelmetric.WithDescription("Number of review jobs processed"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		stepSaves:     stepSaves,
		stepDuration:  stepDuration,
		jobCounter:    jobCounter,
	}, nil
}

// NewNoop returns an instance that records nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordStepSave(ctx context.Context, leadType string, step int, duration time.Duration, status string) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("lead_type", leadType),
		attribute.Int("step", step),
		attribute.String("status", status),
	)
	if o.stepSaves != nil {
		o.stepSaves.Add(ctx, 1, attrs)
	}
	if o.stepDuration != nil {
		o.stepDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
