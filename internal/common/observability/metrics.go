// Package observability exports OpenTelemetry instruments through the
// Prometheus registry alongside the promauto metrics.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"hazard-reporter/internal/common/logger"
)

type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	resolutionCounter  otelmetric.Int64Counter
	resolutionDuration otelmetric.Float64Histogram
	tierDuration       otelmetric.Float64Histogram
}

// New wires a Prometheus exporter. A failed exporter yields a no-op
// Observability so callers never need a nil check.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return &Observability{}
	}
	return NewWithReader(serviceName, exporter)
}

// NewWithReader builds the instruments against any metric reader. Tests use
// a manual reader.
func NewWithReader(serviceName string, reader metric.Reader) *Observability {
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	resolutionCounter, _ := meter.Int64Counter(
		"location.resolutions",
		otelmetric.WithDescription("Location resolutions by producing tier"),
	)

	resolutionDuration, _ := meter.Float64Histogram(
		"location.resolution.duration",
		otelmetric.WithDescription("End-to-end location resolution duration"),
		otelmetric.WithUnit("ms"),
	)

	tierDuration, _ := meter.Float64Histogram(
		"location.tier.duration",
		otelmetric.WithDescription("Duration of a single location tier attempt"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		resolutionCounter:  resolutionCounter,
		resolutionDuration: resolutionDuration,
		tierDuration:       tierDuration,
	}
}

// NewNoOp returns an Observability that records nothing.
func NewNoOp() *Observability {
	return &Observability{}
}

func (o *Observability) RecordResolution(ctx context.Context, tier string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("tier", tier))
	if o.resolutionCounter != nil {
		o.resolutionCounter.Add(ctx, 1, attrs)
	}
	if o.resolutionDuration != nil {
		o.resolutionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordTierAttempt(ctx context.Context, tier, outcome string, duration time.Duration) {
	if o.tierDuration != nil {
		o.tierDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("tier", tier),
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
