package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName = "github.com/wolfeidau/sitepack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram
	OutputBytes      metric.Int64Histogram

	// Watch metrics
	RebuildsTotal  metric.Int64Counter
	RebuildRetries metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer for build spans
func Tracer() trace.Tracer {
	return otel.Tracer(meterName)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"sitepack.builds.total",
		metric.WithDescription("Total number of builds"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"sitepack.builds.errors.total",
		metric.WithDescription("Total number of failed builds"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"sitepack.builds.duration",
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)

	m.OutputBytes, _ = meter.Int64Histogram(
		"sitepack.builds.output.bytes",
		metric.WithDescription("Total bytes emitted by a build"),
		metric.WithUnit("By"),
	)

	m.RebuildsTotal, _ = meter.Int64Counter(
		"sitepack.watch.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{build}"),
	)

	m.RebuildRetries, _ = meter.Int64Counter(
		"sitepack.watch.rebuild_retries.total",
		metric.WithDescription("Total number of rebuild retries"),
		metric.WithUnit("{retry}"),
	)

	return m
}

// RecordBuild records the outcome of one build
func (m *Metrics) RecordBuild(ctx context.Context, mode string, elapsed time.Duration, outputBytes int64, err error) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))

	m.BuildsTotal.Add(ctx, 1, attrs)
	m.BuildDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	if err != nil {
		m.BuildErrorsTotal.Add(ctx, 1, attrs)
		return
	}
	m.OutputBytes.Record(ctx, outputBytes, attrs)
}
