package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	meterProvider *sdkmetric.MeterProvider

	// Meter creates instruments; it is a no-op meter until InitMetrics succeeds
	Meter metric.Meter = noop.NewMeterProvider().Meter(ServiceName)

	snapshotRows     atomic.Int64
	snapshotJourneys atomic.Int64
)

// History metrics
var (
	// QueryDuration measures aggregation query latency per operation
	QueryDuration metric.Float64Histogram

	// QueryErrors counts failed aggregation queries per operation
	QueryErrors metric.Int64Counter

	// LoadErrors counts input files that could not be loaded
	LoadErrors metric.Int64Counter

	// CollaboratorFallbacks counts requests that fell back to defaults
	// because a station, weather or model collaborator was unavailable
	CollaboratorFallbacks metric.Int64Counter
)

func init() {
	if err := initializeInstruments(); err != nil {
		slog.Error("Failed to initialize noop instruments", "error", err)
	}
}

// InitMetrics initializes OpenTelemetry metrics with the configured exporter.
// Returns a shutdown function that should be called on application exit.
func InitMetrics() (func(), error) {
	if !IsMetricsEnabled() {
		slog.Debug("OpenTelemetry metrics is disabled")
		return func() {}, nil
	}

	ctx := context.Background()
	cfg := GetExporterConfig(SignalMetrics)

	exporter, err := NewMetricExporter(ctx, cfg)
	if err != nil {
		slog.Warn("Failed to create OTLP metric exporter, using noop", "error", err)
		return func() {}, nil
	}

	res, err := NewResource()
	if err != nil {
		slog.Warn("Failed to create resource, using noop", "error", err)
		return func() {}, nil
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(60*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otelapi.SetMeterProvider(meterProvider)
	Meter = meterProvider.Meter(ServiceName)

	if err := initializeInstruments(); err != nil {
		slog.Error("Failed to initialize metric instruments", "error", err)
		return func() {}, nil
	}

	slog.Debug("OpenTelemetry metrics initialized",
		"endpoint", cfg.Endpoint,
		"protocol", cfg.Protocol,
	)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down meter provider", "error", err)
		}
	}, nil
}

func initializeInstruments() error {
	var err error

	QueryDuration, err = Meter.Float64Histogram(
		"history.query.duration",
		metric.WithDescription("Duration of history aggregation queries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return err
	}

	QueryErrors, err = Meter.Int64Counter(
		"history.query.errors",
		metric.WithDescription("Failed history aggregation queries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	LoadErrors, err = Meter.Int64Counter(
		"history.load.errors",
		metric.WithDescription("Input files that failed to load"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return err
	}

	CollaboratorFallbacks, err = Meter.Int64Counter(
		"collaborator.fallbacks",
		metric.WithDescription("Requests served with fallback values"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return err
	}

	_, err = Meter.Int64ObservableGauge(
		"history.snapshot.rows",
		metric.WithDescription("Segment rows in the loaded snapshot"),
		metric.WithUnit("{segment}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(snapshotRows.Load())
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = Meter.Int64ObservableGauge(
		"history.snapshot.journeys",
		metric.WithDescription("Distinct journeys in the loaded snapshot"),
		metric.WithUnit("{journey}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(snapshotJourneys.Load())
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = Meter.Int64ObservableGauge(
		"runtime.go.goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("{goroutine}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	)
	return err
}

// RecordQuery records the duration of one aggregation query and counts it
// as failed when err is non-nil
func RecordQuery(ctx context.Context, operation string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	QueryDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		QueryErrors.Add(ctx, 1, attrs)
	}
}

// RecordLoadErrors counts files that failed during a snapshot load
func RecordLoadErrors(ctx context.Context, kind string, n int) {
	if n <= 0 {
		return
	}
	LoadErrors.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordFallback counts a collaborator fallback
func RecordFallback(ctx context.Context, collaborator string) {
	CollaboratorFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("collaborator", collaborator)))
}

// SetSnapshotSize updates the snapshot gauges
func SetSnapshotSize(rows, journeys int64) {
	snapshotRows.Store(rows)
	snapshotJourneys.Store(journeys)
}

// SnapshotSize returns the last values passed to SetSnapshotSize
func SnapshotSize() (rows, journeys int64) {
	return snapshotRows.Load(), snapshotJourneys.Load()
}
