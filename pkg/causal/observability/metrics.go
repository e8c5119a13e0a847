package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records bus and graph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmit records an event accepted by the bus.
	RecordEmit(ctx context.Context, kind string)

	// RecordDrop records an event a subscriber could not take.
	RecordDrop(ctx context.Context, subscriberID string)

	// RecordDisconnect records a subscriber removed for falling behind.
	RecordDisconnect(ctx context.Context, subscriberID string)

	// RecordGraphAdd records an insertion and the resulting node count.
	RecordGraphAdd(ctx context.Context, kind string, size int)

	// RecordPrune records nodes removed by a pruning pass.
	RecordPrune(ctx context.Context, removed int, size int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	emitted     metric.Int64Counter
	dropped     metric.Int64Counter
	disconnects metric.Int64Counter
	added       metric.Int64Counter
	pruned      metric.Int64Counter
	graphSize   metric.Int64Gauge
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("causal")

	emitted, err := meter.Int64Counter("causal.bus.emitted",
		metric.WithDescription("Number of events emitted on the bus"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("causal.bus.dropped",
		metric.WithDescription("Number of deliveries dropped for slow subscribers"),
	)
	if err != nil {
		return nil, err
	}

	disconnects, err := meter.Int64Counter("causal.bus.disconnects",
		metric.WithDescription("Number of subscribers disconnected for falling behind"),
	)
	if err != nil {
		return nil, err
	}

	added, err := meter.Int64Counter("causal.graph.added",
		metric.WithDescription("Number of events indexed by the graph"),
	)
	if err != nil {
		return nil, err
	}

	pruned, err := meter.Int64Counter("causal.graph.pruned",
		metric.WithDescription("Number of nodes removed by pruning"),
	)
	if err != nil {
		return nil, err
	}

	graphSize, err := meter.Int64Gauge("causal.graph.size",
		metric.WithDescription("Current number of nodes in the graph"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		emitted:     emitted,
		dropped:     dropped,
		disconnects: disconnects,
		added:       added,
		pruned:      pruned,
		graphSize:   graphSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEmit records an emitted event.
func (m *otelMetrics) RecordEmit(ctx context.Context, kind string) {
	m.emitted.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDrop records a dropped delivery.
func (m *otelMetrics) RecordDrop(ctx context.Context, subscriberID string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("subscriber_id", subscriberID)))
}

// RecordDisconnect records a disconnected subscriber.
func (m *otelMetrics) RecordDisconnect(ctx context.Context, subscriberID string) {
	m.disconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("subscriber_id", subscriberID)))
}

// RecordGraphAdd records a graph insertion.
func (m *otelMetrics) RecordGraphAdd(ctx context.Context, kind string, size int) {
	m.added.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	m.graphSize.Record(ctx, int64(size))
}

// RecordPrune records a pruning pass.
func (m *otelMetrics) RecordPrune(ctx context.Context, removed int, size int) {
	m.pruned.Add(ctx, int64(removed))
	m.graphSize.Record(ctx, int64(size))
}
