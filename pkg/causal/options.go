package causal

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/causal/pkg/causal/observability"
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger shared by the bus and graph.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder shared by the bus and graph.
// Default: observability.NoopMetrics{}
//
// Example:
//
//	tracker, err := causal.New(settings, causal.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(metrics observability.MetricsRecorder) Option {
	return func(t *Tracker) {
		if metrics != nil {
			t.metrics = metrics
		}
	}
}

// WithSpanManager enables a trace span per Run scope.
// Default: observability.NoopSpanManager{}
func WithSpanManager(spans observability.SpanManager) Option {
	return func(t *Tracker) {
		if spans != nil {
			t.spans = spans
		}
	}
}

// WithClock sets the time source for event timestamps and graph pruning.
// Default: time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}
