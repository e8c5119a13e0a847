// Package observability provides logging, metrics, and tracing hooks for
// the causal bus, graph, and tracker.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// NewLogger builds a slog logger writing to w. format is "json" or "text"
// (anything else is text).
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel converts "debug", "info", "warn", "error" to a slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogEmit logs an event accepted by the bus.
func LogEmit(logger *slog.Logger, eventID, kind, parentID string) {
	if logger == nil {
		return
	}
	logger.Debug("event emitted",
		slog.String("event_id", eventID),
		slog.String("kind", kind),
		slog.String("parent_id", parentID),
	)
}

// LogDrop logs an event a slow subscriber could not take.
func LogDrop(logger *slog.Logger, eventID, subscriberID string) {
	if logger == nil {
		return
	}
	logger.Warn("subscriber buffer full, event dropped",
		slog.String("event_id", eventID),
		slog.String("subscriber_id", subscriberID),
	)
}

// LogSubscriberDisconnect logs a subscriber removed for falling behind.
func LogSubscriberDisconnect(logger *slog.Logger, subscriberID string, dropped int64) {
	if logger == nil {
		return
	}
	logger.Warn("subscriber disconnected",
		slog.String("subscriber_id", subscriberID),
		slog.Int64("dropped", dropped),
	)
}

// LogPrune logs a pruning pass over the graph.
func LogPrune(logger *slog.Logger, removed, remaining int, cutoff time.Time, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("graph pruned",
		slog.Int("removed", removed),
		slog.Int("remaining", remaining),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogImport logs a document merged into the graph.
func LogImport(logger *slog.Logger, imported, total int) {
	if logger == nil {
		return
	}
	logger.Info("graph document imported",
		slog.Int("imported", imported),
		slog.Int("node_count", total),
	)
}

// LogScopeError logs a propagation scope that ended with an error.
func LogScopeError(logger *slog.Logger, scopeID, origin string, err error) {
	if logger == nil {
		return
	}
	logger.Error("scope failed",
		slog.String("scope_id", scopeID),
		slog.String("origin", origin),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
