package causal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/causal/pkg/causal/bus"
	"github.com/randalmurphal/causal/pkg/causal/config"
	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/graph"
	"github.com/randalmurphal/causal/pkg/causal/observability"
	"github.com/randalmurphal/causal/pkg/causal/propagate"
)

// ScopeMetadataKey marks the events Run emits for scope boundaries.
const ScopeMetadataKey = "causal.scope"

// Tracker owns one bus and one graph, and stamps emitted events with the
// active causality context. Every event it emits is indexed in the graph
// before Emit returns.
//
// Construct one at startup, pass it to the code that needs it and Close
// it at shutdown. Tracker is safe for concurrent use.
type Tracker struct {
	settings config.Settings

	bus   *bus.Bus
	graph *graph.Graph

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// New builds a tracker from settings.
func New(settings config.Settings, opts ...Option) (*Tracker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		settings: settings,
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	overflow := bus.DropNewest
	if strings.EqualFold(settings.Bus.Overflow, config.OverflowDisconnect) {
		overflow = bus.Disconnect
	}

	t.bus = bus.New(bus.Config{
		HistorySize: settings.Bus.HistorySize,
		BufferSize:  settings.Bus.BufferSize,
		Overflow:    overflow,
		Logger:      t.logger,
		Metrics:     t.metrics,
	})
	t.graph = graph.New(graph.Config{
		HardCap: settings.Graph.HardCap,
		Window:  settings.Graph.Window.Std(),
		Now:     t.now,
		Logger:  t.logger,
		Metrics: t.metrics,
	})
	return t, nil
}

// Bus returns the tracker's bus.
func (t *Tracker) Bus() *bus.Bus {
	return t.bus
}

// Graph returns the tracker's graph.
func (t *Tracker) Graph() *graph.Graph {
	return t.graph
}

// Settings returns the settings the tracker was built with.
func (t *Tracker) Settings() config.Settings {
	return t.settings
}

// Emit builds an event caused by the active scope in ctx, emits it on the
// bus and indexes it in the graph. Options given by the caller take
// precedence over the scope.
func (t *Tracker) Emit(ctx context.Context, kind event.Kind, label string, opts ...event.Option) (event.Event, error) {
	all := make([]event.Option, 0, len(opts)+2)
	all = append(all, event.WithTimestamp(t.now()), propagate.Stamp(ctx))
	all = append(all, opts...)

	evt, err := event.Build(kind, label, all...)
	if err != nil {
		return event.Event{}, err
	}
	if err := t.publish(ctx, evt); err != nil {
		return event.Event{}, err
	}
	t.spans.AddSpanEvent(ctx, observability.EventSpanEvent,
		observability.EventAttributes(evt.ID(), evt.Kind().String(), evt.Label(), evt.ParentID())...)
	return evt, nil
}

// Run opens a causality scope named origin and calls fn inside it.
// The scope is covered by a trace span. With tracker.emit_scopes set, a
// Custom event carrying the scope id is emitted first, so events stamped
// inside the scope hang off it in the graph.
func (t *Tracker) Run(ctx context.Context, origin string, fn func(ctx context.Context) error) error {
	_, err := RunValue(ctx, t, origin, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RunValue is Tracker.Run for functions returning a result.
func RunValue[T any](ctx context.Context, t *Tracker, origin string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	scoped, scope, err := propagate.Open(ctx, origin)
	if err != nil {
		return zero, fmt.Errorf("open scope %s: %w", origin, err)
	}

	scoped, span := t.spans.StartScopeSpan(scoped, origin, scope.EventID, scope.ParentEventID)

	if t.settings.Tracker.EmitScopes {
		if _, err := t.emitScope(scoped, scope); err != nil {
			t.spans.EndSpanWithError(span, err)
			return zero, fmt.Errorf("emit scope %s: %w", origin, err)
		}
	}

	result, err := fn(scoped)
	if err != nil {
		observability.LogScopeError(t.logger, scope.EventID, origin, err)
	}
	t.spans.EndSpanWithError(span, err)
	return result, err
}

func (t *Tracker) emitScope(ctx context.Context, scope *propagate.Context) (event.Event, error) {
	evt, err := event.Build(event.KindCustom, scope.OriginLabel,
		event.WithEventID(scope.EventID),
		event.WithCause(scope.ParentEventID),
		event.WithTimestamp(t.now()),
		event.WithMetadataValue(ScopeMetadataKey, true),
	)
	if err != nil {
		return event.Event{}, err
	}
	return evt, t.publish(ctx, evt)
}

// publish sends evt to bus subscribers, then indexes it. The graph is fed
// here rather than through a subscription so a slow index never loses
// events to the bus overflow policy.
func (t *Tracker) publish(ctx context.Context, evt event.Event) error {
	if err := t.bus.Emit(ctx, evt); err != nil {
		return err
	}
	return t.graph.AddEvent(ctx, evt)
}

// Close shuts the bus down and drops any bus subscriptions the graph was
// given through Connect. The history and graph stay readable. Safe to call more than once.
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = errors.Join(t.bus.Close(), t.graph.Close())
	})
	return t.closeErr
}
