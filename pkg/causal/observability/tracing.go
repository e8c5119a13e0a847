package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("causal")

// Span and attribute names.
const (
	ScopeSpanName  = "causal.scope"
	EventSpanEvent = "causal.event"

	AttrScopeOrigin   = attribute.Key("scope.origin")
	AttrScopeID       = attribute.Key("scope.id")
	AttrScopeParentID = attribute.Key("scope.parent_id")
	AttrEventID       = attribute.Key("event.id")
	AttrEventKind     = attribute.Key("event.kind")
	AttrEventLabel    = attribute.Key("event.label")
	AttrEventParentID = attribute.Key("event.parent_id")
)

// SpanManager handles trace span lifecycle for propagation scopes.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartScopeSpan starts a span covering a propagation scope.
	StartScopeSpan(ctx context.Context, originLabel, scopeID, parentScopeID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartScopeSpan starts a span for a propagation scope.
func (m *otelSpanManager) StartScopeSpan(ctx context.Context, originLabel, scopeID, parentScopeID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		AttrScopeOrigin.String(originLabel),
		AttrScopeID.String(scopeID),
	}
	// Root scopes carry no parent attribute.
	if parentScopeID != "" {
		attrs = append(attrs, AttrScopeParentID.String(parentScopeID))
	}
	return tracer.Start(ctx, ScopeSpanName,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// EventAttributes describes an emitted event for a span event.
func EventAttributes(eventID, kind, label, parentID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrEventID.String(eventID),
		AttrEventKind.String(kind),
		AttrEventLabel.String(label),
	}
	if parentID != "" {
		attrs = append(attrs, AttrEventParentID.String(parentID))
	}
	return attrs
}
