// Package propagate carries causality contexts through a chain of work.
//
// A causality context names "what started this chain". It rides in a
// context.Context, so any function, goroutine, or callback that is handed
// the ctx can discover its triggering event without every intermediate
// caller threading an extra parameter:
//
//	err := propagate.Do(ctx, "tap checkout", func(ctx context.Context) error {
//	    go refreshCart(ctx) // sees the same scope
//	    evt := event.New(event.KindStateChange, "cart cleared", propagate.Stamp(ctx))
//	    return bus.Emit(ctx, evt)
//	})
//
// The scope does not travel across processes or into goroutines started
// without the ctx. Use CreateDetached to mint a context that is stored
// (for example on an outbound request) and Attach to restore it later.
package propagate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/causal/pkg/causal/event"
)

type contextKey int

const scopeKey contextKey = 0

// newID mints scope identifiers. Replaced in tests to simulate failure.
var newID = func() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Context is a causality context: the marker for the work currently in
// progress. Contexts form a tree because each one's parent is whatever
// context was active when it was opened.
type Context struct {
	// EventID is the identifier this context stands for. Events created
	// inside the scope use it as their ParentID.
	EventID string

	// ParentEventID is the EventID of the enclosing context, or "" at the top.
	ParentEventID string

	// OriginLabel describes the triggering action.
	OriginLabel string

	// OpenedAt is when the context was created.
	OpenedAt time.Time
}

// IsRoot reports whether the context was opened outside any other scope.
func (c *Context) IsRoot() bool {
	return c.ParentEventID == ""
}

// Current returns the active causality context, or nil if there is none.
func Current(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	c, ok := ctx.Value(scopeKey).(*Context)
	if !ok {
		return nil
	}
	return c
}

// ParentID returns the ID that new events should carry as their parent:
// the active context's EventID, or "" outside any scope.
func ParentID(ctx context.Context) string {
	if c := Current(ctx); c != nil {
		return c.EventID
	}
	return ""
}

// CreateDetached mints a context whose parent is the active one without
// installing it. The only failure is identifier generation.
func CreateDetached(ctx context.Context, originLabel string) (*Context, error) {
	id, err := newID()
	if err != nil {
		return nil, fmt.Errorf("open causality context %q: %w", originLabel, err)
	}
	return &Context{
		EventID:       id,
		ParentEventID: ParentID(ctx),
		OriginLabel:   originLabel,
		OpenedAt:      time.Now(),
	}, nil
}

// Attach returns a derived ctx in which c is the active context.
// A nil c leaves ctx unchanged.
func Attach(ctx context.Context, c *Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey, c)
}

// Open creates a child of the active context and returns a ctx with it
// installed. Run and Do are built on it; callers that need the scope to
// outlive a single function call use it directly.
func Open(ctx context.Context, originLabel string) (context.Context, *Context, error) {
	c, err := CreateDetached(ctx, originLabel)
	if err != nil {
		return ctx, nil, err
	}
	return Attach(ctx, c), c, nil
}

// Run executes fn with a fresh causality context installed for its dynamic
// extent, and returns its result. Work fn starts with the ctx it receives
// (goroutines, timers, callbacks) sees the same context.
//
// If the context cannot be created, fn is not called.
func Run[T any](ctx context.Context, originLabel string, fn func(ctx context.Context) (T, error)) (T, error) {
	scoped, _, err := Open(ctx, originLabel)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(scoped)
}

// Do is Run for functions with no result.
func Do(ctx context.Context, originLabel string, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, originLabel, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Stamp returns an event option that sets ParentID from the active
// context. Outside any scope it does nothing, so an explicit
// event.WithParentID given earlier survives.
func Stamp(ctx context.Context) event.Option {
	return event.WithCause(ParentID(ctx))
}
