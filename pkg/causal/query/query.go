// Package query provides named, read-only queries over a causal graph.
//
// Tools that take a query name from the outside world (a CLI flag, an
// HTTP parameter, a debug console) dispatch through a Registry instead of
// switching on strings themselves:
//
//	exec := query.NewExecutor(query.NewDefaultRegistry(), g)
//	chain, err := exec.Execute(ctx, query.QueryAncestors, id)
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/causal/pkg/causal/event"
)

// Reader is the read side of a causal graph. *graph.Graph satisfies it.
type Reader interface {
	Get(id string) (event.Event, bool)
	Parent(id string) (string, bool)
	Ancestors(id string) []event.Event
	Descendants(id string) []event.Event
	Children(id string) []event.Event
	RootCause(id string) (event.Event, bool)
}

// Handler executes a query for one event id.
// Handlers must not modify the graph.
type Handler func(ctx context.Context, g Reader, eventID string) (any, error)

// Registry manages query handlers by query name.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty query registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// NewDefaultRegistry creates a registry holding the built-in queries.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		// Builtins have distinct names and a fresh registry has none.
		panic(err)
	}
	return r
}

// Register adds a handler for a query name.
func (r *Registry) Register(queryName string, handler Handler) error {
	if queryName == "" {
		return errors.New("query name is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[queryName]; exists {
		return fmt.Errorf("handler for query %q already registered", queryName)
	}

	r.handlers[queryName] = handler
	return nil
}

// Get returns the handler for a query name.
func (r *Registry) Get(queryName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.handlers[queryName]
	return handler, exists
}

// List returns all registered query names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ErrQueryNotFound is returned when a query handler doesn't exist.
var ErrQueryNotFound = errors.New("query not found")

// ErrEventNotFound is returned by queries whose answer is a single event
// when the id is unknown. List queries return an empty result instead.
var ErrEventNotFound = errors.New("event not found")

// Executor runs queries against one graph.
type Executor struct {
	registry *Registry
	graph    Reader
}

// NewExecutor creates an executor bound to g.
func NewExecutor(registry *Registry, g Reader) *Executor {
	return &Executor{
		registry: registry,
		graph:    g,
	}
}

// Execute runs a query for eventID.
func (e *Executor) Execute(ctx context.Context, queryName, eventID string) (any, error) {
	if queryName == "" {
		return nil, errors.New("query name is required")
	}
	if eventID == "" {
		return nil, errors.New("event ID is required")
	}

	handler, exists := e.registry.Get(queryName)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, queryName)
	}

	return handler(ctx, e.graph, eventID)
}

// Built-in query names.
const (
	QueryGet         = "get"         // Returns the event
	QueryParent      = "parent"      // Returns the recorded parent id
	QueryAncestors   = "ancestors"   // Returns the chain, root first
	QueryDescendants = "descendants" // Returns everything caused, level order
	QueryChildren    = "children"    // Returns direct children
	QueryRootCause   = "root_cause"  // Returns the oldest resolvable ancestor
)

// RegisterBuiltins registers the standard query handlers.
func RegisterBuiltins(registry *Registry) error {
	builtins := map[string]Handler{
		QueryGet: func(_ context.Context, g Reader, id string) (any, error) {
			evt, ok := g.Get(id)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
			}
			return evt, nil
		},
		QueryParent: func(_ context.Context, g Reader, id string) (any, error) {
			if _, ok := g.Get(id); !ok {
				return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
			}
			parentID, _ := g.Parent(id)
			return parentID, nil
		},
		QueryAncestors: func(_ context.Context, g Reader, id string) (any, error) {
			return nonNil(g.Ancestors(id)), nil
		},
		QueryDescendants: func(_ context.Context, g Reader, id string) (any, error) {
			return nonNil(g.Descendants(id)), nil
		},
		QueryChildren: func(_ context.Context, g Reader, id string) (any, error) {
			return nonNil(g.Children(id)), nil
		},
		QueryRootCause: func(_ context.Context, g Reader, id string) (any, error) {
			evt, ok := g.RootCause(id)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
			}
			return evt, nil
		},
	}

	for name, handler := range builtins {
		if err := registry.Register(name, handler); err != nil {
			return fmt.Errorf("failed to register builtin query %q: %w", name, err)
		}
	}

	return nil
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil(events []event.Event) []event.Event {
	if events == nil {
		return []event.Event{}
	}
	return events
}

// Result wraps a query result with metadata.
type Result struct {
	// QueryName is the query that was executed.
	QueryName string `json:"query_name"`

	// EventID is the event that was queried.
	EventID string `json:"event_id"`

	// Value is the query result.
	Value any `json:"value"`

	// Error contains error details if the query failed.
	Error string `json:"error,omitempty"`
}

// ExecuteMultiple runs several queries for one event, in the order given.
// Returns results for all queries, including any that failed.
func (e *Executor) ExecuteMultiple(ctx context.Context, eventID string, queryNames ...string) []Result {
	results := make([]Result, 0, len(queryNames))

	for _, queryName := range queryNames {
		result := Result{
			QueryName: queryName,
			EventID:   eventID,
		}

		value, err := e.Execute(ctx, queryName, eventID)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Value = value
		}

		results = append(results, result)
	}

	return results
}
