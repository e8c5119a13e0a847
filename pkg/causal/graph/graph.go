package graph

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/randalmurphal/causal/pkg/causal/bus"
	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/observability"
)

// Config configures graph behavior.
type Config struct {
	// HardCap is the node count above which pruning runs.
	// Default: 2000
	HardCap int

	// Window is the age beyond which nodes are removed once HardCap is
	// exceeded. Younger nodes are never pruned, even above the cap.
	// Default: 300s
	Window time.Duration

	// SubscriberBuffer is the bus buffer requested by Connect.
	// Default: 4096
	SubscriberBuffer int

	// Now supplies the current time for pruning and export stamps.
	// Default: time.Now
	Now func() time.Time

	// Logger receives prune and import records.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics records additions, prunes and size.
	// Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder
}

// DefaultConfig provides the reference values.
var DefaultConfig = Config{
	HardCap:          2000,
	Window:           300 * time.Second,
	SubscriberBuffer: 4096,
}

type node struct {
	event event.Event
	seq   uint64
}

// Graph indexes events by causal parent and answers ancestry queries.
//
// Three tables back it: nodes by id, the parent edge of each child, and
// the ordered child list of each parent. Edges may point at a parent that
// has not been seen yet; traversal stops at the last node it can resolve.
//
// Graph is safe for concurrent use.
type Graph struct {
	config Config

	mu       sync.RWMutex
	nodes    map[string]*node
	edges    map[string]string
	children map[string][]string
	seq      uint64

	// oldest is at or before the earliest node timestamp. It may lag
	// behind after upserts; it is recomputed on every prune scan.
	oldest time.Time

	connMu sync.Mutex
	conns  map[*bus.Bus]*bus.Subscription
}

// New creates an empty graph. Zero config fields take their defaults.
func New(config Config) *Graph {
	if config.HardCap <= 0 {
		config.HardCap = DefaultConfig.HardCap
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig.Window
	}
	if config.SubscriberBuffer <= 0 {
		config.SubscriberBuffer = DefaultConfig.SubscriberBuffer
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}

	return &Graph{
		config:   config,
		nodes:    make(map[string]*node),
		edges:    make(map[string]string),
		children: make(map[string][]string),
		conns:    make(map[*bus.Bus]*bus.Subscription),
	}
}

// AddEvent upserts evt. A new node with a parent records the edge and joins
// the parent's child list, even when the parent is unknown. Re-adding a
// known id replaces the stored event but leaves its edges alone.
// The pruning check runs after every insertion. ctx is handed to the
// metrics recorder.
func (g *Graph) AddEvent(ctx context.Context, evt event.Event) error {
	if err := event.Validate(evt); err != nil {
		return err
	}

	g.mu.Lock()
	g.insertLocked(evt, evt.ParentID())
	size := len(g.nodes)
	elapsed := observability.TimedOperation()
	removed, remaining, cutoff, ran := g.pruneLocked()
	pruneMs := elapsed()
	g.mu.Unlock()

	g.config.Metrics.RecordGraphAdd(ctx, evt.Kind().String(), size)
	if ran && removed > 0 {
		g.config.Metrics.RecordPrune(ctx, removed, remaining)
		observability.LogPrune(g.config.Logger, removed, remaining, cutoff, pruneMs)
	}
	return nil
}

// insertLocked must be called with mu held for writing.
func (g *Graph) insertLocked(evt event.Event, parentID string) {
	id := evt.ID()
	if existing, ok := g.nodes[id]; ok {
		existing.event = evt
		g.lowerWatermark(evt.Timestamp())
		return
	}

	g.seq++
	g.nodes[id] = &node{event: evt, seq: g.seq}
	g.lowerWatermark(evt.Timestamp())

	if parentID == "" {
		return
	}
	g.edges[id] = parentID
	g.children[parentID] = append(g.children[parentID], id)
}

func (g *Graph) lowerWatermark(ts time.Time) {
	if len(g.nodes) == 1 || ts.Before(g.oldest) {
		g.oldest = ts
	}
}

// pruneLocked removes every node older than the window when the node count
// exceeds the cap. ran reports whether a scan happened.
func (g *Graph) pruneLocked() (removed, remaining int, cutoff time.Time, ran bool) {
	if len(g.nodes) <= g.config.HardCap {
		return 0, len(g.nodes), time.Time{}, false
	}

	cutoff = g.config.Now().Add(-g.config.Window)
	if !g.oldest.Before(cutoff) {
		return 0, len(g.nodes), cutoff, false
	}

	stale := make(map[string]struct{})
	var oldest time.Time
	for id, n := range g.nodes {
		ts := n.event.Timestamp()
		if ts.Before(cutoff) {
			stale[id] = struct{}{}
			continue
		}
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}
	g.oldest = oldest

	if len(stale) == 0 {
		return 0, len(g.nodes), cutoff, true
	}

	affected := make(map[string]struct{})
	for id := range stale {
		delete(g.nodes, id)

		if parentID, ok := g.edges[id]; ok {
			delete(g.edges, id)
			if _, gone := stale[parentID]; !gone {
				affected[parentID] = struct{}{}
			}
		}

		// Children outlive their parent as roots.
		for _, childID := range g.children[id] {
			if g.edges[childID] == id {
				delete(g.edges, childID)
			}
		}
		delete(g.children, id)
	}

	for parentID := range affected {
		kept := slices.DeleteFunc(g.children[parentID], func(childID string) bool {
			_, gone := stale[childID]
			return gone
		})
		if len(kept) == 0 {
			delete(g.children, parentID)
			continue
		}
		g.children[parentID] = kept
	}

	return len(stale), len(g.nodes), cutoff, true
}

// Get returns the event with the given id.
func (g *Graph) Get(id string) (event.Event, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return event.Event{}, false
	}
	return n.event, true
}

// Parent returns the recorded parent id of id, which may name a node that
// is not in the graph.
func (g *Graph) Parent(id string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	parentID, ok := g.edges[id]
	return parentID, ok
}

// Ancestors returns the chain from the oldest resolvable ancestor down to
// id itself, root first. It is empty when id is unknown.
func (g *Graph) Ancestors(id string) []event.Event {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ancestorsLocked(id)
}

func (g *Graph) ancestorsLocked(id string) []event.Event {
	var chain []event.Event
	visited := make(map[string]struct{})

	current := id
	for {
		if _, seen := visited[current]; seen {
			break
		}
		n, ok := g.nodes[current]
		if !ok {
			break
		}
		visited[current] = struct{}{}
		chain = append(chain, n.event)

		parentID, ok := g.edges[current]
		if !ok {
			break
		}
		current = parentID
	}

	slices.Reverse(chain)
	return chain
}

// RootCause returns the oldest resolvable ancestor of id, which is id
// itself when it has no resolvable parent.
func (g *Graph) RootCause(id string) (event.Event, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	chain := g.ancestorsLocked(id)
	if len(chain) == 0 {
		return event.Event{}, false
	}
	return chain[0], true
}

// Descendants returns every event reachable through child links from id,
// in level order, excluding id.
func (g *Graph) Descendants(id string) []event.Event {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return nil
	}

	var out []event.Event
	visited := map[string]struct{}{id: {}}
	queue := []string{id}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, childID := range g.children[current] {
			if _, seen := visited[childID]; seen {
				continue
			}
			visited[childID] = struct{}{}

			n, ok := g.nodes[childID]
			if !ok {
				continue
			}
			out = append(out, n.event)
			queue = append(queue, childID)
		}
	}
	return out
}

// Children returns the direct children of id in insertion order.
func (g *Graph) Children(id string) []event.Event {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []event.Event
	for _, childID := range g.children[id] {
		if n, ok := g.nodes[childID]; ok {
			out = append(out, n.event)
		}
	}
	return out
}

// Roots returns the events with no resolvable parent, in insertion order.
func (g *Graph) Roots() []event.Event {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*node
	for id, n := range g.nodes {
		if parentID, ok := g.edges[id]; ok {
			if _, resolvable := g.nodes[parentID]; resolvable {
				continue
			}
		}
		out = append(out, n)
	}
	return sortedEvents(out)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Clear removes every node and edge. Bus connections are kept.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	clear(g.nodes)
	clear(g.edges)
	clear(g.children)
	g.oldest = time.Time{}
}

func sortedEvents(nodes []*node) []event.Event {
	slices.SortFunc(nodes, func(a, b *node) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]event.Event, len(nodes))
	for i, n := range nodes {
		out[i] = n.event
	}
	return out
}
