// Package graph maintains a causal DAG over events and answers root-cause
// and impact questions.
//
// Each event names at most one parent, so the graph is a forest of
// in-trees:
//
//	g := graph.New(graph.DefaultConfig)
//	g.AddEvent(ctx, tap)
//	g.AddEvent(ctx, event.NewChild(tap, event.KindNetworkEvent, "GET /cart"))
//
//	g.Ancestors(id)   // root first, id last
//	g.RootCause(id)   // oldest resolvable ancestor
//	g.Descendants(id) // level order, id excluded
//
// # Pruning
//
// The node count is bounded by two thresholds. After every insertion, if
// the count exceeds HardCap, every node older than Window is removed.
// Nodes inside the window are kept even above the cap, and a short burst
// below the cap is never pruned for age alone. A pruned node's children
// lose their parent edge and become roots, so their own history stays
// queryable.
//
// # Bus integration
//
// Connect subscribes the graph to a bus so every emitted event is indexed:
//
//	b := bus.New(bus.DefaultConfig)
//	g := graph.New(graph.DefaultConfig)
//	g.Connect(b)
//	defer g.Close()
//
// # Export
//
// Export and Import move the whole graph through a Document, whose JSON
// form is
//
//	{"events": [...], "edges": {"child": "parent"}, "event_count": N, "exported_at": "..."}
package graph
