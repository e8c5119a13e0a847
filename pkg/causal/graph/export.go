package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/observability"
)

// ErrNilDocument is returned by Import when given no document.
var ErrNilDocument = errors.New("nil graph document")

// Document is the serialized form of a graph, used to hand a snapshot to
// external tooling.
type Document struct {
	Events     []event.Event     `json:"events"`
	Edges      map[string]string `json:"edges"`
	EventCount int               `json:"event_count"`
	ExportedAt time.Time         `json:"exported_at"`
}

// Export serializes every node in insertion order together with every
// recorded edge, including edges to parents that are not in the graph.
func (g *Graph) Export() *Document {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]*node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}

	edges := make(map[string]string, len(g.edges))
	for child, parent := range g.edges {
		edges[child] = parent
	}

	events := sortedEvents(nodes)
	return &Document{
		Events:     events,
		Edges:      edges,
		EventCount: len(events),
		ExportedAt: g.config.Now().UTC(),
	}
}

// Import merges doc into the graph. Events whose id is already present are
// skipped. An event's edge comes from doc.Edges, or from its ParentID when
// the document carries no edge table. The pruning check runs once after
// the merge.
func (g *Graph) Import(ctx context.Context, doc *Document) error {
	if doc == nil {
		return ErrNilDocument
	}
	for i, evt := range doc.Events {
		if err := event.Validate(evt); err != nil {
			return fmt.Errorf("document event %d: %w", i, err)
		}
	}

	g.mu.Lock()
	var kinds []string
	for _, evt := range doc.Events {
		if _, exists := g.nodes[evt.ID()]; exists {
			continue
		}
		parentID := evt.ParentID()
		if doc.Edges != nil {
			parentID = doc.Edges[evt.ID()]
		}
		g.insertLocked(evt, parentID)
		kinds = append(kinds, evt.Kind().String())
	}
	total := len(g.nodes)
	elapsed := observability.TimedOperation()
	removed, remaining, cutoff, ran := g.pruneLocked()
	pruneMs := elapsed()
	g.mu.Unlock()

	for _, kind := range kinds {
		g.config.Metrics.RecordGraphAdd(ctx, kind, total)
	}
	observability.LogImport(g.config.Logger, len(kinds), total)
	if ran && removed > 0 {
		g.config.Metrics.RecordPrune(ctx, removed, remaining)
		observability.LogPrune(g.config.Logger, removed, remaining, cutoff, pruneMs)
	}
	return nil
}

// MarshalDocument encodes doc as indented JSON.
func MarshalDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph document: %w", err)
	}
	return data, nil
}

// UnmarshalDocument decodes a document. Any event with an unknown kind,
// missing id or malformed timestamp rejects the whole document.
func UnmarshalDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal graph document: %w", err)
	}
	if doc.EventCount == 0 {
		doc.EventCount = len(doc.Events)
	}
	return &doc, nil
}
