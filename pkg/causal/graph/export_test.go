package graph_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/graph"
)

// sampleGraph builds two trees plus an event whose parent is unknown.
func sampleGraph(t *testing.T) (*graph.Graph, []event.Event) {
	t.Helper()
	g := graph.New(graph.DefaultConfig)

	root := event.New(event.KindUserAction, "tap", event.WithMetadataValue("x", 1.5))
	x := event.NewChild(root, event.KindStateChange, "X")
	y := event.NewChild(root, event.KindNetworkEvent, "Y", event.WithDuration(120*time.Millisecond))
	z := event.NewChild(x, event.KindUIRebuild, "Z")
	other := event.New(event.KindCrashEvent, "crash")
	orphan := event.New(event.KindLayoutDecision, "orphan", event.WithParentID("gone"))

	all := []event.Event{root, x, y, z, other, orphan}
	mustAdd(t, g, all...)
	return g, all
}

func TestExportDocument(t *testing.T) {
	g, all := sampleGraph(t)

	doc := g.Export()
	assert.Equal(t, len(all), doc.EventCount)
	require.Len(t, doc.Events, len(all))
	for i := range all {
		assert.True(t, all[i].Equal(doc.Events[i]), "export keeps insertion order")
	}
	assert.Len(t, doc.Edges, 4)
	assert.Equal(t, "gone", doc.Edges[all[5].ID()])
	assert.False(t, doc.ExportedAt.IsZero())
}

func TestExportImportEquivalence(t *testing.T) {
	original, all := sampleGraph(t)

	data, err := graph.MarshalDocument(original.Export())
	require.NoError(t, err)
	doc, err := graph.UnmarshalDocument(data)
	require.NoError(t, err)

	restored := graph.New(graph.DefaultConfig)
	require.NoError(t, restored.Import(context.Background(), doc))
	require.Equal(t, original.Len(), restored.Len())

	for _, evt := range all {
		assert.Equal(t, ids(original.Ancestors(evt.ID())), ids(restored.Ancestors(evt.ID())), "ancestors of %s", evt.Label())
		assert.ElementsMatch(t, ids(original.Descendants(evt.ID())), ids(restored.Descendants(evt.ID())), "descendants of %s", evt.Label())
	}

	got, ok := restored.Get(all[0].ID())
	require.True(t, ok)
	v, _ := got.MetadataValue("x")
	assert.Equal(t, 1.5, v)

	d, timed := restored.Descendants(all[0].ID())[1].Duration()
	assert.True(t, timed)
	assert.Equal(t, 120*time.Millisecond, d)
}

func TestImportIsIdempotent(t *testing.T) {
	original, _ := sampleGraph(t)
	doc := original.Export()

	g := graph.New(graph.DefaultConfig)
	require.NoError(t, g.Import(context.Background(), doc))
	require.NoError(t, g.Import(context.Background(), doc))

	assert.Equal(t, original.Len(), g.Len())
	for _, root := range g.Roots() {
		assert.Len(t, g.Children(root.ID()), len(original.Children(root.ID())))
	}
}

func TestImportMergesIntoLiveGraph(t *testing.T) {
	source, all := sampleGraph(t)

	g := graph.New(graph.DefaultConfig)
	existing := all[0]
	live := event.NewChild(existing, event.KindCustom, "live")
	mustAdd(t, g, existing, live)

	require.NoError(t, g.Import(context.Background(), source.Export()))
	assert.Equal(t, len(all)+1, g.Len())
	assert.Len(t, g.Children(existing.ID()), 3)
}

func TestImportUsesDocumentEdges(t *testing.T) {
	parent := event.New(event.KindUserAction, "parent")
	child := event.NewChild(parent, event.KindStateChange, "child")

	// The child carries a parent id but the document records no edge for
	// it, as after its parent was pruned.
	doc := &graph.Document{
		Events: []event.Event{child},
		Edges:  map[string]string{},
	}
	g := graph.New(graph.DefaultConfig)
	require.NoError(t, g.Import(context.Background(), doc))
	_, ok := g.Parent(child.ID())
	assert.False(t, ok)

	// Without an edge table the event's own parent id is used.
	g = graph.New(graph.DefaultConfig)
	require.NoError(t, g.Import(context.Background(), &graph.Document{Events: []event.Event{child}}))
	parentID, ok := g.Parent(child.ID())
	require.True(t, ok)
	assert.Equal(t, parent.ID(), parentID)
}

func TestImportRejects(t *testing.T) {
	g := graph.New(graph.DefaultConfig)

	assert.ErrorIs(t, g.Import(context.Background(), nil), graph.ErrNilDocument)
	err := g.Import(context.Background(), &graph.Document{Events: []event.Event{{}}})
	assert.ErrorIs(t, err, event.ErrInvalidEvent)
	assert.Zero(t, g.Len(), "nothing committed on failure")
}

func TestDocumentJSONShape(t *testing.T) {
	g, _ := sampleGraph(t)
	data, err := graph.MarshalDocument(g.Export())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "events")
	assert.Contains(t, raw, "edges")
	assert.Contains(t, raw, "event_count")
	assert.Contains(t, raw, "exported_at")

	var events []map[string]any
	require.NoError(t, json.Unmarshal(raw["events"], &events))
	assert.Equal(t, "userAction", events[0]["kind"])
	assert.Nil(t, events[0]["parentId"])

	_, err = graph.MarshalDocument(nil)
	assert.ErrorIs(t, err, graph.ErrNilDocument)
}

func TestUnmarshalDocumentRejectsUnknownKind(t *testing.T) {
	data := []byte(`{
		"events": [{"id": "a", "parentId": null, "kind": "telepathy", "label": "x",
		            "timestamp": "2024-03-01T12:00:00Z", "metadata": {}, "duration_ms": null}],
		"edges": {},
		"event_count": 1,
		"exported_at": "2024-03-01T12:00:00Z"
	}`)

	_, err := graph.UnmarshalDocument(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrUnknownKind)

	var decodeErr *event.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestUnmarshalDocumentFillsCount(t *testing.T) {
	data := []byte(`{"events": [{"id": "a", "kind": "custom", "label": "x", "timestamp": "2024-03-01T12:00:00Z"}]}`)

	doc, err := graph.UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.EventCount)
	assert.Nil(t, doc.Edges)
}

func ids(events []event.Event) []string {
	out := make([]string, len(events))
	for i, evt := range events {
		out[i] = evt.ID()
	}
	return out
}

func TestImportRecordsMetrics(t *testing.T) {
	clk := newClock(base.Add(time.Minute))
	metrics := &recordingMetrics{}
	g := graph.New(graph.Config{HardCap: 2, Window: time.Second, Now: clk.Now, Metrics: metrics})

	doc := &graph.Document{Events: []event.Event{
		event.New(event.KindCustom, "old-1", at(0)),
		event.New(event.KindCustom, "old-2", at(time.Millisecond)),
		event.New(event.KindCustom, "new", at(time.Minute)),
	}}
	require.NoError(t, g.Import(context.Background(), doc))

	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 3, metrics.added)
	assert.Equal(t, 2, metrics.pruned)

	require.NoError(t, g.Import(context.Background(), doc))
	assert.Equal(t, 5, metrics.added, "pruned events come back, the live one is skipped")
	assert.Equal(t, 4, metrics.pruned)
	assert.Equal(t, 1, g.Len())
}
