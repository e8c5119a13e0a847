package query_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/graph"
	"github.com/randalmurphal/causal/pkg/causal/query"
)

func noop(_ context.Context, _ query.Reader, _ string) (any, error) {
	return "ok", nil
}

func TestRegistry_Register(t *testing.T) {
	registry := query.NewRegistry()

	require.NoError(t, registry.Register("custom", noop))

	err := registry.Register("custom", noop)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_Register_Validation(t *testing.T) {
	registry := query.NewRegistry()

	t.Run("empty name", func(t *testing.T) {
		err := registry.Register("", noop)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("nil handler", func(t *testing.T) {
		err := registry.Register("test", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "handler is required")
	})
}

func TestRegistry_List(t *testing.T) {
	registry := query.NewDefaultRegistry()

	assert.Equal(t, []string{"ancestors", "children", "descendants", "get", "parent", "root_cause"}, registry.List())

	_, ok := registry.Get(query.QueryParent)
	assert.True(t, ok)
	_, ok = registry.Get("missing")
	assert.False(t, ok)
}

// chain builds root -> a -> b plus a second child of root.
func chain(t *testing.T) (*graph.Graph, event.Event, event.Event, event.Event, event.Event) {
	t.Helper()
	g := graph.New(graph.DefaultConfig)

	root := event.New(event.KindUserAction, "root")
	a := event.NewChild(root, event.KindStateChange, "a")
	b := event.NewChild(a, event.KindNetworkEvent, "b")
	sibling := event.NewChild(root, event.KindUIRebuild, "sibling")
	for _, evt := range []event.Event{root, a, b, sibling} {
		require.NoError(t, g.AddEvent(context.Background(), evt))
	}
	return g, root, a, b, sibling
}

func labels(t *testing.T, v any) []string {
	t.Helper()
	events, ok := v.([]event.Event)
	require.True(t, ok, "expected []event.Event, got %T", v)
	out := make([]string, len(events))
	for i, evt := range events {
		out[i] = evt.Label()
	}
	return out
}

func TestBuiltins(t *testing.T) {
	g, root, a, b, _ := chain(t)
	exec := query.NewExecutor(query.NewDefaultRegistry(), g)
	ctx := context.Background()

	got, err := exec.Execute(ctx, query.QueryAncestors, b.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "a", "b"}, labels(t, got))

	got, err = exec.Execute(ctx, query.QueryDescendants, root.ID())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "sibling", "b"}, labels(t, got))

	got, err = exec.Execute(ctx, query.QueryChildren, root.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "sibling"}, labels(t, got))

	got, err = exec.Execute(ctx, query.QueryRootCause, b.ID())
	require.NoError(t, err)
	assert.Equal(t, "root", got.(event.Event).Label())

	got, err = exec.Execute(ctx, query.QueryGet, a.ID())
	require.NoError(t, err)
	assert.True(t, a.Equal(got.(event.Event)))

	got, err = exec.Execute(ctx, query.QueryParent, a.ID())
	require.NoError(t, err)
	assert.Equal(t, root.ID(), got)

	got, err = exec.Execute(ctx, query.QueryParent, root.ID())
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestUnknownEvent(t *testing.T) {
	g, _, _, _, _ := chain(t)
	exec := query.NewExecutor(query.NewDefaultRegistry(), g)
	ctx := context.Background()

	for _, name := range []string{query.QueryGet, query.QueryRootCause, query.QueryParent} {
		_, err := exec.Execute(ctx, name, "missing")
		assert.ErrorIs(t, err, query.ErrEventNotFound, name)
	}

	for _, name := range []string{query.QueryAncestors, query.QueryDescendants, query.QueryChildren} {
		got, err := exec.Execute(ctx, name, "missing")
		require.NoError(t, err, name)
		assert.Empty(t, got, name)

		data, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(data), name)
	}
}

func TestExecute_Validation(t *testing.T) {
	g, root, _, _, _ := chain(t)
	exec := query.NewExecutor(query.NewDefaultRegistry(), g)
	ctx := context.Background()

	_, err := exec.Execute(ctx, "", root.ID())
	assert.Error(t, err)

	_, err = exec.Execute(ctx, query.QueryGet, "")
	assert.Error(t, err)

	_, err = exec.Execute(ctx, "nonexistent", root.ID())
	assert.ErrorIs(t, err, query.ErrQueryNotFound)
}

func TestCustomQuery(t *testing.T) {
	g, root, _, _, _ := chain(t)
	registry := query.NewDefaultRegistry()
	require.NoError(t, registry.Register("depth", func(_ context.Context, g query.Reader, id string) (any, error) {
		return len(g.Descendants(id)), nil
	}))

	got, err := query.NewExecutor(registry, g).Execute(context.Background(), "depth", root.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestExecuteMultiple(t *testing.T) {
	g, _, _, b, _ := chain(t)
	exec := query.NewExecutor(query.NewDefaultRegistry(), g)

	results := exec.ExecuteMultiple(context.Background(), b.ID(),
		query.QueryRootCause, "nonexistent", query.QueryChildren)
	require.Len(t, results, 3)

	assert.Equal(t, query.QueryRootCause, results[0].QueryName)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "root", results[0].Value.(event.Event).Label())

	assert.Contains(t, results[1].Error, "query not found")
	assert.Nil(t, results[1].Value)

	assert.Empty(t, results[2].Error)
	assert.Empty(t, results[2].Value)
	assert.Equal(t, b.ID(), results[2].EventID)
}
