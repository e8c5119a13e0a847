package graph_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/graph"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock {
	return &clock{now: t}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) event.Option {
	return event.WithTimestamp(base.Add(offset))
}

func labels(events []event.Event) []string {
	out := make([]string, len(events))
	for i, evt := range events {
		out[i] = evt.Label()
	}
	return out
}

func mustAdd(t *testing.T, g *graph.Graph, events ...event.Event) {
	t.Helper()
	for _, evt := range events {
		require.NoError(t, g.AddEvent(context.Background(), evt))
	}
}

func TestAncestorsChain(t *testing.T) {
	g := graph.New(graph.DefaultConfig)

	root := event.New(event.KindUserAction, "root")
	a := event.NewChild(root, event.KindStateChange, "A")
	b := event.NewChild(a, event.KindNetworkEvent, "B")
	c := event.NewChild(b, event.KindUIRebuild, "C")
	mustAdd(t, g, root, a, b, c)

	assert.Equal(t, []string{"root", "A", "B", "C"}, labels(g.Ancestors(c.ID())))

	cause, ok := g.RootCause(c.ID())
	require.True(t, ok)
	assert.True(t, root.Equal(cause))

	cause, ok = g.RootCause(root.ID())
	require.True(t, ok)
	assert.True(t, root.Equal(cause), "a root is its own root cause")
}

func TestDescendantsLevelOrder(t *testing.T) {
	g := graph.New(graph.DefaultConfig)

	root := event.New(event.KindUserAction, "root")
	x := event.NewChild(root, event.KindStateChange, "X")
	z := event.NewChild(x, event.KindUIRebuild, "Z")
	y := event.NewChild(root, event.KindStateChange, "Y")

	// Z is added before Y to make sure order follows distance, not insertion.
	mustAdd(t, g, root, x, z, y)

	got := labels(g.Descendants(root.ID()))
	require.Len(t, got, 3)
	assert.ElementsMatch(t, []string{"X", "Y"}, got[:2])
	assert.Equal(t, "Z", got[2])

	assert.Equal(t, []string{"X", "Y"}, labels(g.Children(root.ID())))
	assert.Equal(t, []string{"Z"}, labels(g.Children(x.ID())))
	assert.Empty(t, g.Descendants(z.ID()))
}

func TestUnknownIDs(t *testing.T) {
	g := graph.New(graph.DefaultConfig)
	mustAdd(t, g, event.New(event.KindCustom, "only"))

	_, ok := g.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, g.Ancestors("missing"))
	assert.Empty(t, g.Descendants("missing"))
	assert.Empty(t, g.Children("missing"))

	_, ok = g.RootCause("missing")
	assert.False(t, ok)

	_, ok = g.Parent("missing")
	assert.False(t, ok)
}

func TestDanglingParent(t *testing.T) {
	g := graph.New(graph.DefaultConfig)

	parent := event.New(event.KindUserAction, "parent")
	child := event.NewChild(parent, event.KindStateChange, "child")

	mustAdd(t, g, child)

	assert.Equal(t, []string{"child"}, labels(g.Ancestors(child.ID())))
	cause, ok := g.RootCause(child.ID())
	require.True(t, ok)
	assert.True(t, child.Equal(cause))

	parentID, ok := g.Parent(child.ID())
	require.True(t, ok)
	assert.Equal(t, parent.ID(), parentID, "edge retained for the unseen parent")
	assert.Equal(t, []string{"child"}, labels(g.Roots()))

	// The parent arriving later completes the chain.
	mustAdd(t, g, parent)
	assert.Equal(t, []string{"parent", "child"}, labels(g.Ancestors(child.ID())))
	assert.Equal(t, []string{"child"}, labels(g.Children(parent.ID())))
	assert.Equal(t, []string{"parent"}, labels(g.Roots()))
}

func TestCycleTerminates(t *testing.T) {
	g := graph.New(graph.DefaultConfig)

	a := event.New(event.KindCustom, "A", event.WithEventID("a"), event.WithParentID("b"))
	b := event.New(event.KindCustom, "B", event.WithEventID("b"), event.WithParentID("a"))
	mustAdd(t, g, a, b)

	assert.Equal(t, []string{"B", "A"}, labels(g.Ancestors("a")))
	assert.Equal(t, []string{"B"}, labels(g.Descendants("a")))

	cause, ok := g.RootCause("a")
	require.True(t, ok)
	assert.Equal(t, "B", cause.Label())
}

func TestSelfParent(t *testing.T) {
	g := graph.New(graph.DefaultConfig)
	mustAdd(t, g, event.New(event.KindCustom, "loop", event.WithEventID("x"), event.WithParentID("x")))

	assert.Equal(t, []string{"loop"}, labels(g.Ancestors("x")))
	assert.Empty(t, g.Descendants("x"))
}

func TestAddEventRejectsInvalid(t *testing.T) {
	g := graph.New(graph.DefaultConfig)

	err := g.AddEvent(context.Background(), event.Event{})
	assert.ErrorIs(t, err, event.ErrInvalidEvent)
	assert.Zero(t, g.Len())
}

func TestUpsertKeepsEdges(t *testing.T) {
	g := graph.New(graph.DefaultConfig)

	root := event.New(event.KindUserAction, "root")
	child := event.NewChild(root, event.KindStateChange, "v1", event.WithEventID("c"))
	mustAdd(t, g, root, child)

	// Same id, new payload, different parent.
	mustAdd(t, g, event.New(event.KindStateChange, "v2", event.WithEventID("c"), event.WithParentID("other")))

	assert.Equal(t, 2, g.Len())
	got, ok := g.Get("c")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Label())

	parentID, _ := g.Parent("c")
	assert.Equal(t, root.ID(), parentID)
	assert.Len(t, g.Children(root.ID()), 1, "no duplicate child entry")
}

func TestClear(t *testing.T) {
	g := graph.New(graph.DefaultConfig)
	root := event.New(event.KindUserAction, "root")
	mustAdd(t, g, root, event.NewChild(root, event.KindCustom, "child"))

	g.Clear()
	assert.Zero(t, g.Len())
	assert.Empty(t, g.Children(root.ID()))
	assert.Empty(t, g.Roots())
}

func TestHardCapTriggersWindowPruning(t *testing.T) {
	clk := newClock(base.Add(200 * time.Second))
	g := graph.New(graph.Config{
		HardCap: 2000,
		Window:  300 * time.Second,
		Now:     clk.Now,
	})

	// 1000 early events and 1001 later ones, all inside the window.
	for i := 0; i < 1000; i++ {
		mustAdd(t, g, event.New(event.KindCustom, fmt.Sprintf("early-%d", i), at(time.Duration(i)*time.Millisecond)))
	}
	for i := 0; i < 1001; i++ {
		mustAdd(t, g, event.New(event.KindCustom, fmt.Sprintf("late-%d", i), at(200*time.Second)))
	}
	assert.Equal(t, 2001, g.Len(), "over the cap but nothing outside the window")

	// The early batch ages out; the next insertion prunes it.
	clk.Set(base.Add(350 * time.Second))
	assert.Equal(t, 2001, g.Len(), "time passing alone never prunes")

	trigger := event.New(event.KindCustom, "trigger", at(350*time.Second))
	mustAdd(t, g, trigger)

	assert.Equal(t, 1002, g.Len())
	for _, evt := range g.Roots() {
		assert.NotContains(t, evt.Label(), "early-")
	}
	_, ok := g.Get(trigger.ID())
	assert.True(t, ok)
}

func TestBelowCapNeverPrunedForAge(t *testing.T) {
	clk := newClock(base)
	g := graph.New(graph.Config{HardCap: 10, Window: time.Second, Now: clk.Now})

	for i := 0; i < 10; i++ {
		mustAdd(t, g, event.New(event.KindCustom, "old", at(0)))
	}
	clk.Set(base.Add(time.Hour))
	mustAdd(t, g, event.New(event.KindCustom, "fresh", at(time.Hour)))
	assert.Equal(t, 1, g.Len())

	g.Clear()
	for i := 0; i < 10; i++ {
		mustAdd(t, g, event.New(event.KindCustom, "old", at(0)))
	}
	assert.Equal(t, 10, g.Len(), "at the cap is not over it")
}

func TestPruneDetachesChildren(t *testing.T) {
	clk := newClock(base.Add(time.Minute))
	g := graph.New(graph.Config{HardCap: 3, Window: 30 * time.Second, Now: clk.Now})

	root := event.New(event.KindUserAction, "root", at(0))
	child := event.NewChild(root, event.KindStateChange, "child", at(time.Minute))
	grandchild := event.NewChild(child, event.KindUIRebuild, "grandchild", at(time.Minute))
	mustAdd(t, g, root, child, grandchild)
	require.Equal(t, 3, g.Len())

	mustAdd(t, g, event.New(event.KindCustom, "filler", at(time.Minute)))

	_, ok := g.Get(root.ID())
	assert.False(t, ok, "root aged out")
	assert.Equal(t, 3, g.Len())

	_, ok = g.Parent(child.ID())
	assert.False(t, ok, "child edge detached")
	assert.Equal(t, []string{"child", "grandchild"}, labels(g.Ancestors(grandchild.ID())))
	assert.Empty(t, g.Children(root.ID()))

	cause, _ := g.RootCause(grandchild.ID())
	assert.True(t, child.Equal(cause))
}

func TestPruneRemovesChildFromParentList(t *testing.T) {
	clk := newClock(base.Add(time.Minute))
	g := graph.New(graph.Config{HardCap: 2, Window: 30 * time.Second, Now: clk.Now})

	parent := event.New(event.KindUserAction, "parent", at(time.Minute))
	stale := event.NewChild(parent, event.KindCustom, "stale", at(0))
	fresh := event.NewChild(parent, event.KindCustom, "fresh", at(time.Minute))
	mustAdd(t, g, parent, stale, fresh)

	assert.Equal(t, []string{"fresh"}, labels(g.Children(parent.ID())))
	assert.Equal(t, []string{"fresh"}, labels(g.Descendants(parent.ID())))
}

func TestConcurrentAddEvent(t *testing.T) {
	g := graph.New(graph.DefaultConfig)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var parent event.Event
			for i := 0; i < 1000; i++ {
				var evt event.Event
				if i == 0 {
					evt = event.New(event.KindUserAction, fmt.Sprintf("w%d", w))
				} else {
					evt = event.NewChild(parent, event.KindCustom, fmt.Sprintf("w%d-%d", w, i))
				}
				if err := g.AddEvent(context.Background(), evt); err != nil {
					t.Error(err)
					return
				}
				parent = evt
				_ = g.Ancestors(evt.ID())
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 8000, g.Len())
	assert.Len(t, g.Roots(), 8)
}

type recordingMetrics struct {
	mu      sync.Mutex
	added   int
	pruned  int
	lastLen int
	lastCtx context.Context
}

func (m *recordingMetrics) RecordEmit(context.Context, string)       {}
func (m *recordingMetrics) RecordDrop(context.Context, string)       {}
func (m *recordingMetrics) RecordDisconnect(context.Context, string) {}

func (m *recordingMetrics) RecordGraphAdd(ctx context.Context, _ string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCtx = ctx
	m.added++
	m.lastLen = size
}

func (m *recordingMetrics) RecordPrune(_ context.Context, removed int, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned += removed
}

func TestMetricsRecorded(t *testing.T) {
	clk := newClock(base.Add(time.Minute))
	metrics := &recordingMetrics{}
	g := graph.New(graph.Config{HardCap: 1, Window: time.Second, Now: clk.Now, Metrics: metrics})

	mustAdd(t, g,
		event.New(event.KindCustom, "old", at(0)),
		event.New(event.KindCustom, "new", at(time.Minute)),
	)

	assert.Equal(t, 2, metrics.added)
	assert.Equal(t, 1, metrics.pruned)
}

type requestKey struct{}

func TestAddEventPassesContextToMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	g := graph.New(graph.Config{Metrics: metrics})

	ctx := context.WithValue(context.Background(), requestKey{}, "req-7")
	require.NoError(t, g.AddEvent(ctx, event.New(event.KindCustom, "x")))

	require.NotNil(t, metrics.lastCtx)
	assert.Equal(t, "req-7", metrics.lastCtx.Value(requestKey{}))
}
