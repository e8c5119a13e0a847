package graph

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/causal/pkg/causal/bus"
	"github.com/randalmurphal/causal/pkg/causal/event"
)

// Connect subscribes the graph to b and indexes every delivered event.
// Calling it again for the same bus is a no-op while the subscription is
// live. It is safe to call before any events exist.
func (g *Graph) Connect(b *bus.Bus) error {
	if b == nil {
		return nil
	}

	g.connMu.Lock()
	defer g.connMu.Unlock()

	if sub, ok := g.conns[b]; ok {
		select {
		case <-sub.Done():
			// Ended by the bus, subscribe again below.
		default:
			return nil
		}
	}

	g.conns[b] = b.SubscribeFunc(g.handle, bus.WithBuffer(g.config.SubscriberBuffer))
	return nil
}

// Connected reports whether the graph holds a live subscription to b.
func (g *Graph) Connected(b *bus.Bus) bool {
	g.connMu.Lock()
	defer g.connMu.Unlock()

	sub, ok := g.conns[b]
	if !ok {
		return false
	}
	select {
	case <-sub.Done():
		return false
	default:
		return true
	}
}

// Disconnect ends every bus subscription held by the graph.
func (g *Graph) Disconnect() {
	g.connMu.Lock()
	defer g.connMu.Unlock()

	for b, sub := range g.conns {
		sub.Unsubscribe()
		delete(g.conns, b)
	}
}

// Close disconnects the graph from its buses. The indexed nodes stay
// queryable.
func (g *Graph) Close() error {
	g.Disconnect()
	return nil
}

func (g *Graph) handle(ctx context.Context, evt event.Event) {
	if err := g.AddEvent(ctx, evt); err != nil {
		g.config.Logger.Warn("graph rejected event",
			slog.String("event_id", evt.ID()),
			slog.String("error", err.Error()),
		)
	}
}
