// Package bus fans causal events out to any number of live subscribers and
// retains a bounded trailing history for late joiners.
//
// # Emitting
//
//	b := bus.New(bus.DefaultConfig)
//	defer b.Close()
//
//	err := b.Emit(ctx, event.New(event.KindUserAction, "tap"))
//
// Emit never blocks on a consumer. Each subscriber has a bounded buffer;
// when it is full the event is dropped for that subscriber (DropNewest) or
// the subscriber is disconnected (Disconnect). The history is a strict FIFO
// of HistorySize entries and is unaffected by slow subscribers.
//
// # Subscribing
//
//	sub := b.Subscribe()
//	defer sub.Unsubscribe()
//	for evt := range sub.C() {
//	    ...
//	}
//
// Or let the bus run a handler on its own goroutine:
//
//	sub := b.SubscribeFunc(func(ctx context.Context, evt event.Event) {
//	    graph.AddEvent(ctx, evt)
//	})
//
// Every subscriber sees events in emission order with no duplicates.
//
// # History
//
// Snapshot returns the retained history oldest first; FilteredSnapshot
// narrows it to one kind. Clear empties it without touching subscribers.
package bus
