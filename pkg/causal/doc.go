// Package causal tracks cause and effect across a running program.
//
// A Tracker owns an event bus and a causal graph; every event it emits
// goes to both.
// Work is grouped into scopes; every event emitted inside a scope is
// stamped with the scope as its parent:
//
//	tracker, err := causal.New(config.Defaults())
//	if err != nil {
//	    return err
//	}
//	defer tracker.Close()
//
//	err = tracker.Run(ctx, "checkout tapped", func(ctx context.Context) error {
//	    _, err := tracker.Emit(ctx, event.KindNetworkEvent, "POST /orders")
//	    return err
//	})
//
// The graph then answers questions about what led to an event:
//
//	chain := tracker.Graph().Ancestors(id)
//	cause, _ := tracker.Graph().RootCause(id)
//
// Scopes travel in context.Context. A goroutine started with the scope's
// ctx inherits it; crossing a process or queue boundary needs an explicit
// hand-off with propagate.CreateDetached and propagate.Attach.
//
// Sub-packages:
//
//   - event: the Event value, its kinds and JSON form
//   - propagate: causality scopes carried in context.Context
//   - bus: broadcast with a bounded history
//   - graph: DAG index, traversal, pruning and export
//   - snapshot: named store for exported graph documents
//   - query: named read-only graph queries
//   - natsexport: publishes emitted events to NATS
//   - config: settings loading and validation
//   - observability: logging, metrics and tracing helpers
package causal
