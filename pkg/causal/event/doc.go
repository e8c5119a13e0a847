// Package event defines the immutable causal event record.
//
// # Overview
//
// An Event is one causally relevant occurrence: a tap, a state mutation,
// a network round-trip, a crash. Events link to the event that caused them
// through ParentID, which is what the graph package indexes.
//
//	tap := event.New(event.KindUserAction, "tap checkout")
//	req := event.NewChild(tap, event.KindNetworkEvent, "POST /orders",
//	    event.WithDuration(120*time.Millisecond),
//	    event.WithMetadataValue("status", 201))
//
// # Kinds
//
// Kind is a closed set serialized by name ("userAction", "networkEvent",
// ...). Decoding an unknown name fails with ErrUnknownKind; there is no
// default kind to fall back to.
//
// # Wire Format
//
// Events marshal to the EventJSON shape:
//
//	{
//	  "id": "5b0c...",
//	  "parentId": null,
//	  "kind": "userAction",
//	  "label": "tap checkout",
//	  "timestamp": "2024-01-01T12:00:00.123456789Z",
//	  "metadata": {},
//	  "duration_ms": null
//	}
//
// duration_ms carries whole milliseconds.
package event
