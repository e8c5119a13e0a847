package event

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Event is one causally relevant occurrence.
//
// Events are immutable once created. Equality is by ID alone: two values
// with the same ID are the same event, whatever their other fields say.
// The zero Event is invalid and is what lookups return on a miss.
type Event struct {
	id        string
	parentID  string
	kind      Kind
	label     string
	timestamp time.Time
	metadata  map[string]any
	duration  time.Duration
	timed     bool
}

// ID returns the unique event identifier.
func (e Event) ID() string {
	return e.id
}

// ParentID returns the ID of the event that caused this one, or "" for a root.
func (e Event) ParentID() string {
	return e.parentID
}

// IsRoot reports whether the event has no parent.
func (e Event) IsRoot() bool {
	return e.parentID == ""
}

// Kind returns the event category.
func (e Event) Kind() Kind {
	return e.kind
}

// Label returns the short human-readable description.
func (e Event) Label() string {
	return e.label
}

// Timestamp returns when the event was created.
func (e Event) Timestamp() time.Time {
	return e.timestamp
}

// Duration returns the elapsed time of a span-like event and whether one was set.
func (e Event) Duration() (time.Duration, bool) {
	return e.duration, e.timed
}

// Metadata returns a copy of the event's metadata. Never nil.
func (e Event) Metadata() map[string]any {
	if len(e.metadata) == 0 {
		return map[string]any{}
	}
	return maps.Clone(e.metadata)
}

// MetadataValue returns a single metadata value.
func (e Event) MetadataValue(key string) (any, bool) {
	v, ok := e.metadata[key]
	return v, ok
}

// IsZero reports whether e is the zero Event.
func (e Event) IsZero() bool {
	return e.id == ""
}

// Equal reports whether e and other are the same event.
func (e Event) Equal(other Event) bool {
	return e.id == other.id
}

// String returns a compact description for logs and CLI output.
func (e Event) String() string {
	return fmt.Sprintf("%s(%q)#%s", e.kind, e.label, e.id)
}

// Option configures event creation.
type Option func(*eventConfig)

type eventConfig struct {
	id        string
	parentID  string
	timestamp time.Time
	metadata  map[string]any
	duration  time.Duration
	timed     bool
}

// WithEventID sets a specific event ID (default: random UUID).
func WithEventID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithParentID sets the ID of the causing event.
func WithParentID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.parentID = id
	}
}

// WithCause sets the parent ID when id is non-empty and is a no-op
// otherwise. Use it for parent IDs that may legitimately be absent.
func WithCause(id string) Option {
	return func(cfg *eventConfig) {
		if id != "" {
			cfg.parentID = id
		}
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// WithMetadata merges md into the event metadata. Later options win on
// key conflicts. The map is copied.
func WithMetadata(md map[string]any) Option {
	return func(cfg *eventConfig) {
		if len(md) == 0 {
			return
		}
		if cfg.metadata == nil {
			cfg.metadata = make(map[string]any, len(md))
		}
		maps.Copy(cfg.metadata, md)
	}
}

// WithMetadataValue sets a single metadata entry.
func WithMetadataValue(key string, value any) Option {
	return func(cfg *eventConfig) {
		if cfg.metadata == nil {
			cfg.metadata = make(map[string]any)
		}
		cfg.metadata[key] = value
	}
}

// WithDuration marks the event as span-like with the given elapsed time.
func WithDuration(d time.Duration) Option {
	return func(cfg *eventConfig) {
		cfg.duration = d
		cfg.timed = true
	}
}

// Build creates a new event, returning an error if the kind is undefined
// or an identifier cannot be generated. Nothing is returned on failure.
func Build(kind Kind, label string, opts ...Option) (Event, error) {
	if !kind.Valid() {
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}

	cfg := &eventConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.id == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return Event{}, fmt.Errorf("generate event id: %w", err)
		}
		cfg.id = id.String()
	}
	if cfg.timestamp.IsZero() {
		cfg.timestamp = time.Now()
	}

	return Event{
		id:        cfg.id,
		parentID:  cfg.parentID,
		kind:      kind,
		label:     label,
		timestamp: cfg.timestamp,
		metadata:  cfg.metadata,
		duration:  cfg.duration,
		timed:     cfg.timed,
	}, nil
}

// New creates a new event with the given kind and label.
// It panics where Build would return an error.
func New(kind Kind, label string, opts ...Option) Event {
	evt, err := Build(kind, label, opts...)
	if err != nil {
		panic(err)
	}
	return evt
}

// NewChild creates an event caused by parent.
func NewChild(parent Event, kind Kind, label string, opts ...Option) Event {
	// Parent link first so callers can still override it
	allOpts := append([]Option{WithParentID(parent.ID())}, opts...)
	return New(kind, label, allOpts...)
}
