package bus

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/observability"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("bus is closed")

// OverflowPolicy decides what happens to a subscriber whose buffer is full.
type OverflowPolicy int

const (
	// DropNewest skips the event for that subscriber and counts the drop.
	DropNewest OverflowPolicy = iota

	// Disconnect removes the subscriber and closes its channel.
	Disconnect
)

// String returns the policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop"
	case Disconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Config configures bus behavior.
type Config struct {
	// HistorySize is the number of trailing events retained.
	// Default: 500
	HistorySize int

	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// Overflow is applied when a subscriber's buffer is full.
	// Default: DropNewest
	Overflow OverflowPolicy

	// OnDrop is called for every delivery skipped because of a full buffer,
	// outside the bus lock.
	OnDrop func(evt event.Event, subscriberID string)

	// Logger receives drop and disconnect warnings.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics records emitted and dropped events.
	// Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder
}

// DefaultConfig provides the reference values.
var DefaultConfig = Config{
	HistorySize: 500,
	BufferSize:  256,
	Overflow:    DropNewest,
}

// Bus is a broadcast channel with a bounded trailing history.
//
// Emit appends to the history and enqueues on every subscriber in a single
// critical section made of non-blocking sends, so producers never wait on
// consumers and each subscriber sees events in emission order.
type Bus struct {
	config Config

	mu      sync.Mutex
	history *ring
	subs    map[string]*Subscription
	closed  bool

	nextID atomic.Int64
}

// New creates a bus. Zero config fields take their defaults.
func New(config Config) *Bus {
	if config.HistorySize <= 0 {
		config.HistorySize = DefaultConfig.HistorySize
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig.BufferSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}

	return &Bus{
		config:  config,
		history: newRing(config.HistorySize),
		subs:    make(map[string]*Subscription),
	}
}

// delivery failure noted inside the lock, reported after it.
type overflow struct {
	sub          *Subscription
	disconnected bool
}

// Emit records evt in the history and delivers it to every subscriber.
// It never blocks on a subscriber. Invalid events are rejected before
// anything is recorded.
func (b *Bus) Emit(ctx context.Context, evt event.Event) error {
	if err := event.Validate(evt); err != nil {
		return err
	}

	var overflows []overflow

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}

	b.history.push(evt)

	for id, sub := range b.subs {
		select {
		case sub.ch <- evt:
			continue
		default:
		}

		sub.dropped.Add(1)
		of := overflow{sub: sub}
		if b.config.Overflow == Disconnect {
			delete(b.subs, id)
			sub.close()
			of.disconnected = true
		}
		overflows = append(overflows, of)
	}
	b.mu.Unlock()

	b.config.Metrics.RecordEmit(ctx, evt.Kind().String())
	observability.LogEmit(b.config.Logger, evt.ID(), evt.Kind().String(), evt.ParentID())

	for _, of := range overflows {
		b.config.Metrics.RecordDrop(ctx, of.sub.id)
		observability.LogDrop(b.config.Logger, evt.ID(), of.sub.id)
		if b.config.OnDrop != nil {
			b.config.OnDrop(evt, of.sub.id)
		}
		if of.disconnected {
			b.config.Metrics.RecordDisconnect(ctx, of.sub.id)
			observability.LogSubscriberDisconnect(b.config.Logger, of.sub.id, of.sub.Dropped())
		}
	}

	return nil
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	buffer int
}

// WithBuffer overrides the bus BufferSize for one subscription.
// Non-positive values are ignored.
func WithBuffer(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// Subscribe returns a subscription receiving every event emitted after
// this call. Subscribing to a closed bus returns an already-closed
// subscription.
func (b *Bus) Subscribe(opts ...SubscribeOption) *Subscription {
	cfg := subscribeConfig{buffer: b.config.BufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &Subscription{
		id:   "sub-" + strconv.FormatInt(b.nextID.Add(1), 10),
		ch:   make(chan event.Event, cfg.buffer),
		done: make(chan struct{}),
		bus:  b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.close()
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// SubscribeFunc subscribes and runs handler for each event on a dedicated
// goroutine until the subscription ends.
func (b *Bus) SubscribeFunc(handler func(ctx context.Context, evt event.Event), opts ...SubscribeOption) *Subscription {
	sub := b.Subscribe(opts...)
	go sub.process(handler)
	return sub
}

// Snapshot returns the history, oldest first. The slice is a copy.
func (b *Bus) Snapshot() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.items(nil)
}

// FilteredSnapshot returns the history entries of the given kind, oldest first.
func (b *Bus) FilteredSnapshot(kind event.Kind) []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.items(func(evt event.Event) bool {
		return evt.Kind() == kind
	})
}

// Len returns the number of events in the history.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.len()
}

// Clear empties the history. Subscriptions are unaffected.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history.reset()
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and rejects further emits.
// The history stays readable.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.close()
	}
	return nil
}
