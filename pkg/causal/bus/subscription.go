package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/causal/pkg/causal/event"
)

// Subscription is one consumer's view of the bus.
type Subscription struct {
	id      string
	ch      chan event.Event
	done    chan struct{}
	bus     *Bus
	dropped atomic.Int64
	once    sync.Once
}

// ID returns the subscription identifier used in logs and OnDrop.
func (s *Subscription) ID() string {
	return s.id
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan event.Event {
	return s.ch
}

// Done is closed when the subscription ends, whether by Unsubscribe,
// disconnect for falling behind, or bus Close.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Dropped returns the number of events this subscriber missed because its
// buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Unsubscribe removes the subscription and closes its channel.
// Events already buffered can still be drained. Safe to call repeatedly.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if current, ok := s.bus.subs[s.id]; ok && current == s {
		delete(s.bus.subs, s.id)
	}
	s.close()
}

// close must be called with the bus lock held; sends only happen under it.
func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}

// process hands events to handler until the channel closes.
func (s *Subscription) process(handler func(ctx context.Context, evt event.Event)) {
	for evt := range s.ch {
		handler(context.Background(), evt)
	}
}
