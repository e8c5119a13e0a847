package bus

import "github.com/randalmurphal/causal/pkg/causal/event"

// ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// entry. Not safe for concurrent use; the bus lock guards it.
type ring struct {
	buf   []event.Event
	start int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]event.Event, capacity)}
}

func (r *ring) push(evt event.Event) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = evt
		r.count++
		return
	}
	r.buf[r.start] = evt
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) len() int {
	return r.count
}

// items copies entries oldest first, keeping those keep accepts.
// A nil keep accepts everything.
func (r *ring) items(keep func(event.Event) bool) []event.Event {
	out := make([]event.Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		evt := r.buf[(r.start+i)%len(r.buf)]
		if keep == nil || keep(evt) {
			out = append(out, evt)
		}
	}
	return out
}

func (r *ring) reset() {
	clear(r.buf)
	r.start = 0
	r.count = 0
}
