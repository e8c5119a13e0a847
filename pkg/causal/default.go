package causal

import (
	"sync"

	"github.com/randalmurphal/causal/pkg/causal/config"
)

var (
	defaultMu      sync.Mutex
	defaultTracker *Tracker
)

// Default returns the process-wide tracker, building one with default
// settings on first use. Prefer passing a Tracker explicitly; Default is
// for programs that want a single shared instance.
func Default() *Tracker {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultTracker == nil {
		t, err := New(config.Defaults())
		if err != nil {
			// Defaults always validate.
			panic(err)
		}
		defaultTracker = t
	}
	return defaultTracker
}

// SetDefault replaces the process-wide tracker and returns the previous
// one, which the caller is responsible for closing. A nil t makes the
// next Default call build a fresh tracker.
func SetDefault(t *Tracker) *Tracker {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultTracker
	defaultTracker = t
	return prev
}
