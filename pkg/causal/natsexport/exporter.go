// Package natsexport publishes every event emitted on a bus to NATS, for
// shipping causal telemetry to an external collector.
//
// Events are published as EventJSON on "<subject>.<kind>", so a collector
// can take everything with "causal.events.>" or one kind with
// "causal.events.crashEvent".
//
// Publishing happens on the exporter's own goroutine. A failed publish is
// logged and counted; it never reaches the code that emitted the event.
package natsexport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/randalmurphal/causal/pkg/causal/bus"
	"github.com/randalmurphal/causal/pkg/causal/event"
)

// Publisher is the subset of *nats.Conn the exporter needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ErrAlreadyStarted is returned by Start on a running exporter.
var ErrAlreadyStarted = errors.New("exporter already started")

// Config configures an exporter.
type Config struct {
	// Subject is the prefix events are published under.
	// Default: "causal.events"
	Subject string

	// Buffer is the bus subscription buffer.
	// Default: 1024
	Buffer int

	// Logger receives publish failures.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "causal.events"

// Exporter forwards bus events to a Publisher.
type Exporter struct {
	pub    Publisher
	config Config

	mu   sync.Mutex
	sub  *bus.Subscription
	done chan struct{}

	published atomic.Int64
	failed    atomic.Int64
}

// New creates an exporter. Start attaches it to a bus.
func New(pub Publisher, config Config) *Exporter {
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.Buffer <= 0 {
		config.Buffer = 1024
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Exporter{pub: pub, config: config}
}

// Subject returns the subject an event is published on.
func (e *Exporter) Subject(evt event.Event) string {
	return e.config.Subject + "." + evt.Kind().String()
}

// Start subscribes to b and publishes every event emitted from now on.
func (e *Exporter) Start(b *bus.Bus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sub != nil {
		return ErrAlreadyStarted
	}

	e.sub = b.Subscribe(bus.WithBuffer(e.config.Buffer))
	e.done = make(chan struct{})
	go e.run(e.sub, e.done)
	return nil
}

func (e *Exporter) run(sub *bus.Subscription, done chan struct{}) {
	defer close(done)
	for evt := range sub.C() {
		e.publish(evt)
	}
}

func (e *Exporter) publish(evt event.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		e.fail(evt, fmt.Errorf("encode event: %w", err))
		return
	}
	if err := e.pub.Publish(e.Subject(evt), data); err != nil {
		e.fail(evt, err)
		return
	}
	e.published.Add(1)
}

func (e *Exporter) fail(evt event.Event, err error) {
	e.failed.Add(1)
	e.config.Logger.Warn("event export failed",
		slog.String("event_id", evt.ID()),
		slog.String("subject", e.Subject(evt)),
		slog.String("error", err.Error()),
	)
}

// Stop unsubscribes and waits until events already buffered have been
// published. Safe to call on an exporter that was never started.
func (e *Exporter) Stop() {
	e.mu.Lock()
	sub, done := e.sub, e.done
	e.sub, e.done = nil, nil
	e.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Unsubscribe()
	<-done
}

// Published returns the number of events published successfully.
func (e *Exporter) Published() int64 {
	return e.published.Load()
}

// Failed returns the number of events that could not be published.
func (e *Exporter) Failed() int64 {
	return e.failed.Load()
}

// Dial connects to a NATS server with reconnect settings suited to a
// long-running exporter.
func Dial(url, name string) (*natsgo.Conn, error) {
	opts := []natsgo.Option{
		natsgo.Timeout(10 * time.Second),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.MaxReconnects(60),
	}
	if name != "" {
		opts = append(opts, natsgo.Name(name))
	}

	nc, err := natsgo.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}
