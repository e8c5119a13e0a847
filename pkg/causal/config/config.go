package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultHistorySize = 500
	DefaultBufferSize  = 256
	DefaultHardCap     = 2000
	DefaultWindow      = 300 * time.Second
	DefaultOverflow    = "drop"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultNATSSubject = "causal.events"
)

// Overflow policies for slow subscribers.
const (
	OverflowDrop       = "drop"
	OverflowDisconnect = "disconnect"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration that decodes from "300s" style strings or
// from a bare number of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.set(raw)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d *Duration) set(raw any) error {
	switch val := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(val) * time.Second)
	case int64:
		*d = Duration(time.Duration(val) * time.Second)
	case float64:
		*d = Duration(time.Duration(val * float64(time.Second)))
	default:
		return fmt.Errorf("unsupported duration value %v", raw)
	}
	return nil
}

// Settings configures a causal tracker and its tooling.
type Settings struct {
	Bus      BusSettings      `yaml:"bus" json:"bus"`
	Graph    GraphSettings    `yaml:"graph" json:"graph"`
	Tracker  TrackerSettings  `yaml:"tracker" json:"tracker"`
	Log      LogSettings      `yaml:"log" json:"log"`
	Snapshot SnapshotSettings `yaml:"snapshot" json:"snapshot"`
	NATS     NATSSettings     `yaml:"nats" json:"nats"`
}

// BusSettings configures the event bus.
type BusSettings struct {
	// HistorySize is the number of trailing events kept for late joiners.
	HistorySize int `yaml:"history_size" json:"history_size"`

	// BufferSize is the channel buffer per subscriber.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// Overflow is what happens to a subscriber whose buffer is full:
	// "drop" the event for that subscriber, or "disconnect" it.
	Overflow string `yaml:"overflow" json:"overflow"`
}

// GraphSettings configures the causal graph.
type GraphSettings struct {
	// HardCap is the node count above which pruning runs.
	HardCap int `yaml:"hard_cap" json:"hard_cap"`

	// Window is the age beyond which nodes are pruned once the cap is exceeded.
	Window Duration `yaml:"window" json:"window"`
}

// TrackerSettings configures the tracker.
type TrackerSettings struct {
	// EmitScopes records every propagation scope as a Custom event so
	// scope boundaries appear in the graph.
	EmitScopes bool `yaml:"emit_scopes" json:"emit_scopes"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// SnapshotSettings configures the snapshot store.
type SnapshotSettings struct {
	// Path is the SQLite database path. Empty means in-memory.
	Path string `yaml:"path" json:"path"`
}

// NATSSettings configures the optional NATS exporter.
type NATSSettings struct {
	URL     string `yaml:"url" json:"url"`
	Subject string `yaml:"subject" json:"subject"`
}

// Defaults returns the reference settings.
func Defaults() Settings {
	return Settings{
		Bus: BusSettings{
			HistorySize: DefaultHistorySize,
			BufferSize:  DefaultBufferSize,
			Overflow:    DefaultOverflow,
		},
		Graph: GraphSettings{
			HardCap: DefaultHardCap,
			Window:  Duration(DefaultWindow),
		},
		Log: LogSettings{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		NATS: NATSSettings{
			Subject: DefaultNATSSubject,
		},
	}
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	var errs []error
	if s.Bus.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("bus.history_size must be positive, got %d", s.Bus.HistorySize))
	}
	if s.Bus.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("bus.buffer_size must be positive, got %d", s.Bus.BufferSize))
	}
	switch strings.ToLower(s.Bus.Overflow) {
	case OverflowDrop, OverflowDisconnect:
	default:
		errs = append(errs, fmt.Errorf("bus.overflow must be %q or %q, got %q", OverflowDrop, OverflowDisconnect, s.Bus.Overflow))
	}
	if s.Graph.HardCap <= 0 {
		errs = append(errs, fmt.Errorf("graph.hard_cap must be positive, got %d", s.Graph.HardCap))
	}
	if s.Graph.Window <= 0 {
		errs = append(errs, fmt.Errorf("graph.window must be positive, got %s", s.Graph.Window))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
