package event

import (
	"encoding/json"
	"errors"
	"time"
)

// timestampLayouts are tried in order when decoding. The second form is
// what producers without zone information emit; it is read as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// wireEvent is the EventJSON document shape.
type wireEvent struct {
	ID         string         `json:"id"`
	ParentID   *string        `json:"parentId"`
	Kind       string         `json:"kind"`
	Label      string         `json:"label"`
	Timestamp  string         `json:"timestamp"`
	Metadata   map[string]any `json:"metadata"`
	DurationMs *int64         `json:"duration_ms"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	if err := Validate(e); err != nil {
		return nil, err
	}

	w := wireEvent{
		ID:        e.id,
		Kind:      e.kind.String(),
		Label:     e.label,
		Timestamp: e.timestamp.Format(time.RFC3339Nano),
		Metadata:  e.Metadata(),
	}
	if e.parentID != "" {
		parent := e.parentID
		w.ParentID = &parent
	}
	if e.timed {
		ms := e.duration.Milliseconds()
		w.DurationMs = &ms
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
// Unknown kinds are rejected rather than coerced.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return &DecodeError{Field: "event", Err: err}
	}
	if w.ID == "" {
		return &DecodeError{Field: "id", Err: errors.New("missing")}
	}

	kind, err := ParseKind(w.Kind)
	if err != nil {
		return &DecodeError{EventID: w.ID, Field: "kind", Err: err}
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return &DecodeError{EventID: w.ID, Field: "timestamp", Err: err}
	}

	decoded := Event{
		id:        w.ID,
		kind:      kind,
		label:     w.Label,
		timestamp: ts,
	}
	if w.ParentID != nil {
		decoded.parentID = *w.ParentID
	}
	if len(w.Metadata) > 0 {
		decoded.metadata = w.Metadata
	}
	if w.DurationMs != nil {
		decoded.duration = time.Duration(*w.DurationMs) * time.Millisecond
		decoded.timed = true
	}

	*e = decoded
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
