package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for event construction and decoding.
var (
	// ErrUnknownKind indicates a kind name or value outside the defined set.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrInvalidEvent indicates an event that cannot be indexed or emitted,
	// such as the zero Event or one with an empty ID.
	ErrInvalidEvent = errors.New("invalid event")
)

// DecodeError describes why a serialized event was rejected.
type DecodeError struct {
	EventID string // ID of the record, if it could be read
	Field   string // Field that failed
	Err     error  // Underlying error
}

// Error implements error interface.
func (e *DecodeError) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("decode event %s: field %s: %v", e.EventID, e.Field, e.Err)
	}
	return fmt.Sprintf("decode event: field %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Validate reports whether evt can be indexed: it needs an ID and a
// defined kind.
func Validate(evt Event) error {
	if evt.id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEvent)
	}
	if !evt.kind.Valid() {
		return fmt.Errorf("%w: event %s: %w", ErrInvalidEvent, evt.id, ErrUnknownKind)
	}
	return nil
}
