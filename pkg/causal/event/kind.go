package event

import (
	"fmt"
)

// Kind classifies an event. The set is closed; new kinds are appended to
// the end and given a new name, never renamed, so serialized documents
// stay readable across versions.
type Kind int

const (
	// KindUserAction is a direct user interaction (tap, key press, gesture).
	KindUserAction Kind = iota + 1

	// KindStateChange is a mutation of application state.
	KindStateChange

	// KindNetworkEvent is a request/response exchange, usually with a duration.
	KindNetworkEvent

	// KindUIRebuild is a rebuild of part of the UI tree.
	KindUIRebuild

	// KindCrashEvent is an error or crash reported by an interceptor.
	KindCrashEvent

	// KindLayoutDecision is a layout computation worth recording.
	KindLayoutDecision

	// KindCustom is anything the caller wants tracked that fits nowhere else.
	KindCustom
)

// kindNames is the serialization contract. Order matches the constants.
var kindNames = map[Kind]string{
	KindUserAction:     "userAction",
	KindStateChange:    "stateChange",
	KindNetworkEvent:   "networkEvent",
	KindUIRebuild:      "uiRebuild",
	KindCrashEvent:     "crashEvent",
	KindLayoutDecision: "layoutDecision",
	KindCustom:         "custom",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindUserAction,
		KindStateChange,
		KindNetworkEvent,
		KindUIRebuild,
		KindCrashEvent,
		KindLayoutDecision,
		KindCustom,
	}
}

// String returns the stable serialization name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind returns the kind with the given serialization name.
// Unknown names are rejected with ErrUnknownKind; there is no fallback kind.
func ParseKind(name string) (Kind, error) {
	k, ok := kindsByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
