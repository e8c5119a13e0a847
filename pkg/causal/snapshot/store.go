// Package snapshot stores exported graph documents by name, for handing a
// causal history to a bug report or another tool.
//
// Only documents saved explicitly are stored; the live event stream is
// never written here.
package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/causal/pkg/causal/graph"
)

// Store persists graph documents under a name.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores doc under name, replacing any previous document.
	Save(name string, doc *graph.Document) (Info, error)

	// Load retrieves a document.
	// Returns ErrNotFound if name doesn't exist.
	Load(name string) (*graph.Document, error)

	// List returns every stored snapshot, oldest save first.
	// Returns an empty slice (not error) if the store is empty.
	List() ([]Info, error)

	// Delete removes a snapshot.
	// Returns nil if name doesn't exist.
	Delete(name string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a snapshot without loading it.
type Info struct {
	Name       string    `json:"name"`
	EventCount int       `json:"event_count"`
	ExportedAt time.Time `json:"exported_at"`
	SavedAt    time.Time `json:"saved_at"`
	Size       int64     `json:"size"`
}

// Sentinel errors for snapshot operations.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")

	// ErrInvalidName indicates an empty or whitespace-only snapshot name.
	ErrInvalidName = errors.New("invalid snapshot name")
)

// encode validates the name and serializes doc.
func encode(name string, doc *graph.Document) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	data, err := graph.MarshalDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", name, err)
	}
	return data, nil
}

func decode(name string, data []byte) (*graph.Document, error) {
	doc, err := graph.UnmarshalDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return doc, nil
}
