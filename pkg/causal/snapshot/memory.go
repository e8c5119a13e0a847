package snapshot

import (
	"sort"
	"sync"
	"time"

	"github.com/randalmurphal/causal/pkg/causal/graph"
)

// MemoryStore keeps snapshots in memory. Data is lost when the process
// exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]storedSnapshot
	seq    int
	closed bool
}

type storedSnapshot struct {
	data     []byte
	info     Info
	sequence int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]storedSnapshot),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(name string, doc *graph.Document) (Info, error) {
	data, err := encode(name, doc)
	if err != nil {
		return Info{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Info{}, ErrStoreClosed
	}

	m.seq++
	info := Info{
		Name:       name,
		EventCount: doc.EventCount,
		ExportedAt: doc.ExportedAt,
		SavedAt:    time.Now().UTC(),
		Size:       int64(len(data)),
	}
	m.data[name] = storedSnapshot{data: data, info: info, sequence: m.seq}
	return info, nil
}

// Load implements Store.
func (m *MemoryStore) Load(name string) (*graph.Document, error) {
	m.mu.RLock()
	stored, ok := m.data[name]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return nil, ErrStoreClosed
	}
	if !ok {
		return nil, ErrNotFound
	}
	// Decoding yields a fresh document each time.
	return decode(name, stored.data)
}

// List implements Store.
func (m *MemoryStore) List() ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	stored := make([]storedSnapshot, 0, len(m.data))
	for _, s := range m.data {
		stored = append(stored, s)
	}
	sort.Slice(stored, func(i, j int) bool {
		return stored[i].sequence < stored[j].sequence
	})

	infos := make([]Info, len(stored))
	for i, s := range stored {
		infos[i] = s.info
	}
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, name)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
