package snapshot

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/causal/pkg/causal/graph"
)

// SQLiteStore persists snapshots to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a snapshot database.
// The path should be a file path (e.g., "./snapshots.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			name TEXT PRIMARY KEY,
			sequence INTEGER NOT NULL,
			event_count INTEGER NOT NULL,
			exported_at TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(name string, doc *graph.Document) (Info, error) {
	data, err := encode(name, doc)
	if err != nil {
		return Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Info{}, ErrStoreClosed
	}

	info := Info{
		Name:       name,
		EventCount: doc.EventCount,
		ExportedAt: doc.ExportedAt.UTC(),
		SavedAt:    time.Now().UTC(),
		Size:       int64(len(data)),
	}

	_, err = s.db.Exec(`
		INSERT INTO snapshots (name, sequence, event_count, exported_at, saved_at, data)
		VALUES (
			?,
			COALESCE((SELECT MAX(sequence) FROM snapshots), 0) + 1,
			?, ?, ?, ?
		)
		ON CONFLICT(name) DO UPDATE SET
			sequence = (SELECT MAX(sequence) FROM snapshots) + 1,
			event_count = excluded.event_count,
			exported_at = excluded.exported_at,
			saved_at = excluded.saved_at,
			data = excluded.data
	`, name, info.EventCount,
		info.ExportedAt.Format(time.RFC3339Nano),
		info.SavedAt.Format(time.RFC3339Nano),
		data)
	if err != nil {
		return Info{}, fmt.Errorf("save snapshot: %w", err)
	}
	return info, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(name string) (*graph.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return decode(name, data)
}

// List implements Store.
func (s *SQLiteStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT name, event_count, exported_at, saved_at, LENGTH(data)
		FROM snapshots
		ORDER BY sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var (
			info               Info
			exportedAt, saveAt string
		)
		if err := rows.Scan(&info.Name, &info.EventCount, &exportedAt, &saveAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan snapshot info: %w", err)
		}
		info.ExportedAt, _ = time.Parse(time.RFC3339Nano, exportedAt)
		info.SavedAt, _ = time.Parse(time.RFC3339Nano, saveAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Open returns a SQLite store at path, or a memory store when path is empty.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(path)
}
