package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/mo"
	_ "modernc.org/sqlite"
)

var ErrBackendClosed = errors.New("state backend closed")

// SavedState is the committer state persisted for one completed barrier.
type SavedState struct {
	CheckpointID uint64
	RunID        string
	Data         []byte
	SavedAt      time.Time
}

// StateBackend persists committer state between job runs.
type StateBackend interface {
	Save(ctx context.Context, s SavedState) error
	// Latest returns the most recently saved state.
	Latest(ctx context.Context) (mo.Option[SavedState], error)
	Close() error
}

// ------------------------------------------------
// MemoryBackend
// ------------------------------------------------

// MemoryBackend keeps saved states in memory. Restarting a job against the
// same MemoryBackend within a process restores it.
type MemoryBackend struct {
	mu     sync.Mutex
	states []SavedState
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Save(_ context.Context, s SavedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	s.Data = slices.Clone(s.Data)
	m.states = append(m.states, s)
	return nil
}

func (m *MemoryBackend) Latest(_ context.Context) (mo.Option[SavedState], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return mo.None[SavedState](), ErrBackendClosed
	}
	if len(m.states) == 0 {
		return mo.None[SavedState](), nil
	}
	return mo.Some(m.states[len(m.states)-1]), nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ------------------------------------------------
// SQLiteBackend
// ------------------------------------------------

// SQLiteBackend persists saved states to a SQLite database. The path is a
// file path or ":memory:" for tests.
type SQLiteBackend struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS committer_states (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			checkpoint_id INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Save(ctx context.Context, state SavedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrBackendClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO committer_states (checkpoint_id, run_id, saved_at, data)
		VALUES (?, ?, ?, ?)
	`, int64(state.CheckpointID), state.RunID, state.SavedAt.UTC().Format(time.RFC3339Nano), state.Data)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Latest(ctx context.Context) (mo.Option[SavedState], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return mo.None[SavedState](), ErrBackendClosed
	}

	var (
		state        SavedState
		checkpointID int64
		savedAt      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT checkpoint_id, run_id, saved_at, data FROM committer_states
		ORDER BY seq DESC LIMIT 1
	`).Scan(&checkpointID, &state.RunID, &savedAt, &state.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[SavedState](), nil
	}
	if err != nil {
		return mo.None[SavedState](), fmt.Errorf("load state: %w", err)
	}
	state.CheckpointID = uint64(checkpointID)
	state.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	return mo.Some(state), nil
}

func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
