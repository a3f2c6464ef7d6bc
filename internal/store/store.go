// Package store provides SQLite storage for gesture bindings and the history
// of stable gesture changes.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// busyTimeoutMs is how long a write waits for another process holding the
// database, such as 'mudra events' reading while 'mudra run' records.
const busyTimeoutMs = 5000

// Store represents a SQLite database connection.
type Store struct {
	db   *sql.DB
	path string

	// maxEvents caps the event history; 0 keeps everything.
	maxEvents int
	// sincePrune counts events recorded since the history was last trimmed.
	sincePrune atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEvents keeps roughly the newest n events. The history is trimmed
// back to n once it grows a tenth past it. n <= 0 keeps every event.
func WithMaxEvents(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEvents = n
		}
	}
}

// New opens the database at dbPath, creating it if needed, and brings the
// schema up to date.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; the frame loop and the API share it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// MaxEvents returns the event history cap, 0 when unbounded.
func (s *Store) MaxEvents() int {
	return s.maxEvents
}

// pruneSlack is how many events may pile up past maxEvents before a trim.
func (s *Store) pruneSlack() int64 {
	if slack := s.maxEvents / 10; slack > 1 {
		return int64(slack)
	}
	return 1
}
