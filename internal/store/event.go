package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Event records one committed gesture change and what the dispatcher did.
type Event struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Previous  string    `json:"previous"`
	Mode      string    `json:"mode"`
	Status    string    `json:"status"`
	Action    string    `json:"action,omitempty"`
	Frame     int64     `json:"frame"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRepository stores the gesture change history.
type EventRepository struct {
	db    *sql.DB
	store *Store
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db, store: s}
}

// Record appends an event. CreatedAt defaults to now. When the store caps
// its history, Record trims the oldest events once enough have piled up.
func (r *EventRepository) Record(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO events (label, previous, mode, status, action, frame, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Label, e.Previous, e.Mode, e.Status, e.Action, e.Frame, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	if e.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	if keep := r.store.maxEvents; keep > 0 && r.store.sincePrune.Add(1) >= r.store.pruneSlack() {
		r.store.sincePrune.Store(0)
		if _, err := r.Prune(keep); err != nil {
			return fmt.Errorf("trimming event history: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (r *EventRepository) Recent(limit int) ([]Event, error) {
	rows, err := r.db.Query(
		`SELECT id, label, previous, mode, status, action, frame, created_at
		 FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Label, &e.Previous, &e.Mode, &e.Status, &e.Action, &e.Frame, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Count returns the number of stored events.
func (r *EventRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Prune deletes all but the newest keep events and returns how many were removed.
func (r *EventRepository) Prune(keep int) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM events WHERE id NOT IN (SELECT id FROM events ORDER BY id DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
