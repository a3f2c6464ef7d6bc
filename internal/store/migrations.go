package store

import "fmt"

// schemaVersion is stored in PRAGMA user_version after migrating.
const schemaVersion = 1

// runMigrations creates the schema. Every statement is idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// A gesture label in a mode maps to one action. Mode '' applies in
		// every mode without a binding of its own.
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL CHECK(label <> 'NONE'),
			action TEXT NOT NULL,
			plugin_name TEXT NOT NULL DEFAULT '',
			plugin_action TEXT NOT NULL DEFAULT '',
			params TEXT NOT NULL DEFAULT '{}',
			cooldown_ms INTEGER NOT NULL DEFAULT 0 CHECK(cooldown_ms >= 0),
			next_mode TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(mode, label)
		)`,

		// One row per committed gesture change and what the dispatcher did.
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			previous TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			action TEXT NOT NULL DEFAULT '',
			frame INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`,

		fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion),
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}
