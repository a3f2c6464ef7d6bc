package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Binding is a persisted gesture-to-action mapping.
type Binding struct {
	ID           string
	Mode         string // empty applies in every mode
	Label        string
	Action       string // action name used in logs and cooldown tracking
	PluginName   string // empty for the built-in print action
	PluginAction string
	Params       json.RawMessage
	CooldownMs   int64
	NextMode     string
	Enabled      bool
	CreatedAt    time.Time
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, mode, label, action, plugin_name, plugin_action, params, cooldown_ms, next_mode, enabled, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (*Binding, error) {
	b := &Binding{}
	var params string
	var enabled int

	err := row.Scan(&b.ID, &b.Mode, &b.Label, &b.Action, &b.PluginName, &b.PluginAction,
		&params, &b.CooldownMs, &b.NextMode, &enabled, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	b.Params = json.RawMessage(params)
	b.Enabled = enabled != 0
	return b, nil
}

func paramsOrEmpty(p json.RawMessage) string {
	if len(p) == 0 {
		return "{}"
	}
	return string(p)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// Create inserts a new binding into the database.
func (r *BindingRepository) Create(b *Binding) error {
	b.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Mode, b.Label, b.Action, b.PluginName, b.PluginAction,
		paramsOrEmpty(b.Params), b.CooldownMs, b.NextMode, boolInt(b.Enabled), b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves all bindings ordered by mode then label.
func (r *BindingRepository) List() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY mode, label`)
}

// ListEnabled retrieves the bindings the dispatcher should load.
func (r *BindingRepository) ListEnabled() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings WHERE enabled = 1 ORDER BY mode, label`)
}

func (r *BindingRepository) query(q string, args ...any) ([]*Binding, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Count returns the number of stored bindings.
func (r *BindingRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM bindings`).Scan(&n)
	return n, err
}

// Seed inserts bindings in one transaction, but only when the table is empty.
// It reports whether anything was written.
func (r *BindingRepository) Seed(bindings []*Binding) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM bindings`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	stmt, err := tx.Prepare(`INSERT INTO bindings (` + bindingColumns + `)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	now := time.Now()
	for _, b := range bindings {
		b.CreatedAt = now
		if _, err := stmt.Exec(b.ID, b.Mode, b.Label, b.Action, b.PluginName, b.PluginAction,
			paramsOrEmpty(b.Params), b.CooldownMs, b.NextMode, boolInt(b.Enabled), b.CreatedAt); err != nil {
			return false, err
		}
	}

	return true, tx.Commit()
}

// Update updates an existing binding in the database.
func (r *BindingRepository) Update(b *Binding) error {
	result, err := r.db.Exec(
		`UPDATE bindings SET mode = ?, label = ?, action = ?, plugin_name = ?, plugin_action = ?,
		 params = ?, cooldown_ms = ?, next_mode = ?, enabled = ?
		 WHERE id = ?`,
		b.Mode, b.Label, b.Action, b.PluginName, b.PluginAction,
		paramsOrEmpty(b.Params), b.CooldownMs, b.NextMode, boolInt(b.Enabled), b.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a binding from the database by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
