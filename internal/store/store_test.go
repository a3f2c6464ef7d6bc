package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mudra.db")
	if _, err := os.Stat(dbPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("database file should not exist before New")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != schemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", v, schemaVersion)
	}
}

func TestNew_Columns(t *testing.T) {
	s := newTestStore(t)

	want := map[string][]string{
		"bindings": {"id", "mode", "label", "action", "plugin_name", "plugin_action", "params", "cooldown_ms", "next_mode", "enabled", "created_at"},
		"events":   {"id", "label", "previous", "mode", "status", "action", "frame", "created_at"},
	}

	for table, cols := range want {
		rows, err := s.DB().Query(`SELECT name FROM pragma_table_info(?)`, table)
		if err != nil {
			t.Fatalf("table_info(%s) error = %v", table, err)
		}
		var got []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				t.Fatal(err)
			}
			got = append(got, name)
		}
		rows.Close()

		if len(got) != len(cols) {
			t.Errorf("%s columns = %v, want %v", table, got, cols)
			continue
		}
		for i := range cols {
			if got[i] != cols[i] {
				t.Errorf("%s column %d = %q, want %q", table, i, got[i], cols[i])
			}
		}
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mudra.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Bindings().Create(&Binding{ID: "b1", Mode: "default", Label: "OPEN_PALM", Action: "play-pause"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Events().Record(&Event{Label: "OPEN_PALM", Previous: "NONE", Status: "fired", Action: "play-pause"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	s.Close()

	// Migrations run again on every open and must not touch existing rows.
	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	if n, _ := s.Bindings().Count(); n != 1 {
		t.Errorf("bindings after reopen = %d, want 1", n)
	}
	if n, _ := s.Events().Count(); n != 1 {
		t.Errorf("events after reopen = %d, want 1", n)
	}
}

func TestNew_BadPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "dir", "mudra.db")
	if s, err := New(dbPath); err == nil {
		s.Close()
		t.Error("expected error for a database in a missing directory")
	}
}

func TestWithMaxEvents_CapsHistory(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "mudra.db"), WithMaxEvents(5))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	if s.MaxEvents() != 5 {
		t.Fatalf("MaxEvents() = %d, want 5", s.MaxEvents())
	}

	repo := s.Events()
	for i := 0; i < 12; i++ {
		if err := repo.Record(&Event{Label: "FIST", Previous: "NONE", Status: "fired", Frame: int64(i)}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	if n, _ := repo.Count(); n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}
	events, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) == 0 || events[0].Frame != 11 || events[len(events)-1].Frame != 7 {
		t.Errorf("expected the newest frames 11..7 to survive, got %+v", events)
	}
}

func TestWithMaxEvents_TrimsInBatches(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "mudra.db"), WithMaxEvents(50))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	// A cap of 50 allows 5 extra events before a trim.
	repo := s.Events()
	for i := 0; i < 54; i++ {
		if err := repo.Record(&Event{Label: "POINTING", Previous: "NONE", Status: "fired"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if n, _ := repo.Count(); n != 54 {
		t.Fatalf("Count() = %d before the slack is used up, want 54", n)
	}

	if err := repo.Record(&Event{Label: "POINTING", Previous: "NONE", Status: "fired"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if n, _ := repo.Count(); n != 50 {
		t.Errorf("Count() = %d after the trim, want 50", n)
	}
}

func TestWithMaxEvents_ZeroKeepsEverything(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "mudra.db"), WithMaxEvents(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	for i := 0; i < 20; i++ {
		if err := s.Events().Record(&Event{Label: "PINCH", Previous: "NONE", Status: "ignored"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if n, _ := s.Events().Count(); n != 20 {
		t.Errorf("Count() = %d, want 20", n)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "mudra.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.DB().Ping(); err == nil {
		t.Error("expected error using a closed store")
	}
}
