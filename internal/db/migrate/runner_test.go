package migrate

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/moneywright/moneywright/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", "up")
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if err.Error() == "" {
		t.Error("error message should not be empty")
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	testCases := []struct {
		name      string
		direction string
	}{
		{"empty", ""},
		{"invalid", "invalid"},
		{"upcase", "UP"},
		{"mixed", "Up"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Run("postgres://localhost/test", tc.direction)
			if err == nil {
				t.Errorf("Run with direction %q should return error", tc.direction)
			}
		})
	}
}

func TestRun_SQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "moneywright.db")

	if err := Run(path, "up"); err != nil {
		t.Fatalf("Run up: %v", err)
	}
	// Up again is a no-op, not an error.
	if err := Run(path, "up"); err != nil {
		t.Fatalf("Run up (second): %v", err)
	}

	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, table := range []string{"users", "sessions", "pin_credentials", "audit_events"} {
		var name string
		err := d.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s should exist after up: %v", table, err)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := Run(path, "down"); err != nil {
		t.Fatalf("Run down: %v", err)
	}

	d, err = db.Open(path)
	if err != nil {
		t.Fatalf("Open after down: %v", err)
	}
	defer d.Close()
	var n int
	err = d.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'sessions'`).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if n != 0 {
		t.Error("sessions table should not exist after down")
	}
}

func TestErrNoChange(t *testing.T) {
	if ErrNoChange == nil {
		t.Fatal("ErrNoChange should not be nil")
	}
	if !errors.Is(ErrNoChange, ErrNoChange) {
		t.Error("ErrNoChange should be errors.Is compatible")
	}
}
