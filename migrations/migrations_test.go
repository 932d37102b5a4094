package migrations

import (
	"strings"
	"testing"
)

func TestLoad_SortedAndPaired(t *testing.T) {
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(got))
	}

	for i, m := range got {
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %s missing up or down body", m.Version)
		}
		if i > 0 && got[i-1].Version >= m.Version {
			t.Errorf("migrations out of order: %s before %s", got[i-1].Version, m.Version)
		}
	}
}

func TestLoad_PagesSchemaEnforcesUniqueName(t *testing.T) {
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, m := range got {
		if m.Version == "000002_pages" {
			if !strings.Contains(m.Up, "UNIQUE INDEX IF NOT EXISTS pages_name_key") {
				t.Error("pages migration must create the unique name index")
			}
			return
		}
	}
	t.Fatal("pages migration not found")
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in        string
		version   string
		direction string
		ok        bool
	}{
		{"000001_accounts.up.sql", "000001_accounts", "up", true},
		{"000001_accounts.down.sql", "000001_accounts", "down", true},
		{"README.sql", "", "", false},
	}
	for _, tt := range tests {
		v, d, ok := parseName(tt.in)
		if v != tt.version || d != tt.direction || ok != tt.ok {
			t.Errorf("parseName(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, v, d, ok, tt.version, tt.direction, tt.ok)
		}
	}
}
