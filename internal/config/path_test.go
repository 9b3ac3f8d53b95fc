package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir() error: %v", err)
	}
	t.Setenv("PFENNIG_TEST_DIR", "/var/data")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"bare tilde", "~", home},
		{"tilde prefix", "~/.local/share/pfennig/pfennig.db", filepath.Join(home, ".local/share/pfennig/pfennig.db")},
		{"env var", "$PFENNIG_TEST_DIR/pfennig.db", "/var/data/pfennig.db"},
		{"plain path untouched", "/etc/pfennig/config.yaml", "/etc/pfennig/config.yaml"},
		{"tilde mid-path untouched", "/data/~backup", "/data/~backup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
