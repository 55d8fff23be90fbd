package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAppConfigErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"missing token", "config.json", `{"telegram":{"token":""}}`, "telegram.token is required"},
		{"unknown field", "config.json", `{"telegram":{"token":"x"},"bogus":1}`, "unknown field"},
		{"bad driver", "config.yaml", "telegram:\n  token: x\nstorage:\n  driver: mongo\n", "unknown driver"},
		{"bad interval", "config.json", `{"telegram":{"token":"x"},"reminder":{"poll_interval":"2m"}}`, "poll_interval"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(p, []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := NewApp(p)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("NewApp() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewAppMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := NewApp(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("NewApp() error = nil, want missing file error")
	}
}
