package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"remindbot/pkg/logx"
)

func newTestFetcher(t *testing.T, fs afero.Fs, cfg Config) *Fetcher {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = "/media"
	}
	cfg.RatePerSec = 100
	cfg.RetryBase = time.Millisecond
	f, err := NewFetcher(cfg, fs, nil, logx.Nop())
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}
	return f
}

func TestFetchStoresFile(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	f := newTestFetcher(t, fs, Config{})

	p, err := f.Fetch(context.Background(), srv.URL+"/photo")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if filepath.Dir(p) != "/media" || !strings.HasSuffix(p, ".png") {
		t.Fatalf("Fetch() path = %q", p)
	}
	b, err := afero.ReadFile(fs, p)
	if err != nil || string(b) != "\x89PNG fake" {
		t.Fatalf("stored = %q, %v", b, err)
	}
	if ok, _ := afero.Exists(fs, p+".part"); ok {
		t.Fatal("partial file left behind")
	}
}

func TestFetchRetriesThenFails(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(t, afero.NewMemMapFs(), Config{RetryMax: 2})
	_, err := f.Fetch(context.Background(), srv.URL+"/a.jpg")
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("Fetch() error = %v, want ErrBadStatus", err)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestFetchRejectsOversize(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	f := newTestFetcher(t, fs, Config{MaxBytes: 16, RetryMax: 3})
	if _, err := f.Fetch(context.Background(), srv.URL+"/big.jpg"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Fetch() error = %v, want ErrTooLarge", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
	entries, _ := afero.ReadDir(fs, "/media")
	if len(entries) != 0 {
		t.Fatalf("media dir has %d entries, want 0", len(entries))
	}
}

func TestFetchRejectsBadURL(t *testing.T) {
	t.Parallel()
	f := newTestFetcher(t, afero.NewMemMapFs(), Config{})
	for _, u := range []string{"file:///etc/passwd", "::", ""} {
		if _, err := f.Fetch(context.Background(), u); !errors.Is(err, ErrBadURL) {
			t.Fatalf("Fetch(%q) error = %v, want ErrBadURL", u, err)
		}
	}
}

func TestJanitorSweep(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-2 * time.Hour)

	files := map[string]time.Time{
		"/media/keep.jpg":   old,
		"/media/orphan.jpg": old,
		"/media/fresh.jpg":  now.Add(-time.Minute),
	}
	for p, mt := range files {
		if err := afero.WriteFile(fs, p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := fs.Chtimes(p, mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	j := NewJanitor(fs, "/media", func() map[string]struct{} {
		return map[string]struct{}{"/media/keep.jpg": {}}
	}, logx.Nop())
	j.now = func() time.Time { return now }

	n, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Sweep() removed %d, want 1", n)
	}
	for p, want := range map[string]bool{"/media/keep.jpg": true, "/media/orphan.jpg": false, "/media/fresh.jpg": true} {
		if ok, _ := afero.Exists(fs, p); ok != want {
			t.Fatalf("Exists(%s) = %v, want %v", p, ok, want)
		}
	}
}

func TestJanitorStartRejectsBadSpec(t *testing.T) {
	t.Parallel()
	j := NewJanitor(afero.NewMemMapFs(), "/media", func() map[string]struct{} { return nil }, logx.Nop())
	if err := j.Start(context.Background(), "not a cron"); err == nil {
		t.Fatal("expected parse error")
	}
	if err := j.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start(\"\") error = %v", err)
	}
	if err := j.Start(context.Background(), "@daily"); err != nil {
		t.Fatalf("Start(@daily) error = %v", err)
	}
	j.Stop(context.Background())
}
