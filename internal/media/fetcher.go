package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"remindbot/pkg/logx"
)

var (
	ErrTooLarge  = errors.New("media: file too large")
	ErrBadStatus = errors.New("media: unexpected status")
	ErrBadURL    = errors.New("media: unsupported url")
)

// Config controls downloads.
type Config struct {
	Dir          string
	FetchTimeout time.Duration
	MaxBytes     int64
	RatePerSec   int
	RetryMax     int
	RetryBase    time.Duration
}

// Fetcher stores remote files under Dir with random names.
type Fetcher struct {
	cfg     Config
	fs      afero.Fs
	client  *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewFetcher(cfg Config, fs afero.Fs, client *http.Client, log logx.Logger) (*Fetcher, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("media.dir is required")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Fetcher{
		cfg:     cfg,
		fs:      fs,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log.With(logx.String("comp", "media")),
	}, nil
}

// Dir is the directory downloads are written to.
func (f *Fetcher) Dir() string { return f.cfg.Dir }

// Fetch downloads rawURL and returns the local path of the stored file.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrBadURL, rawURL)
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			delay := f.cfg.RetryBase << (attempt - 1)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}

		p, n, err := f.fetchOnce(ctx, u)
		if err == nil {
			f.log.Info("attachment stored", logx.String("path", p), logx.String("size", humanize.Bytes(uint64(n))))
			return p, nil
		}
		lastErr = err
		if errors.Is(err, ErrTooLarge) || ctx.Err() != nil {
			break
		}
		f.log.Debug("attachment fetch failed", logx.String("host", u.Host), logx.Int("attempt", attempt+1), logx.Err(err))
	}
	return "", lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, u *url.URL) (string, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return "", 0, fmt.Errorf("%w: %s > %s", ErrTooLarge, humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(uint64(f.cfg.MaxBytes)))
	}

	name := uuid.NewString() + extension(u, resp.Header.Get("Content-Type"))
	dst := filepath.Join(f.cfg.Dir, name)
	tmp := dst + ".part"

	out, err := f.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > f.cfg.MaxBytes {
		err = fmt.Errorf("%w: over %s", ErrTooLarge, humanize.Bytes(uint64(f.cfg.MaxBytes)))
	}
	if err == nil {
		err = f.fs.Rename(tmp, dst)
	}
	if err != nil {
		_ = f.fs.Remove(tmp)
		return "", 0, err
	}
	return dst, n, nil
}

func extension(u *url.URL, contentType string) string {
	if ext := strings.ToLower(path.Ext(u.Path)); isImageExt(ext) {
		return ext
	}
	if ct, _, err := mime.ParseMediaType(contentType); err == nil {
		switch ct {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/gif":
			return ".gif"
		case "image/webp":
			return ".webp"
		}
	}
	return ".jpg"
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}
