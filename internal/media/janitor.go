package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"

	"remindbot/pkg/logx"
)

// Referenced reports the attachment paths still in use.
type Referenced func() map[string]struct{}

// Janitor removes files in the media directory that no task references.
// Files younger than MinAge are kept so a download in progress for a task
// being created is not swept.
type Janitor struct {
	MinAge time.Duration

	fs     afero.Fs
	dir    string
	refs   Referenced
	log    logx.Logger
	now    func() time.Time
	parser cron.Parser

	mu      sync.Mutex
	c       *cron.Cron
	running bool
}

func NewJanitor(fs afero.Fs, dir string, refs Referenced, log logx.Logger) *Janitor {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Janitor{
		fs:     fs,
		dir:    dir,
		refs:   refs,
		log:    log.With(logx.String("comp", "media.janitor")),
		now:    time.Now,
		MinAge: time.Hour,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Sweep deletes unreferenced files and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	entries, err := afero.ReadDir(j.fs, j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	refs := j.refs()
	cutoff := j.now().Add(-j.MinAge)

	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() || e.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(j.dir, e.Name())
		if _, ok := refs[p]; ok {
			continue
		}
		if err := j.fs.Remove(p); err != nil {
			j.log.Warn("remove orphan attachment failed", logx.String("path", p), logx.Err(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.log.Info("orphan attachments removed", logx.Int("count", removed))
	}
	return removed, nil
}

// Start runs Sweep on the cron spec. An empty spec disables the janitor.
func (j *Janitor) Start(ctx context.Context, spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	sched, err := j.parser.Parse(spec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	j.c = cron.New(cron.WithParser(j.parser), cron.WithLocation(time.Local))
	j.c.Schedule(sched, cron.FuncJob(func() {
		sctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := j.Sweep(sctx); err != nil {
			j.log.Warn("attachment sweep failed", logx.Err(err))
		}
	}))
	j.c.Start()
	j.running = true
	j.log.Info("janitor started", logx.String("spec", spec))
	return nil
}

// Stop waits for a running sweep until ctx is done.
func (j *Janitor) Stop(ctx context.Context) {
	j.mu.Lock()
	c := j.c
	j.c, j.running = nil, false
	j.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}
