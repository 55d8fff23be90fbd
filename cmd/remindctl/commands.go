package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"remindbot/internal/config"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	"remindbot/pkg/logx"
)

// Context is shared by every subcommand.
type Context struct {
	Source storage.Config
	Out    io.Writer
	Log    logx.Logger
	Now    func() time.Time
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func cliLogger(debug bool) logx.Logger {
	if !debug {
		return logx.Nop()
	}
	return logx.NewWriter(os.Stderr, "DEBUG")
}

// sourceConfig picks the storage to read. A config file wins over the flags.
func sourceConfig(cfgPath, driver, path string) (storage.Config, error) {
	if strings.TrimSpace(cfgPath) == "" {
		return storage.Config{Driver: driver, Path: path}, nil
	}
	cfg, err := config.NewConfigManager(cfgPath).Parse()
	if err != nil {
		return storage.Config{}, err
	}
	sc := storage.Config{Driver: strings.TrimSpace(cfg.Storage.Driver), Path: strings.TrimSpace(cfg.Storage.Path)}
	if sc.Path == "" {
		sc.Path = "data/reminders.json"
		if strings.EqualFold(sc.Driver, "sqlite") || strings.EqualFold(sc.Driver, "sqlite3") {
			sc.Path = "data/reminders.db"
		}
	}
	return sc, nil
}

func loadStore(ctx context.Context, c *Context) (*reminder.Store, func() error, error) {
	backend, err := storage.Open(c.Source, c.Log)
	if err != nil {
		return nil, nil, err
	}
	store := reminder.NewStore(backend, reminder.WithLogger(c.Log))
	store.Load(ctx)
	return store, backend.Close, nil
}

type ListCmd struct {
	Dest string `help:"Only this destination (\"chat\" or \"chat:thread\")." short:"d"`
}

func (cmd *ListCmd) Run(c *Context) error {
	ctx := context.Background()
	store, closeFn, err := loadStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()

	dests := store.Destinations()
	if cmd.Dest != "" {
		dests = []string{cmd.Dest}
	}
	fs := afero.NewOsFs()
	today := c.now()
	total := 0

	w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEST\tID\tTIME\tCONTENT\tMENTION\tDAYS LEFT\tATTACHMENTS")
	for _, d := range dests {
		for _, t := range store.Tasks(d) {
			total++
			days := "-"
			if t.Countdown != nil {
				days = fmt.Sprint(t.Countdown.DaysLeft(today))
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				d, t.ID, t.TimeSpec, t.Content, orDash(t.Mention), days, attachmentSummary(fs, t.Attachments))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s reminders in %s destinations\n", humanize.Comma(int64(total)), humanize.Comma(int64(len(dests))))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// attachmentSummary renders "2 (1.2 MB)"; missing files count toward n but not size.
func attachmentSummary(fs afero.Fs, paths []string) string {
	if len(paths) == 0 {
		return "-"
	}
	var size int64
	missing := 0
	for _, p := range paths {
		fi, err := fs.Stat(p)
		if err != nil {
			missing++
			continue
		}
		size += fi.Size()
	}
	s := fmt.Sprintf("%d (%s)", len(paths), humanize.Bytes(uint64(size)))
	if missing > 0 {
		s += fmt.Sprintf(", %d missing", missing)
	}
	return s
}

type ExportCmd struct {
	Output string `help:"Write to this file instead of stdout." short:"o" type:"path"`
}

func (cmd *ExportCmd) Run(c *Context) error {
	backend, err := storage.Open(c.Source, c.Log)
	if err != nil {
		return err
	}
	defer backend.Close()

	doc, err := backend.Load(context.Background())
	if errors.Is(err, storage.ErrNoState) {
		doc = storage.NewDocument()
	} else if err != nil {
		return err
	}
	raw, err := storage.EncodeDocument(doc)
	if err != nil {
		return err
	}
	if cmd.Output == "" {
		_, err = c.Out.Write(append(raw, '\n'))
		return err
	}
	if err := os.WriteFile(cmd.Output, raw, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "exported %d tasks (%s) to %s\n", doc.Count(), humanize.Bytes(uint64(len(raw))), cmd.Output)
	return nil
}

type MigrateCmd struct {
	ToDriver string `help:"Target driver." required:"" enum:"file,json,sqlite,sqlite3" name:"to-driver"`
	ToPath   string `help:"Target path." required:"" name:"to-path"`
	Force    bool   `help:"Overwrite a target that already holds reminders."`

	// fs overrides the file backend filesystem in tests.
	fs afero.Fs `kong:"-"`
}

func (cmd *MigrateCmd) Run(c *Context) error {
	ctx := context.Background()
	dst := storage.Config{Driver: cmd.ToDriver, Path: cmd.ToPath, Fs: cmd.fs}
	if sameStorage(c.Source, dst) {
		return errors.New("source and target are the same storage")
	}

	src, err := storage.Open(c.Source, c.Log)
	if err != nil {
		return err
	}
	defer src.Close()
	doc, err := src.Load(ctx)
	if errors.Is(err, storage.ErrNoState) {
		return fmt.Errorf("nothing to migrate: %s is empty", c.Source.Path)
	}
	if err != nil {
		return err
	}

	target, err := storage.Open(dst, c.Log)
	if err != nil {
		return err
	}
	defer target.Close()
	if existing, err := target.Load(ctx); err == nil && existing.Count() > 0 && !cmd.Force {
		return fmt.Errorf("target %s already holds %d tasks (use --force)", cmd.ToPath, existing.Count())
	}

	// Round trip through the reminder store so counters and countdowns are normalized.
	store := reminder.NewStore(target, reminder.WithLogger(c.Log))
	n := store.Import(doc)
	if err := store.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "migrated %d tasks in %d destinations to %s (%s)\n", n, len(store.Destinations()), cmd.ToPath, cmd.ToDriver)
	return nil
}

func sameStorage(a, b storage.Config) bool {
	norm := func(d string) string {
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "", "file", "json":
			return "file"
		default:
			return "sqlite"
		}
	}
	return norm(a.Driver) == norm(b.Driver) && strings.TrimSpace(a.Path) == strings.TrimSpace(b.Path)
}
