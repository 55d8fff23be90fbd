package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/commands"
	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/media"
	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/internal/transport/telegram"
	"remindbot/pkg/logx"
	"remindbot/pkg/systemd"
)

type App struct {
	cfgm *config.ConfigManager
	set  *config.Settings
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	backend storage.Backend
	store   *reminder.Store
	svc     *reminder.Service
	sched   *reminder.Scheduler

	adapter *telegram.Adapter
	notif   *notifier.Service
	fetcher *media.Fetcher
	janitor *media.Janitor
	disp    *commands.Dispatcher
	sd      *systemd.Notifier

	updates chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	set, err := config.Resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	bootLog := logx.NewConsole("INFO")
	ad, err := telegram.New(telegram.Config{Token: set.Token, PollTimeout: set.PollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	// Chat logging starts disabled so Apply does not warn before the target is set.
	baseLogCfg := set.Logging
	baseLogCfg.Chat.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	logSvc.SetChatTarget(set.LogChat)
	logSvc.Apply(set.Logging)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	backend, err := storage.Open(set.Storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	ropts := []reminder.Option{
		reminder.WithLogger(log.With(logx.String("comp", "reminder"))),
		reminder.WithBus(bus),
		reminder.WithSaveTimeout(set.SaveTimeout),
	}
	store := reminder.NewStore(backend, ropts...)

	fetcher, err := media.NewFetcher(set.Media, nil, nil, log)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	janitor := media.NewJanitor(nil, fetcher.Dir(), store.Attachments, log)
	notif := notifier.New(set.Notifier, ad, log, bus)
	sd := systemd.NewNotifier(set.Notify, log)

	svc := reminder.NewService(store, append(ropts, reminder.WithFetcher(fetcher))...)
	sched := reminder.NewScheduler(store, notif, append(ropts,
		reminder.WithPollInterval(set.PollInterval),
		reminder.WithTickHook(sd.Ping),
	)...)

	botName := set.BotUsername
	if botName == "" {
		botName = ad.Username()
	}
	disp := commands.New(svc, ad, log, commands.WithBotUsername(botName))

	return &App{
		cfgm:    cfgm,
		set:     set,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		backend: backend,
		store:   store,
		svc:     svc,
		sched:   sched,
		adapter: ad,
		notif:   notif,
		fetcher: fetcher,
		janitor: janitor,
		disp:    disp,
		sd:      sd,
		updates: make(chan transport.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	lctx, cancel := context.WithTimeout(ctx, a.set.SaveTimeout)
	n := a.store.Load(lctx)
	cancel()
	a.log.Info("reminders loaded", logx.Int("tasks", n), logx.String("driver", a.set.Storage.Driver), logx.String("path", a.set.Storage.Path))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		_, err := config.Resolve(cfg)
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.notif.Start(a.sup.Context())
	if err := a.janitor.Start(a.sup.Context(), a.set.MediaCleanup); err != nil {
		return fmt.Errorf("media.cleanup: %w", err)
	}

	a.sup.Go("reminder.scheduler", a.sched.Run)
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.disp.Run(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				// Debug level; a busy chat fires many reminders.
				a.log.Debug("event",
					logx.String("type", e.Type),
					logx.String("dest", e.Destination),
					logx.Int("task_id", e.TaskID),
					logx.Time("time", e.Time),
				)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sd.Ready()
	a.sd.Status(fmt.Sprintf("%d reminders", a.store.Count()))
	a.log.Info("app started", logx.Duration("poll_interval", a.set.PollInterval), logx.Duration("watchdog", a.sd.Watchdog()))
	return nil
}

// applyConfig hot-applies the logging section. Other sections are only
// reported; they take effect on the next restart.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, fields, restart := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields = append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)
	a.log.Debug("config change summary", fields...)

	if set, err := config.Resolve(newCfg); err == nil {
		a.logs.SetChatTarget(set.LogChat)
		a.logs.Apply(set.Logging)
	} else {
		a.log.Warn("invalid config; keeping previous logging", logx.Err(err))
	}
	if restart {
		a.log.Warn("config change requires restart to take effect", logx.String("changed", strings.Join(sections, ",")))
	}
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	a.sup.Cancel()

	var errs []error
	// step bounds one shutdown stage so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				if err := <-done; err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
				}
			}()
		}
	}

	step("adapter", 3*time.Second, a.adapter.Stop)
	// The scheduler and dispatcher exit on cancel; the scheduler saves on its way out.
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("janitor", time.Second, func(c context.Context) error { a.janitor.Stop(c); return nil })
	step("notifier", 3*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("save", a.set.SaveTimeout, a.store.Save)
	step("storage", time.Second, func(context.Context) error { return a.backend.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	if err := a.sup.Err(); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
