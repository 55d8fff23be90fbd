package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/media"
	"remindbot/internal/notifier"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

// Settings is Config with durations parsed and defaults applied.
type Settings struct {
	Token        string
	PollTimeout  time.Duration
	LogChat      transport.ChatTarget
	BotUsername  string
	PollInterval time.Duration
	SaveTimeout  time.Duration
	MediaCleanup string
	Notify       bool

	Logging  logx.Config
	Storage  storage.Config
	Media    media.Config
	Notifier notifier.Config
}

// Resolve validates cfg and converts it to runtime settings.
func Resolve(cfg *Config) (*Settings, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	var errs []error
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := durationOrDefault(path, raw, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	s := &Settings{
		Token:        strings.TrimSpace(cfg.Telegram.Token),
		PollTimeout:  dur("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second),
		BotUsername:  strings.TrimPrefix(strings.TrimSpace(cfg.Telegram.BotUsername), "@"),
		PollInterval: dur("reminder.poll_interval", cfg.Reminder.PollInterval, 10*time.Second),
		SaveTimeout:  dur("reminder.save_timeout", cfg.Reminder.SaveTimeout, 5*time.Second),
		MediaCleanup: strings.TrimSpace(cfg.Media.Cleanup),
		Notify:       cfg.Systemd.Notify,
		Logging:      LoggingOf(cfg),
		Storage: storage.Config{
			Driver:      strings.TrimSpace(cfg.Storage.Driver),
			Path:        strings.TrimSpace(cfg.Storage.Path),
			BusyTimeout: dur("storage.busy_timeout", cfg.Storage.BusyTimeout, 0),
		},
		Media: media.Config{
			Dir:          strings.TrimSpace(cfg.Media.Dir),
			FetchTimeout: dur("media.fetch_timeout", cfg.Media.FetchTimeout, 30*time.Second),
			MaxBytes:     cfg.Media.MaxBytes,
			RatePerSec:   cfg.Media.RatePerSec,
			RetryMax:     cfg.Media.RetryMax,
		},
		Notifier: notifier.Config{
			Workers:     cfg.Notifier.Workers,
			QueueSize:   cfg.Notifier.QueueSize,
			RatePerSec:  cfg.Notifier.RatePerSec,
			SendTimeout: dur("notifier.send_timeout", cfg.Notifier.SendTimeout, 10*time.Second),
		},
	}

	if s.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if lc := strings.TrimSpace(cfg.Telegram.LogChat); lc != "" {
		t, err := transport.ParseTarget(lc)
		if err != nil {
			errs = append(errs, fmt.Errorf("telegram.log_chat: %w", err))
		}
		s.LogChat = t
	}
	if s.Logging.Chat.Enabled && s.LogChat.IsZero() {
		errs = append(errs, errors.New("logging.chat.enabled requires telegram.log_chat"))
	}
	if s.Storage.Path == "" {
		s.Storage.Path = "data/reminders.json"
		if strings.EqualFold(s.Storage.Driver, "sqlite") {
			s.Storage.Path = "data/reminders.db"
		}
	}
	switch strings.ToLower(s.Storage.Driver) {
	case "", "file", "json", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Storage.Driver))
	}
	if s.Media.Dir == "" {
		s.Media.Dir = "data/media"
	}
	if s.Media.MaxBytes < 0 {
		errs = append(errs, errors.New("media.max_bytes must be >= 0"))
	}
	if s.PollInterval < time.Second || s.PollInterval > 30*time.Second {
		// Ticks further apart than a minute could miss a trigger entirely.
		errs = append(errs, fmt.Errorf("reminder.poll_interval must be between 1s and 30s, got %s", s.PollInterval))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// LoggingOf extracts the logging section. It is the only hot-reloadable part.
func LoggingOf(cfg *Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}
}

func durationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
