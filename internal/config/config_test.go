package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  log_chat: "-1001:5"
logging:
  level: debug
  console: true
  chat:
    enabled: true
    min_level: warn
reminder:
  poll_interval: 5s
storage:
  driver: sqlite
media:
  cleanup: "@daily"
notifier:
  workers: 3
systemd:
  notify: true
`

func TestDecodeYAMLAndJSON(t *testing.T) {
	t.Parallel()
	y, err := Decode("bot.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode(yaml) error: %v", err)
	}
	if y.Telegram.Token != "123:abc" || y.Reminder.PollInterval != "5s" || y.Notifier.Workers != 3 || !y.Systemd.Notify {
		t.Fatalf("Decode(yaml) = %+v", y)
	}

	j, err := Decode("bot.json", []byte(`{"telegram":{"token":"t"},"storage":{"driver":"file","path":"x.json"}}`))
	if err != nil {
		t.Fatalf("Decode(json) error: %v", err)
	}
	if j.Storage.Path != "x.json" {
		t.Fatalf("Storage.Path = %q", j.Storage.Path)
	}
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		raw  string
	}{
		{name: "unknown json field", file: "c.json", raw: `{"telegram":{"token":"t","owner":1}}`},
		{name: "unknown yaml field", file: "c.yml", raw: "plugins:\n  echo: {}\n"},
		{name: "trailing data", file: "c.json", raw: `{"telegram":{}} {}`},
		{name: "bad yaml", file: "c.yaml", raw: "telegram: [unclosed"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.file, []byte(tt.raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	s, err := Resolve(&Config{Telegram: TelegramConfig{Token: " t ", BotUsername: "@remind_bot"}})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.PollInterval != 10*time.Second || s.SaveTimeout != 5*time.Second || s.PollTimeout != 10*time.Second {
		t.Fatalf("durations = %v %v %v", s.PollInterval, s.SaveTimeout, s.PollTimeout)
	}
	if s.Token != "t" || s.BotUsername != "remind_bot" {
		t.Fatalf("telegram = %q %q", s.Token, s.BotUsername)
	}
	if s.Storage.Path != "data/reminders.json" || s.Media.Dir != "data/media" {
		t.Fatalf("paths = %q %q", s.Storage.Path, s.Media.Dir)
	}
	if s.Notifier.SendTimeout != 10*time.Second {
		t.Fatalf("SendTimeout = %v", s.Notifier.SendTimeout)
	}
}

func TestResolveSample(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("bot.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	s, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.LogChat.ChatID != -1001 || s.LogChat.ThreadID != 5 {
		t.Fatalf("LogChat = %+v", s.LogChat)
	}
	if s.Storage.Path != "data/reminders.db" {
		t.Fatalf("Storage.Path = %q", s.Storage.Path)
	}
	if s.PollInterval != 5*time.Second || s.MediaCleanup != "@daily" {
		t.Fatalf("settings = %+v", s)
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "missing token", cfg: Config{}, want: "telegram.token"},
		{name: "bad duration", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Reminder: ReminderConfig{SaveTimeout: "soon"}}, want: "reminder.save_timeout"},
		{name: "interval too long", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Reminder: ReminderConfig{PollInterval: "2m"}}, want: "poll_interval"},
		{name: "chat log without target", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Logging: LoggingConfig{Chat: LoggingChat{Enabled: true}}}, want: "log_chat"},
		{name: "bad driver", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Storage: StorageConfig{Driver: "redis"}}, want: "storage.driver"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Resolve(&tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Resolve() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := &Config{Telegram: TelegramConfig{Token: "t"}, Logging: LoggingConfig{Level: "info"}}
	b := *a
	b.Logging.Level = "debug"

	changed, _, restart := SummarizeChange(a, &b)
	if len(changed) != 1 || changed[0] != "logging" || restart {
		t.Fatalf("SummarizeChange() = %v restart=%v", changed, restart)
	}

	c := b
	c.Reminder.PollInterval = "20s"
	changed, _, restart = SummarizeChange(&b, &c)
	if len(changed) != 1 || changed[0] != "reminder" || !restart {
		t.Fatalf("SummarizeChange() = %v restart=%v", changed, restart)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bot.json")
	write := func(s string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write(`{"telegram":{"token":"t"},"logging":{"level":"info"}}`)

	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		_, err := Resolve(cfg)
		return err
	})
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Invalid: missing token, must not be published.
	write(`{"logging":{"level":"debug"}}`)
	time.Sleep(600 * time.Millisecond)
	write(`{"telegram":{"token":"t"},"logging":{"level":"debug"}}`)

	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" || cfg.Telegram.Token != "t" {
			t.Fatalf("published = %+v", cfg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("Get().Logging.Level = %q", m.Get().Logging.Level)
	}
}
