package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Reminder ReminderConfig `json:"reminder"`
	Storage  StorageConfig  `json:"storage"`
	Media    MediaConfig    `json:"media"`
	Notifier NotifierConfig `json:"notifier"`
	Systemd  SystemdConfig  `json:"systemd"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is the long-poll timeout (default "10s").
	PollTimeout string `json:"poll_timeout"`
	// LogChat receives forwarded warn+ logs, as "chat_id" or "chat_id:thread_id".
	LogChat string `json:"log_chat,omitempty"`
	// BotUsername is ignored when choosing a reminder's mention. Resolved from
	// the API when empty.
	BotUsername string `json:"bot_username,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ReminderConfig controls the scheduler loop.
//
// Defaults: poll_interval "10s", save_timeout "5s".
type ReminderConfig struct {
	PollInterval string `json:"poll_interval"`
	SaveTimeout  string `json:"save_timeout"`
}

// StorageConfig selects where reminders are persisted.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/reminders.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// MediaConfig controls attachment downloads and cleanup.
//
// Cleanup is a cron spec ("@daily", "0 4 * * *"); empty disables the janitor.
type MediaConfig struct {
	Dir          string `json:"dir"`
	FetchTimeout string `json:"fetch_timeout"`
	MaxBytes     int64  `json:"max_bytes"`
	RatePerSec   int    `json:"rate_per_sec"`
	RetryMax     int    `json:"retry_max"`
	Cleanup      string `json:"cleanup,omitempty"`
}

type NotifierConfig struct {
	Workers     int    `json:"workers"`
	QueueSize   int    `json:"queue_size"`
	RatePerSec  int    `json:"rate_per_sec"`
	SendTimeout string `json:"send_timeout"`
}

type SystemdConfig struct {
	// Notify sends READY/STOPPING and watchdog pings when running under systemd.
	Notify bool `json:"notify"`
}
