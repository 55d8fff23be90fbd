package config

import (
	"strings"

	"remindbot/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs, with
// safe log fields (never the token). restart reports whether any changed
// section only takes effect after a restart.
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, fields []logx.Field, restart bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.chat", newCfg.Logging.Chat.Enabled),
		)
	}
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.Bool("telegram.token_changed", strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token)),
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
		)
		restart = true
	}
	if oldCfg.Reminder != newCfg.Reminder {
		changed = append(changed, "reminder")
		fields = append(fields, logx.String("reminder.poll_interval", newCfg.Reminder.PollInterval))
		restart = true
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
		restart = true
	}
	if oldCfg.Media != newCfg.Media {
		changed = append(changed, "media")
		restart = true
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		restart = true
	}
	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
		restart = true
	}
	return changed, fields, restart
}
