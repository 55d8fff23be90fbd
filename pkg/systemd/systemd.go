// Package systemd reports service state to systemd via sd_notify.
// Every call is a no-op when the process is not run by systemd.
package systemd

import (
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"remindbot/pkg/logx"
)

type Notifier struct {
	enabled  bool
	log      logx.Logger
	watchdog time.Duration

	mu       sync.Mutex
	lastPing time.Time
}

// NewNotifier reads the watchdog interval from the environment.
func NewNotifier(enabled bool, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{enabled: enabled, log: log.With(logx.String("comp", "systemd"))}
	if !enabled {
		return n
	}
	if wd, err := daemon.SdWatchdogEnabled(false); err != nil {
		n.log.Warn("watchdog interval unreadable", logx.Err(err))
	} else {
		n.watchdog = wd
	}
	return n
}

// Watchdog returns the configured WatchdogSec, or 0.
func (n *Notifier) Watchdog() time.Duration { return n.watchdog }

func (n *Notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }
func (n *Notifier) Status(s string) {
	n.send("STATUS=" + s)
}

// Ping sends a watchdog keep-alive, at most twice per watchdog interval.
func (n *Notifier) Ping(now time.Time) {
	if !n.enabled || n.watchdog <= 0 {
		return
	}
	n.mu.Lock()
	if !n.lastPing.IsZero() && now.Sub(n.lastPing) < n.watchdog/2 {
		n.mu.Unlock()
		return
	}
	n.lastPing = now
	n.mu.Unlock()
	n.send(daemon.SdNotifyWatchdog)
}

func (n *Notifier) send(state string) {
	if !n.enabled {
		return
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if !sent {
		n.log.Debug("sd_notify skipped, no socket", logx.String("state", state))
	}
}
