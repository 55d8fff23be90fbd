package systemd

import (
	"testing"
	"time"

	"remindbot/pkg/logx"
)

func TestNotifierWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	n := NewNotifier(true, logx.Nop())
	if n.Watchdog() != 0 {
		t.Fatalf("Watchdog() = %v, want 0", n.Watchdog())
	}
	n.Ready()
	n.Status("ok")
	n.Ping(time.Now())
	n.Stopping()
}

func TestPingThrottled(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewNotifier(true, logx.Nop())
	n.watchdog = 20 * time.Second

	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	n.Ping(base)
	n.Ping(base.Add(5 * time.Second))
	if !n.lastPing.Equal(base) {
		t.Fatalf("lastPing = %v, want %v", n.lastPing, base)
	}
	n.Ping(base.Add(10 * time.Second))
	if want := base.Add(10 * time.Second); !n.lastPing.Equal(want) {
		t.Fatalf("lastPing = %v, want %v", n.lastPing, want)
	}
}

func TestDisabledIsSilent(t *testing.T) {
	n := NewNotifier(false, logx.Nop())
	n.watchdog = time.Second
	n.Ping(time.Now())
	if !n.lastPing.IsZero() {
		t.Fatal("disabled notifier should not record pings")
	}
}
