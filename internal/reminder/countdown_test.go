package reminder

import (
	"testing"
	"time"
)

func TestCountdownDaysLeft(t *testing.T) {
	t.Parallel()
	start := day(2026, 3, 7, 22, 15, 0)
	c := NewCountdown(3, start)

	tests := []struct {
		name    string
		today   time.Time
		want    int
		expired bool
	}{
		{name: "same day", today: day(2026, 3, 7, 23, 59, 0), want: 3},
		{name: "next morning", today: day(2026, 3, 8, 0, 1, 0), want: 2},
		{name: "two days", today: day(2026, 3, 9, 12, 0, 0), want: 1},
		{name: "three days", today: day(2026, 3, 10, 0, 0, 0), want: 0, expired: true},
		{name: "long after", today: day(2026, 4, 10, 0, 0, 0), want: -31, expired: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := c.DaysLeft(tt.today); got != tt.want {
				t.Fatalf("DaysLeft() = %d, want %d", got, tt.want)
			}
			if got := c.Expired(tt.today); got != tt.expired {
				t.Fatalf("Expired() = %v, want %v", got, tt.expired)
			}
		})
	}

	var none *Countdown
	if none.Expired(start) {
		t.Fatal("nil countdown must never expire")
	}
}
