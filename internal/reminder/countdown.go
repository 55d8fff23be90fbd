package reminder

import "time"

const dateLayout = "2006-01-02"

// Countdown limits a task to a number of days starting at StartDate.
type Countdown struct {
	Days      int
	StartDate time.Time // local midnight
}

// NewCountdown starts a countdown of days on the calendar date of today.
func NewCountdown(days int, today time.Time) *Countdown {
	return &Countdown{Days: days, StartDate: dateOf(today)}
}

// DaysLeft is Days minus the whole calendar days elapsed since StartDate.
func (c *Countdown) DaysLeft(today time.Time) int {
	return c.Days - daysBetween(c.StartDate, today)
}

func (c *Countdown) Expired(today time.Time) bool {
	return c != nil && c.DaysLeft(today) <= 0
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, ignoring clock time and DST.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
