package reminder

import (
	"slices"
	"time"
)

// Task is one daily reminder of a destination.
type Task struct {
	ID       int
	TimeSpec string
	Content  string

	Countdown   *Countdown // nil when the task never expires
	Mention     string     // opaque recipient id, "" when absent
	Attachments []string   // local media paths

	// uid identifies the task within the store for its lifetime, across renumbering.
	uid uint64
}

func (t Task) clone() Task {
	out := t
	if t.Countdown != nil {
		c := *t.Countdown
		out.Countdown = &c
	}
	out.Attachments = slices.Clone(t.Attachments)
	return out
}

// TaskView is a task as presented by List, with its remaining days resolved.
type TaskView struct {
	Task
	// DaysLeft is meaningful only when Countdown is set.
	DaysLeft int
}

func viewOf(t Task, today time.Time) TaskView {
	v := TaskView{Task: t.clone()}
	if t.Countdown != nil {
		v.DaysLeft = t.Countdown.DaysLeft(today)
	}
	return v
}
