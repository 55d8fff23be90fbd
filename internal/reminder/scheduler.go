package reminder

import (
	"context"
	"fmt"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

// Deliverer hands a rendered message to the outbound pipeline. It must not
// wait for the send to complete.
type Deliverer interface {
	Deliver(ctx context.Context, dest string, segs []transport.Segment) error
}

// Scheduler polls the clock and fires due tasks.
//
// Only the goroutine running Run (or calling Tick) touches fired and lastDate.
type Scheduler struct {
	store   *Store
	deliver Deliverer
	bus     eventbus.Bus
	log     logx.Logger

	now      func() time.Time
	interval time.Duration
	onTick   func(time.Time)

	fired    map[string]struct{}
	lastDate string
}

func NewScheduler(store *Store, deliver Deliverer, opts ...Option) *Scheduler {
	o := buildOptions(opts)
	return &Scheduler{
		store:    store,
		deliver:  deliver,
		bus:      o.bus,
		log:      o.log.With(logx.String("comp", "reminder.scheduler")),
		now:      o.now,
		interval: o.interval,
		onTick:   o.onTick,
		fired:    map[string]struct{}{},
	}
}

// Run ticks until ctx is canceled, then saves the table once more and returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", logx.Duration("interval", s.interval))
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping, final save")
			_ = s.store.Save(context.WithoutCancel(ctx))
			return nil
		case <-timer.C:
		}

		s.Tick(ctx)
		timer.Reset(s.interval)
	}
}

// Tick runs one evaluation pass over every task.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	date := now.Format(dateLayout)
	if date != s.lastDate {
		if s.lastDate != "" {
			s.log.Debug("day rolled over, dedup reset", logx.String("date", date), logx.Int("cleared", len(s.fired)))
		}
		clear(s.fired)
		s.lastDate = date
	}

	// Saves started by a tick complete even if shutdown begins mid-tick.
	saveCtx := context.WithoutCancel(ctx)
	for _, dest := range s.store.Destinations() {
		for _, t := range s.store.Tasks(dest) {
			s.evaluate(ctx, saveCtx, dest, t, now, date)
		}
	}

	if s.onTick != nil {
		s.onTick(now)
	}
}

func (s *Scheduler) evaluate(ctx, saveCtx context.Context, dest string, t Task, now time.Time, date string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task evaluation panicked", logx.String("dest", dest), logx.Int("task_id", t.ID), logx.Any("panic", r))
		}
	}()

	daysLeft := 0
	if t.Countdown != nil {
		daysLeft = t.Countdown.DaysLeft(now)
		if t.Countdown.Expired(now) {
			if s.store.expire(dest, t.uid, now) {
				s.log.Info("reminder expired", logx.String("dest", dest), logx.Int("task_id", t.ID), logx.String("content", t.Content))
				s.bus.Publish(eventbus.Event{Type: eventbus.TypeReminderExpired, Destination: dest, TaskID: t.ID})
				_ = s.store.Save(saveCtx)
			}
			return
		}
	}

	hour, minute, err := ParseTime(t.TimeSpec)
	if err != nil {
		s.log.Warn("unparsable time spec, skipped", logx.String("dest", dest), logx.Int("task_id", t.ID), logx.String("time", t.TimeSpec), logx.Err(err))
		return
	}
	if hour != now.Hour() || minute != now.Minute() {
		return
	}

	key := firedKey(dest, t.uid, date, hour, minute)
	if _, done := s.fired[key]; done {
		return
	}
	s.fired[key] = struct{}{}

	segs := Notification(t, daysLeft)
	if err := s.deliver.Deliver(ctx, dest, segs); err != nil {
		s.log.Warn("reminder delivery failed", logx.String("dest", dest), logx.Int("task_id", t.ID), logx.Err(fmt.Errorf("%w: %w", ErrDelivery, err)))
		return
	}
	s.log.Info("reminder fired", logx.String("dest", dest), logx.Int("task_id", t.ID))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeReminderFired, Destination: dest, TaskID: t.ID})
}

// firedKey identifies one firing. It uses the task's uid, not its id, so
// delete and renumber cannot make a task fire twice in the same minute.
func firedKey(dest string, uid uint64, date string, hour, minute int) string {
	return fmt.Sprintf("%s|%d|%s|%02d:%02d", dest, uid, date, hour, minute)
}
