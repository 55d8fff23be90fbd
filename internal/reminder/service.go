package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/pkg/logx"
)

// Service implements the task lifecycle operations. Every successful
// mutation is followed by a save; a failed save is logged and does not
// fail the operation.
type Service struct {
	store   *Store
	fetcher Fetcher
	bus     eventbus.Bus
	log     logx.Logger
	now     func() time.Time
}

func NewService(store *Store, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		store:   store,
		fetcher: o.fetcher,
		bus:     o.bus,
		log:     o.log.With(logx.String("comp", "reminder.service")),
		now:     o.now,
	}
}

// CreateRequest describes a new task.
type CreateRequest struct {
	TimeSpec       string
	Content        string
	Mention        string
	Attachments    []string // local paths, stored as given
	AttachmentURLs []string // fetched through the Fetcher; failures are skipped
}

// Create validates the time spec, fetches attachments and stores the task.
func (s *Service) Create(ctx context.Context, dest string, req CreateRequest) (Task, error) {
	if strings.TrimSpace(dest) == "" {
		return Task{}, fmt.Errorf("%w: empty destination", ErrInvalidArgument)
	}
	if _, _, err := ParseTime(req.TimeSpec); err != nil {
		return Task{}, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return Task{}, fmt.Errorf("%w: empty content", ErrInvalidArgument)
	}

	attachments := append([]string(nil), req.Attachments...)
	attachments = append(attachments, s.fetchAll(ctx, dest, req.AttachmentURLs)...)

	t := s.store.add(dest, Task{
		TimeSpec:    strings.TrimSpace(req.TimeSpec),
		Content:     content,
		Mention:     strings.TrimSpace(req.Mention),
		Attachments: attachments,
	})
	s.persist(ctx)

	s.log.Info("reminder created", logx.String("dest", dest), logx.Int("task_id", t.ID), logx.String("time", t.TimeSpec), logx.Int("attachments", len(t.Attachments)))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeReminderCreated, Destination: dest, TaskID: t.ID})
	return t, nil
}

func (s *Service) fetchAll(ctx context.Context, dest string, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	if s.fetcher == nil {
		s.log.Warn("attachments ignored, no fetcher configured", logx.String("dest", dest), logx.Int("count", len(urls)))
		return nil
	}
	var out []string
	for i, u := range urls {
		if ctx.Err() != nil {
			s.log.Warn("attachment downloads cut short", logx.String("dest", dest), logx.Int("skipped", len(urls)-i), logx.Err(ctx.Err()))
			break
		}
		p, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			s.log.Warn("attachment fetch failed, skipped", logx.String("dest", dest), logx.String("url", u), logx.Err(err))
			continue
		}
		out = append(out, p)
	}
	return out
}

// persist saves after a successful mutation. The save outlives the caller's
// context, which attachment downloads may already have used up; Store.Save
// bounds it with the save timeout.
func (s *Service) persist(ctx context.Context) {
	_ = s.store.Save(context.WithoutCancel(ctx))
}

// AttachCountdown sets or replaces the countdown of task id, starting today.
func (s *Service) AttachCountdown(ctx context.Context, dest string, id, days int) (Task, error) {
	if days <= 0 {
		return Task{}, fmt.Errorf("%w: countdown days must be positive", ErrInvalidArgument)
	}
	today := s.now()
	t, err := s.store.update(dest, id, func(t *Task) {
		t.Countdown = NewCountdown(days, today)
	})
	if err != nil {
		return Task{}, err
	}
	s.persist(ctx)
	s.log.Info("countdown attached", logx.String("dest", dest), logx.Int("task_id", id), logx.Int("days", days))
	return t, nil
}

// List returns the destination's tasks in stored order. An unknown
// destination yields an empty list.
func (s *Service) List(dest string) []TaskView {
	today := s.now()
	tasks := s.store.Tasks(dest)
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, viewOf(t, today))
	}
	return out
}

// Delete removes task id and renumbers the remaining tasks 0..n-1.
func (s *Service) Delete(ctx context.Context, dest string, id int) (Task, error) {
	t, err := s.store.remove(dest, id)
	if err != nil {
		return Task{}, err
	}
	s.persist(ctx)
	s.log.Info("reminder deleted", logx.String("dest", dest), logx.Int("task_id", id))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeReminderDeleted, Destination: dest, TaskID: id})
	return t, nil
}

// Renumber reassigns ids 0..n-1 in stored order and returns n.
func (s *Service) Renumber(ctx context.Context, dest string) int {
	n := s.store.renumber(dest)
	if n == 0 {
		return 0
	}
	s.persist(ctx)
	s.log.Info("reminders renumbered", logx.String("dest", dest), logx.Int("count", n))
	return n
}
