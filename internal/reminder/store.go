package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"remindbot/internal/storage"
	"remindbot/pkg/logx"
)

// Store owns the destination table.
//
// mu guards the table and is held for one mutation or one snapshot only.
// saveMu orders writes to the backend so a later snapshot is never
// overwritten by an earlier one.
type Store struct {
	backend     storage.Backend
	log         logx.Logger
	saveTimeout time.Duration

	mu    sync.Mutex
	dests map[string]*bucket
	seq   uint64

	saveMu sync.Mutex
}

type bucket struct {
	tasks  []Task
	nextID int
}

// NewStore returns an empty store persisted through backend.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	o := buildOptions(opts)
	return &Store{
		backend:     backend,
		log:         o.log.With(logx.String("comp", "reminder.store")),
		saveTimeout: o.saveTimeout,
		dests:       map[string]*bucket{},
	}
}

// Load replaces the table with the backend's document. Failures are logged
// and leave an empty table; it never fails startup.
func (s *Store) Load(ctx context.Context) int {
	if s.backend == nil {
		return 0
	}
	doc, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNoState):
		s.log.Info("no saved reminders, starting empty")
		return 0
	case err != nil:
		s.log.Error("load reminders failed, starting empty", logx.Err(fmt.Errorf("%w: %w", ErrPersistence, err)))
		return 0
	}

	n := s.Import(doc)
	s.log.Info("reminders loaded", logx.Int("tasks", n), logx.Int("destinations", len(doc.Tasks)), logx.Int("version", doc.Version))
	return n
}

// Import replaces the table with doc, normalizing counters and countdowns
// the same way Load does. It returns the number of tasks.
func (s *Store) Import(doc *storage.Document) int {
	if doc == nil {
		doc = storage.NewDocument()
	}
	dests := fromDocument(doc, s.log)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dests = dests
	n := 0
	for _, b := range dests {
		for i := range b.tasks {
			s.seq++
			b.tasks[i].uid = s.seq
		}
		n += len(b.tasks)
	}
	return n
}

// Save writes the current table. Failures are logged and returned wrapped
// in ErrPersistence; the in-memory table stays authoritative.
func (s *Store) Save(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	doc := toDocument(s.dests)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()
	if err := s.backend.Save(ctx, doc); err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
		s.log.Error("save reminders failed", logx.Err(err))
		return err
	}
	return nil
}

func (s *Store) bucketLocked(dest string) *bucket {
	b := s.dests[dest]
	if b == nil {
		b = &bucket{}
		s.dests[dest] = b
	}
	return b
}

// add assigns the destination's next id to t and appends it.
func (s *Store) add(dest string, t Task) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucketLocked(dest)
	t.ID = b.nextID
	b.nextID++
	s.seq++
	t.uid = s.seq
	b.tasks = append(b.tasks, t.clone())
	return t
}

// update applies fn to the task with id and returns the updated copy.
func (s *Store) update(dest string, id int, fn func(*Task)) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.dests[dest]
	if b == nil || len(b.tasks) == 0 {
		return Task{}, ErrNoTasks
	}
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			fn(&b.tasks[i])
			return b.tasks[i].clone(), nil
		}
	}
	return Task{}, ErrTaskNotFound
}

// remove deletes the task with id and renumbers the rest densely.
func (s *Store) remove(dest string, id int) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.dests[dest]
	if b == nil || len(b.tasks) == 0 {
		return Task{}, ErrNoTasks
	}
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			removed := b.tasks[i]
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			b.renumber()
			return removed, nil
		}
	}
	return Task{}, ErrTaskNotFound
}

// expire removes the task identified by uid without renumbering, provided
// its countdown is still expired at now. A countdown re-armed after the
// tick's snapshot keeps the task.
func (s *Store) expire(dest string, uid uint64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.dests[dest]
	if b == nil {
		return false
	}
	for i := range b.tasks {
		if b.tasks[i].uid == uid {
			if !b.tasks[i].Countdown.Expired(now) {
				return false
			}
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) renumber(dest string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.dests[dest]
	if b == nil || len(b.tasks) == 0 {
		return 0
	}
	b.renumber()
	return len(b.tasks)
}

func (b *bucket) renumber() {
	for i := range b.tasks {
		b.tasks[i].ID = i
	}
	b.nextID = len(b.tasks)
}

// Tasks returns a copy of the destination's tasks in stored order.
func (s *Store) Tasks(dest string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.dests[dest]
	if b == nil {
		return nil
	}
	out := make([]Task, len(b.tasks))
	for i, t := range b.tasks {
		out[i] = t.clone()
	}
	return out
}

// NextID reports the id the next created task of dest will get.
func (s *Store) nextID(dest string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.dests[dest]; b != nil {
		return b.nextID
	}
	return 0
}

// Destinations returns the known destinations in sorted order.
func (s *Store) Destinations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dests))
	for d := range s.dests {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Attachments returns every attachment path referenced by any task.
func (s *Store) Attachments() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]struct{}{}
	for _, b := range s.dests {
		for _, t := range b.tasks {
			for _, p := range t.Attachments {
				out[p] = struct{}{}
			}
		}
	}
	return out
}

// Count returns the total number of tasks.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.dests {
		n += len(b.tasks)
	}
	return n
}
