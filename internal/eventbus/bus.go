package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the reminder core and the delivery pipeline.
const (
	TypeReminderCreated = "reminder.created"
	TypeReminderDeleted = "reminder.deleted"
	TypeReminderFired   = "reminder.fired"
	TypeReminderExpired = "reminder.expired"
	TypeDeliveryFailed  = "delivery.failed"
	TypeDeliveryDropped = "delivery.dropped"
)

// Event is an in-memory signal. Data should stay small.
//
// Publish never blocks; a subscriber whose buffer is full misses the event.
type Event struct {
	Type        string
	Time        time.Time
	Destination string
	TaskID      int
	Data        any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &fanout{subs: map[uint64]chan Event{}}
}

// Nop returns a bus that discards every event.
func Nop() Bus { return nopBus{} }

type nopBus struct{}

func (nopBus) Publish(Event) {}

func (nopBus) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

type fanout struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			// Holding the write lock means no Publish is mid-send on ch.
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}
