package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []transport.ChatTarget
	fail  bool
	block chan struct{}
}

func (r *recordingSender) Send(ctx context.Context, to transport.ChatTarget, segs []transport.Segment) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	if r.fail {
		return errors.New("telegram: bad request")
	}
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestDeliverDrainsOnStop(t *testing.T) {
	t.Parallel()
	snd := &recordingSender{}
	svc := New(Config{Workers: 2, QueueSize: 16, RatePerSec: 100}, snd, logx.Nop(), nil)
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		if err := svc.Deliver(context.Background(), "-1001:7", []transport.Segment{transport.Text("hi")}); err != nil {
			t.Fatalf("Deliver() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Stop(ctx)

	if got := snd.count(); got != 5 {
		t.Fatalf("sent = %d, want 5", got)
	}
	if snd.sent[0] != (transport.ChatTarget{ChatID: -1001, ThreadID: 7}) {
		t.Fatalf("target = %+v", snd.sent[0])
	}
	if err := svc.Deliver(context.Background(), "1", nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("Deliver() after Stop error = %v, want ErrStopped", err)
	}
}

func TestDeliverRejectsBadDestination(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, &recordingSender{}, logx.Nop(), nil)
	svc.Start(context.Background())
	defer svc.Stop(context.Background())
	if err := svc.Deliver(context.Background(), "not-a-chat", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestQueueFullDropsAndPublishes(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	snd := &recordingSender{block: make(chan struct{})}
	svc := New(Config{Workers: 1, QueueSize: 1, RatePerSec: 100}, snd, logx.Nop(), bus)
	svc.Start(context.Background())

	to := transport.ChatTarget{ChatID: 5}
	var full bool
	for i := 0; i < 4; i++ {
		if err := svc.Enqueue(context.Background(), to, nil); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatal("expected ErrQueueFull")
	}
	select {
	case e := <-events:
		if e.Type != eventbus.TypeDeliveryDropped {
			t.Fatalf("event = %q, want %q", e.Type, eventbus.TypeDeliveryDropped)
		}
	case <-time.After(time.Second):
		t.Fatal("no drop event")
	}

	close(snd.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Stop(ctx)
}

func TestSendFailurePublishesWithoutRetry(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	snd := &recordingSender{fail: true}
	svc := New(Config{Workers: 1, RatePerSec: 100}, snd, logx.Nop(), bus)
	svc.Start(context.Background())
	if err := svc.Deliver(context.Background(), "42", []transport.Segment{transport.Text("x")}); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-events:
		if e.Type != eventbus.TypeDeliveryFailed || e.Destination != "42" {
			t.Fatalf("event = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no failure event")
	}
	svc.Stop(context.Background())
	if got := snd.count(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}
