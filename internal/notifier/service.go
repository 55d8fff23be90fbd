package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/eventbus"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type job struct {
	to   transport.ChatTarget
	segs []transport.Segment
}

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender Sender
	bus    eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue chan job
	sup   *rtsup.Supervisor
}

func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Service{
		log:    log.With(logx.String("comp", "notifier")),
		sender: sender,
		bus:    bus,
		cfg:    cfg,
		// Burst equals the per-second rate so short spikes pass unthrottled.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Start launches the workers. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false))
	sup, q, workers := s.sup, s.queue, s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart(fmt.Sprintf("worker.%d", idx), func(c context.Context) error {
			s.workerLoop(c, q)
			return nil
		}, rtsup.WithRestartBackoff(100*time.Millisecond, 5*time.Second))
	}
	s.log.Info("notifier started", logx.Int("workers", workers), logx.Int("queue", s.cfg.QueueSize))
}

// Stop refuses new work, lets the workers drain the queue and waits for
// them until ctx is done; then in-flight sends are canceled.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, sup := s.queue, s.sup
	if q == nil || !s.accepting {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.mu.Unlock()

	s.sendWG.Wait()
	close(q)

	if err := sup.Wait(ctx); err != nil {
		s.log.Warn("notifier drain interrupted", logx.Int("pending", len(q)), logx.Err(err))
		sup.Cancel()
	}

	s.mu.Lock()
	s.queue = nil
	s.sup = nil
	s.mu.Unlock()
}

// Deliver enqueues a message for dest. It never waits for the send.
func (s *Service) Deliver(ctx context.Context, dest string, segs []transport.Segment) error {
	to, err := transport.ParseTarget(dest)
	if err != nil {
		return err
	}
	return s.Enqueue(ctx, to, segs)
}

func (s *Service) Enqueue(ctx context.Context, to transport.ChatTarget, segs []transport.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- job{to: to, segs: segs}:
		return nil
	default:
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryDropped, Destination: to.String(), Data: DeliveryEvent{Target: to.String(), At: time.Now(), Error: ErrQueueFull.Error()}})
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.send(ctx, j)
		}
	}
}

func (s *Service) send(ctx context.Context, j job) {
	if s.sender == nil {
		return
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	err := s.sender.Send(callCtx, j.to, j.segs)
	cancel()
	if err == nil {
		s.log.Debug("message sent", logx.String("to", j.to.String()), logx.Int("segments", len(j.segs)))
		return
	}

	s.log.Warn("message send failed", logx.String("to", j.to.String()), logx.Err(err))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryFailed, Destination: j.to.String(), Data: DeliveryEvent{Target: j.to.String(), At: time.Now(), Error: err.Error()}})
}
