package reminder

import (
	"context"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/pkg/logx"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultSaveTimeout  = 5 * time.Second
)

// Fetcher downloads a remote attachment and returns its local path.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type options struct {
	log         logx.Logger
	bus         eventbus.Bus
	now         func() time.Time
	interval    time.Duration
	saveTimeout time.Duration
	onTick      func(time.Time)
	fetcher     Fetcher
}

func defaultOptions() options {
	return options{
		log:         logx.Nop(),
		bus:         eventbus.Nop(),
		now:         time.Now,
		interval:    DefaultPollInterval,
		saveTimeout: DefaultSaveTimeout,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Option configures a Store, Scheduler or Service. Options that do not
// apply to the component are ignored.
type Option func(*options)

func WithLogger(log logx.Logger) Option {
	return func(o *options) {
		if !log.IsZero() {
			o.log = log
		}
	}
}

func WithBus(bus eventbus.Bus) Option {
	return func(o *options) {
		if bus != nil {
			o.bus = bus
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPollInterval sets the scheduler tick period.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithSaveTimeout bounds each persistence write.
func WithSaveTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.saveTimeout = d
		}
	}
}

// WithTickHook runs fn after every completed scheduler tick.
func WithTickHook(fn func(time.Time)) Option {
	return func(o *options) { o.onTick = fn }
}

// WithFetcher sets the attachment downloader used by Service.Create.
func WithFetcher(f Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}
