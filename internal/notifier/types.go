package notifier

import (
	"context"
	"time"

	"remindbot/internal/transport"
)

// Config controls the async delivery pipeline.
type Config struct {
	Workers     int
	QueueSize   int
	RatePerSec  int
	SendTimeout time.Duration
}

// Sender is the outbound half of a transport adapter.
type Sender interface {
	Send(ctx context.Context, to transport.ChatTarget, segs []transport.Segment) error
}

// DeliveryEvent is the Data of delivery events on the bus.
type DeliveryEvent struct {
	Target string    `json:"target"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
