package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/fastprodman/lottoengine/internal/metrics"
)

const publishTimeout = 3 * time.Second

// Dispatcher queues events in a bounded buffer and publishes them from Run.
type Dispatcher struct {
	queue chan Event
	pub   Publisher
}

func NewDispatcher(size int, pub Publisher) *Dispatcher {
	if size <= 0 {
		size = 1
	}

	return &Dispatcher{
		queue: make(chan Event, size),
		pub:   pub,
	}
}

// Notify enqueues ev or drops it when the queue is full.
func (d *Dispatcher) Notify(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	select {
	case d.queue <- ev:
	default:
		metrics.RecordDropped()
		slog.Warn("notification dropped", "type", ev.Type, "round_id", ev.RoundID)
	}
}

// Run publishes queued events until ctx is done, then flushes what is already
// queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.queue:
			d.publish(ctx, ev)
		case <-ctx.Done():
			d.flush()
			return nil
		}
	}
}

func (d *Dispatcher) flush() {
	ctx := context.Background()

	for {
		select {
		case ev := <-d.queue:
			d.publish(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, ev Event) {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := d.pub.Publish(c, ev)
	if err != nil {
		slog.Error("publish notification", "type", ev.Type, "round_id", ev.RoundID, "error", err)
	}
}
