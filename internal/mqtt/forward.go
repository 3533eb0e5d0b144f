package mqtt

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sweeney/pickplace/internal/control"
)

// Forwarder is a control.Sink that hands events to a Publisher on its own
// goroutine. Handle never blocks: when the queue is full the event is
// dropped and counted.
type Forwarder struct {
	pub     Publisher
	queue   chan control.Event
	log     zerolog.Logger
	dropped atomic.Int64
}

// NewForwarder creates a Forwarder with room for size queued events.
func NewForwarder(pub Publisher, size int, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		pub:   pub,
		queue: make(chan control.Event, size),
		log:   log,
	}
}

// Handle queues e for publishing.
func (f *Forwarder) Handle(e control.Event) {
	select {
	case f.queue <- e:
	default:
		if f.dropped.Add(1) == 1 {
			f.log.Warn().Msg("telemetry queue full, dropping events")
		}
	}
}

// Dropped returns the number of events dropped so far.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Run publishes queued events until ctx is done, then flushes whatever is
// still queued.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-f.queue:
			f.publish(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-f.queue:
					f.publish(e)
				default:
					return nil
				}
			}
		}
	}
}

func (f *Forwarder) publish(e control.Event) {
	if err := f.pub.Publish(e); err != nil {
		f.log.Warn().Err(err).Str("event", string(e.Type)).Msg("publish error")
	}
}
