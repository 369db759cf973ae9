package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/veristake/bondmarket/internal/events"
)

// Sink drains an event-bus subscription into a Store.
type Sink struct {
	store  Store
	in     <-chan events.Event
	logger *zap.Logger
}

// NewSink creates a sink persisting everything received on in.
func NewSink(store Store, in <-chan events.Event, logger *zap.Logger) *Sink {
	return &Sink{
		store:  store,
		in:     in,
		logger: logger,
	}
}

// Run consumes events until the channel closes or the context is cancelled.
// Storage failures are logged and skipped; the event stream is observability,
// not ground truth.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("event-sink-stopping")
			return
		case ev, ok := <-s.in:
			if !ok {
				s.logger.Info("event-sink-channel-closed")
				return
			}
			if err := s.store.StoreEvent(ctx, ev); err != nil {
				s.logger.Error("failed-to-store-event",
					zap.String("event-id", ev.ID),
					zap.String("event-type", string(ev.Type)),
					zap.Error(err))
			}
		}
	}
}
