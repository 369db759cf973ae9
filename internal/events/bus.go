package events

import (
	"sync"

	"go.uber.org/zap"
)

// Bus fans events out to subscribers over buffered channels. Publishing never
// blocks the engine: a subscriber that falls behind loses events, which is
// acceptable for the observability feed (correctness lives in the engine
// state, not the event stream).
type Bus struct {
	mu         sync.Mutex
	subs       []chan Event
	bufferSize int
	closed     bool
	logger     *zap.Logger
}

// NewBus creates a bus whose subscriber channels buffer bufferSize events.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber and returns its receive channel. The
// channel is closed when the bus closes.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	EventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			EventsDroppedTotal.Inc()
			b.logger.Warn("event-subscriber-full",
				zap.String("type", string(ev.Type)),
				zap.String("market-id", ev.MarketID))
		}
	}
}

// Close closes every subscriber channel. Further publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.logger.Info("event-bus-closed")
}
