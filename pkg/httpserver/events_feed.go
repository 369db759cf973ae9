package httpserver

import (
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/veristake/bondmarket/internal/events"
	"go.uber.org/zap"
)

const feedWriteTimeout = 5 * time.Second

// WireEvent is the JSON shape of a lifecycle event on the websocket feed.
// Amounts are decimal strings in base units.
type WireEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	MarketID       string    `json:"market_id"`
	Actor          string    `json:"actor"`
	Amount         string    `json:"amount"`
	OutcomeIndex   int       `json:"outcome_index"`
	OutcomeChanged bool      `json:"outcome_changed,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	At             time.Time `json:"at"`
}

// EventFeed fans lifecycle events out to websocket subscribers.
type EventFeed struct {
	bus      *events.Bus
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewEventFeed creates a new event feed over the given bus.
func NewEventFeed(bus *events.Bus, logger *zap.Logger) *EventFeed {
	return &EventFeed{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		conns: make(map[*websocket.Conn]struct{}),
		done:  make(chan struct{}),
	}
}

// HandleSubscribe handles GET /ws/events upgrade requests.
func (f *EventFeed) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("ws-upgrade-failed", zap.Error(err))
		return
	}

	f.mu.Lock()
	f.conns[conn] = struct{}{}
	subscribers := len(f.conns)
	f.mu.Unlock()

	FeedSubscribers.Set(float64(subscribers))
	f.logger.Info("ws-subscriber-connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("subscribers", subscribers))

	// Reader loop: the feed is write-only, but reading surfaces
	// close frames and keeps control messages flowing.
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				f.remove(conn)
				return
			}
		}
	}()
}

// Run pumps bus events to all subscribers until Stop is called
// or the bus closes. Blocking call.
func (f *EventFeed) Run() {
	sub := f.bus.Subscribe()

	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			f.broadcast(ev)
		}
	}
}

// Stop terminates the pump and closes all subscriber connections.
func (f *EventFeed) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)

		f.mu.Lock()
		for conn := range f.conns {
			_ = conn.Close()
		}
		f.conns = make(map[*websocket.Conn]struct{})
		f.mu.Unlock()

		FeedSubscribers.Set(0)
	})
}

func (f *EventFeed) broadcast(ev events.Event) {
	payload, err := json.Marshal(wireEvent(ev))
	if err != nil {
		f.logger.Error("failed-to-encode-event", zap.Error(err))
		return
	}

	f.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(f.conns))
	for conn := range f.conns {
		conns = append(conns, conn)
	}
	f.mu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))

		err := conn.WriteMessage(websocket.TextMessage, payload)
		if err != nil {
			f.logger.Warn("ws-write-failed",
				zap.String("remote", conn.RemoteAddr().String()),
				zap.Error(err))
			f.remove(conn)
			continue
		}

		FeedEventsSentTotal.Inc()
	}
}

func (f *EventFeed) remove(conn *websocket.Conn) {
	f.mu.Lock()
	_, present := f.conns[conn]
	delete(f.conns, conn)
	subscribers := len(f.conns)
	f.mu.Unlock()

	if present {
		_ = conn.Close()
		FeedSubscribers.Set(float64(subscribers))
		f.logger.Info("ws-subscriber-disconnected",
			zap.Int("subscribers", subscribers))
	}
}

func wireEvent(ev events.Event) WireEvent {
	return WireEvent{
		ID:             ev.ID,
		Type:           string(ev.Type),
		MarketID:       ev.MarketID,
		Actor:          ev.Actor.Hex(),
		Amount:         ev.AmountString(),
		OutcomeIndex:   ev.OutcomeIndex,
		OutcomeChanged: ev.OutcomeChanged,
		Reason:         ev.Reason,
		At:             ev.At,
	}
}
