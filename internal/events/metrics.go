package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublishedTotal counts events published to the bus by type.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bondmarket_events_published_total",
		Help: "Total events published to the event bus, by event type",
	}, []string{"type"})

	// EventsDroppedTotal counts events dropped because a subscriber was full.
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_events_dropped_total",
		Help: "Total events dropped because a subscriber channel was full",
	})
)
