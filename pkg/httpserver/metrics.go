package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bondmarket_feed_subscribers",
		Help: "Current number of websocket event feed subscribers",
	})

	FeedEventsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_feed_events_sent_total",
		Help: "Total number of events written to websocket subscribers",
	})
)
