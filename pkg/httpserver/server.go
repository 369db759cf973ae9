package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/veristake/bondmarket/internal/events"
	"github.com/veristake/bondmarket/internal/registry"
	"github.com/veristake/bondmarket/pkg/cache"
	"github.com/veristake/bondmarket/pkg/healthprobe"
	"go.uber.org/zap"
)

// Server provides HTTP endpoints for metrics, health checks,
// market snapshots, and the websocket event feed.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	feed          *EventFeed
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Registry      *registry.Registry
	Cache         cache.Cache
	SnapshotTTL   time.Duration
	Bus           *events.Bus
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	var feed *EventFeed

	if cfg.Registry != nil {
		mh := NewMarketsHandler(cfg.Registry, cfg.Cache, cfg.SnapshotTTL, cfg.Logger)
		r.Route("/api/markets", func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/", mh.HandleList)
			r.Get("/{marketID}", mh.HandleGet)
		})
	}

	if cfg.Bus != nil {
		feed = NewEventFeed(cfg.Bus, cfg.Logger)
		r.Get("/ws/events", feed.HandleSubscribe)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
		feed:          feed,
	}
}

// Start starts the HTTP server and, when configured, the event feed pump.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	if s.feed != nil {
		go s.feed.Run()
	}

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	if s.feed != nil {
		s.feed.Stop()
	}

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
