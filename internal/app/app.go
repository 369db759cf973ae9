package app

import (
	"context"
	"sync"

	"github.com/veristake/bondmarket/internal/auth"
	"github.com/veristake/bondmarket/internal/events"
	"github.com/veristake/bondmarket/internal/ledger"
	"github.com/veristake/bondmarket/internal/registry"
	"github.com/veristake/bondmarket/internal/storage"
	"github.com/veristake/bondmarket/pkg/cache"
	"github.com/veristake/bondmarket/pkg/config"
	"github.com/veristake/bondmarket/pkg/healthprobe"
	"github.com/veristake/bondmarket/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	ledger        *ledger.MemoryLedger
	authPolicy    *auth.Policy
	bus           *events.Bus
	registry      *registry.Registry
	snapshotCache cache.Cache
	eventStore    storage.Store
	eventSink     *storage.Sink
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Registry exposes the market registry for command-layer access.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Ledger exposes the funding ledger for command-layer access.
func (a *App) Ledger() *ledger.MemoryLedger {
	return a.ledger
}
