package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/veristake/bondmarket/internal/auth"
	"github.com/veristake/bondmarket/internal/events"
	"github.com/veristake/bondmarket/internal/ledger"
	"github.com/veristake/bondmarket/internal/registry"
	"github.com/veristake/bondmarket/internal/storage"
	"github.com/veristake/bondmarket/pkg/cache"
	"github.com/veristake/bondmarket/pkg/config"
	"github.com/veristake/bondmarket/pkg/healthprobe"
	"github.com/veristake/bondmarket/pkg/httpserver"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	snapshotCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	bus := events.NewBus(cfg.EventBufferSize, logger)
	led := ledger.NewMemory(uint8(cfg.LedgerDecimals), logger)
	authPolicy := auth.New(common.HexToAddress(cfg.OwnerAddress), logger)

	reg, err := setupRegistry(cfg, logger, authPolicy, led, bus)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup registry: %w", err)
	}

	eventStore, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	eventSink := storage.NewSink(eventStore, bus.Subscribe(), logger)

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Registry:      reg,
		Cache:         snapshotCache,
		SnapshotTTL:   cfg.SnapshotCacheTTL,
		Bus:           bus,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		ledger:        led,
		authPolicy:    authPolicy,
		bus:           bus,
		registry:      reg,
		snapshotCache: snapshotCache,
		eventStore:    eventStore,
		eventSink:     eventSink,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items (1000 markets)
		MaxCost:     1000,  // Maximum 1000 items in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupRegistry(
	cfg *config.Config,
	logger *zap.Logger,
	authPolicy *auth.Policy,
	led ledger.Ledger,
	bus *events.Bus,
) (*registry.Registry, error) {
	return registry.New(&registry.Config{
		Auth:                 authPolicy,
		Ledger:               led,
		Clock:                clock.New(),
		Bus:                  bus,
		Logger:               logger,
		MaxCollateral:        cfg.MaxCollateral,
		MinimumCollateral:    cfg.MinimumCollateral,
		BettingMultiplier:    cfg.BettingMultiplier,
		ReputationThreshold:  cfg.ReputationThreshold,
		MaxReputationScale:   cfg.MaxReputationScale,
		ProtocolFeeRecipient: common.HexToAddress(cfg.ProtocolFeeRecipient),
		DisputeWindow:        cfg.DisputeWindow,
		MinLeadTime:          cfg.MinLeadTime,
		CancelCutoff:         cfg.CancelCutoff,
		UnclaimedGracePeriod: cfg.UnclaimedGracePeriod,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.StorageMode == "postgres" {
		pgStore, err := storage.NewPostgresStore(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return pgStore, nil
	}

	return storage.NewConsoleStore(logger), nil
}
