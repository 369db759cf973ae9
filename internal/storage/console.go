package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/veristake/bondmarket/internal/events"
)

// ConsoleStore implements Store by logging events instead of persisting
// them. Default when no database is configured.
type ConsoleStore struct {
	logger *zap.Logger
}

// NewConsoleStore creates a new console store.
func NewConsoleStore(logger *zap.Logger) *ConsoleStore {
	logger.Info("console-store-initialized")
	return &ConsoleStore{
		logger: logger,
	}
}

// StoreEvent logs the event.
func (c *ConsoleStore) StoreEvent(ctx context.Context, ev events.Event) error {
	c.logger.Info("market-event",
		zap.String("event-id", ev.ID),
		zap.String("event-type", string(ev.Type)),
		zap.String("market-id", ev.MarketID),
		zap.String("actor", ev.Actor.Hex()),
		zap.String("amount", ev.AmountString()),
		zap.Int("outcome-index", ev.OutcomeIndex),
		zap.Bool("outcome-changed", ev.OutcomeChanged),
		zap.Time("occurred-at", ev.At))
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStore) Close() error {
	c.logger.Info("closing-console-store")
	return nil
}
