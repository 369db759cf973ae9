package storage

import (
	"context"

	"github.com/veristake/bondmarket/internal/events"
)

// Store is the interface for persisting the observable event stream.
type Store interface {
	// StoreEvent persists one engine event.
	StoreEvent(ctx context.Context, ev events.Event) error

	// Close closes the storage connection.
	Close() error
}
