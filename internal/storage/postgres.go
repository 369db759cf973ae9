package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/veristake/bondmarket/internal/events"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL event store.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreEvent inserts one engine event into the market_events table.
func (p *PostgresStore) StoreEvent(ctx context.Context, ev events.Event) error {
	query := `
		INSERT INTO market_events (
			id, event_type, market_id, actor, amount,
			outcome_index, outcome_changed, reason, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		ev.ID,
		string(ev.Type),
		ev.MarketID,
		ev.Actor.Hex(),
		ev.AmountString(),
		ev.OutcomeIndex,
		ev.OutcomeChanged,
		ev.Reason,
		ev.At,
	)

	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	p.logger.Debug("event-stored",
		zap.String("event-id", ev.ID),
		zap.String("event-type", string(ev.Type)),
		zap.String("market-id", ev.MarketID))

	return nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}
