package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Governance
	OwnerAddress         string
	ProtocolFeeRecipient string

	// Ledger
	LedgerDecimals int

	// Market engine
	DisputeWindow        time.Duration
	MinLeadTime          time.Duration
	CancelCutoff         time.Duration
	UnclaimedGracePeriod time.Duration
	MaxCollateral        *big.Int
	MinimumCollateral    *big.Int
	BettingMultiplier    int64
	ReputationThreshold  int64
	MaxReputationScale   int64

	// Events
	EventBufferSize int

	// Snapshot cache
	SnapshotCacheTTL time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Governance
		OwnerAddress:         os.Getenv("OWNER_ADDRESS"),
		ProtocolFeeRecipient: os.Getenv("PROTOCOL_FEE_RECIPIENT"),

		// Ledger defaults (USDC-style 6 decimals)
		LedgerDecimals: getIntOrDefault("LEDGER_DECIMALS", 6),

		// Market engine defaults
		DisputeWindow:        getDurationOrDefault("DISPUTE_WINDOW", 24*time.Hour),
		MinLeadTime:          getDurationOrDefault("MIN_LEAD_TIME", 2*time.Hour),
		CancelCutoff:         getDurationOrDefault("CANCEL_CUTOFF", time.Hour),
		UnclaimedGracePeriod: getDurationOrDefault("UNCLAIMED_GRACE_PERIOD", 30*24*time.Hour),
		MaxCollateral:        getBigIntOrDefault("MAX_COLLATERAL", big.NewInt(1_000_000_000)),
		MinimumCollateral:    getBigIntOrDefault("MIN_COLLATERAL", big.NewInt(100_000_000)),
		BettingMultiplier:    getInt64OrDefault("BETTING_MULTIPLIER", 10),
		ReputationThreshold:  getInt64OrDefault("REPUTATION_THRESHOLD", 0),
		MaxReputationScale:   getInt64OrDefault("MAX_REPUTATION_SCALE", 100),

		// Event defaults
		EventBufferSize: getIntOrDefault("EVENT_BUFFER_SIZE", 256),

		// Snapshot cache defaults
		SnapshotCacheTTL: getDurationOrDefault("SNAPSHOT_CACHE_TTL", time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "bondmarket"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "bondmarket123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "bondmarket"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if !common.IsHexAddress(c.OwnerAddress) {
		return fmt.Errorf("OWNER_ADDRESS must be a valid hex address, got %q", c.OwnerAddress)
	}

	if !common.IsHexAddress(c.ProtocolFeeRecipient) {
		return fmt.Errorf("PROTOCOL_FEE_RECIPIENT must be a valid hex address, got %q", c.ProtocolFeeRecipient)
	}

	if c.MaxCollateral == nil || c.MaxCollateral.Sign() <= 0 {
		return fmt.Errorf("MAX_COLLATERAL must be positive")
	}

	if c.MinimumCollateral == nil || c.MinimumCollateral.Sign() <= 0 {
		return fmt.Errorf("MIN_COLLATERAL must be positive")
	}

	if c.MaxCollateral.Cmp(c.MinimumCollateral) < 0 {
		return fmt.Errorf("MAX_COLLATERAL must be at least MIN_COLLATERAL")
	}

	if c.BettingMultiplier <= 0 {
		return fmt.Errorf("BETTING_MULTIPLIER must be positive, got %d", c.BettingMultiplier)
	}

	if c.MaxReputationScale <= 0 {
		return fmt.Errorf("MAX_REPUTATION_SCALE must be positive, got %d", c.MaxReputationScale)
	}

	if c.DisputeWindow <= 0 {
		return fmt.Errorf("DISPUTE_WINDOW must be positive, got %s", c.DisputeWindow)
	}

	if c.MinLeadTime < 0 {
		return fmt.Errorf("MIN_LEAD_TIME cannot be negative, got %s", c.MinLeadTime)
	}

	if c.UnclaimedGracePeriod <= 0 {
		return fmt.Errorf("UNCLAIMED_GRACE_PERIOD must be positive, got %s", c.UnclaimedGracePeriod)
	}

	if c.EventBufferSize <= 0 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be positive, got %d", c.EventBufferSize)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

// PostgresDSN builds the connection string for the postgres event store.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPass, c.PostgresDB, c.PostgresSSL,
	)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getBigIntOrDefault(key string, defaultValue *big.Int) *big.Int {
	value := os.Getenv(key)
	if value == "" {
		return new(big.Int).Set(defaultValue)
	}

	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return new(big.Int).Set(defaultValue)
	}

	return parsed
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
