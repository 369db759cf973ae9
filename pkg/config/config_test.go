package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner        = "0x0000000000000000000000000000000000000001"
	testFeeRecipient = "0x00000000000000000000000000000000000000fe"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OWNER_ADDRESS", testOwner)
	t.Setenv("PROTOCOL_FEE_RECIPIENT", testFeeRecipient)
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 6, cfg.LedgerDecimals)
	assert.Equal(t, 24*time.Hour, cfg.DisputeWindow)
	assert.Equal(t, 2*time.Hour, cfg.MinLeadTime)
	assert.Equal(t, time.Hour, cfg.CancelCutoff)
	assert.Equal(t, 30*24*time.Hour, cfg.UnclaimedGracePeriod)
	assert.Equal(t, big.NewInt(1_000_000_000), cfg.MaxCollateral)
	assert.Equal(t, big.NewInt(100_000_000), cfg.MinimumCollateral)
	assert.Equal(t, int64(10), cfg.BettingMultiplier)
	assert.Equal(t, int64(0), cfg.ReputationThreshold)
	assert.Equal(t, int64(100), cfg.MaxReputationScale)
	assert.Equal(t, 256, cfg.EventBufferSize)
	assert.Equal(t, "console", cfg.StorageMode)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DISPUTE_WINDOW", "48h")
	t.Setenv("MAX_COLLATERAL", "5000000000")
	t.Setenv("MIN_COLLATERAL", "250000000")
	t.Setenv("BETTING_MULTIPLIER", "25")
	t.Setenv("STORAGE_MODE", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 48*time.Hour, cfg.DisputeWindow)
	assert.Equal(t, big.NewInt(5_000_000_000), cfg.MaxCollateral)
	assert.Equal(t, big.NewInt(250_000_000), cfg.MinimumCollateral)
	assert.Equal(t, int64(25), cfg.BettingMultiplier)
	assert.Equal(t, "postgres", cfg.StorageMode)
	assert.Equal(t, "db.internal", cfg.PostgresHost)
}

func TestLoadFromEnvMalformedValuesFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DISPUTE_WINDOW", "not-a-duration")
	t.Setenv("MAX_COLLATERAL", "not-a-number")
	t.Setenv("EVENT_BUFFER_SIZE", "lots")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.DisputeWindow)
	assert.Equal(t, big.NewInt(1_000_000_000), cfg.MaxCollateral)
	assert.Equal(t, 256, cfg.EventBufferSize)
}

func TestValidateRejections(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:             "8080",
			OwnerAddress:         testOwner,
			ProtocolFeeRecipient: testFeeRecipient,
			DisputeWindow:        24 * time.Hour,
			UnclaimedGracePeriod: 30 * 24 * time.Hour,
			MaxCollateral:        big.NewInt(1000),
			MinimumCollateral:    big.NewInt(100),
			BettingMultiplier:    10,
			MaxReputationScale:   100,
			EventBufferSize:      256,
			StorageMode:          "console",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "empty port",
			mutate:  func(c *Config) { c.HTTPPort = "" },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "bad owner address",
			mutate:  func(c *Config) { c.OwnerAddress = "not-an-address" },
			wantErr: "OWNER_ADDRESS",
		},
		{
			name:    "bad fee recipient",
			mutate:  func(c *Config) { c.ProtocolFeeRecipient = "" },
			wantErr: "PROTOCOL_FEE_RECIPIENT",
		},
		{
			name:    "zero max collateral",
			mutate:  func(c *Config) { c.MaxCollateral = big.NewInt(0) },
			wantErr: "MAX_COLLATERAL",
		},
		{
			name:    "max below minimum",
			mutate:  func(c *Config) { c.MaxCollateral = big.NewInt(50) },
			wantErr: "MAX_COLLATERAL must be at least",
		},
		{
			name:    "zero betting multiplier",
			mutate:  func(c *Config) { c.BettingMultiplier = 0 },
			wantErr: "BETTING_MULTIPLIER",
		},
		{
			name:    "zero reputation scale",
			mutate:  func(c *Config) { c.MaxReputationScale = 0 },
			wantErr: "MAX_REPUTATION_SCALE",
		},
		{
			name:    "zero dispute window",
			mutate:  func(c *Config) { c.DisputeWindow = 0 },
			wantErr: "DISPUTE_WINDOW",
		},
		{
			name:    "negative lead time",
			mutate:  func(c *Config) { c.MinLeadTime = -time.Hour },
			wantErr: "MIN_LEAD_TIME",
		},
		{
			name:    "unknown storage mode",
			mutate:  func(c *Config) { c.StorageMode = "s3" },
			wantErr: "STORAGE_MODE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "localhost",
		PostgresPort: "5432",
		PostgresUser: "bondmarket",
		PostgresPass: "secret",
		PostgresDB:   "bondmarket",
		PostgresSSL:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=bondmarket password=secret dbname=bondmarket sslmode=disable",
		cfg.PostgresDSN(),
	)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("shouty")
	require.Error(t, err)
}
