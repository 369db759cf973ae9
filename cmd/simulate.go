package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/veristake/bondmarket/internal/auth"
	"github.com/veristake/bondmarket/internal/events"
	"github.com/veristake/bondmarket/internal/ledger"
	"github.com/veristake/bondmarket/internal/registry"
	"github.com/veristake/bondmarket/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a scripted market lifecycle on a mock clock",
	Long: `Runs a full market lifecycle against an in-memory ledger and a mock
clock: create a bonded market, place bets, submit an outcome, dispute
it, resolve the dispute, and claim the forfeited bond. Useful for
demonstrating the engine's time-gated transitions without waiting
for real deadlines.`,
	RunE: runSimulation,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	logger, err := config.NewLogger("info")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	var (
		owner   = common.HexToAddress("0x0000000000000000000000000000000000000001")
		fee     = common.HexToAddress("0x00000000000000000000000000000000000000fe")
		creator = common.HexToAddress("0x00000000000000000000000000000000000000c1")
		alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
		bob     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	)

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	led := ledger.NewMemory(6, logger)
	for _, account := range []common.Address{creator, alice, bob} {
		led.Mint(account, big.NewInt(1_000_000))
		led.Approve(account, big.NewInt(1_000_000))
	}

	bus := events.NewBus(64, logger)
	defer bus.Close()

	// Print every lifecycle event as the script produces it
	sub := bus.Subscribe()
	go func() {
		for ev := range sub {
			fmt.Printf("event %-26s market=%s actor=%s amount=%s\n",
				ev.Type, ev.MarketID, ev.Actor.Hex(), ev.AmountString())
		}
	}()

	reg, err := registry.New(&registry.Config{
		Auth:                 auth.New(owner, logger),
		Ledger:               led,
		Clock:                mock,
		Bus:                  bus,
		Logger:               logger,
		MaxCollateral:        big.NewInt(10_000),
		MinimumCollateral:    big.NewInt(1_000),
		BettingMultiplier:    10,
		ReputationThreshold:  0,
		MaxReputationScale:   100,
		ProtocolFeeRecipient: fee,
		DisputeWindow:        24 * time.Hour,
		MinLeadTime:          2 * time.Hour,
		CancelCutoff:         time.Hour,
		UnclaimedGracePeriod: 30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}

	ctx := context.Background()
	now := mock.Now()

	marketID, _, err := reg.CreateMarket(ctx, creator,
		[]string{"yes", "no"},
		now.Add(4*time.Hour), now.Add(28*time.Hour), nil)
	if err != nil {
		return fmt.Errorf("create market: %w", err)
	}
	fmt.Printf("created market %s, escrow=%s\n", marketID, led.EscrowBalance())

	m, _ := reg.Market(marketID)

	err = m.PlaceBet(ctx, alice, 0, big.NewInt(5_000))
	if err != nil {
		return fmt.Errorf("place bet: %w", err)
	}
	err = m.PlaceBet(ctx, bob, 1, big.NewInt(3_000))
	if err != nil {
		return fmt.Errorf("place bet: %w", err)
	}

	// Past end time: the creator reports outcome "no"
	mock.Add(29 * time.Hour)
	err = m.SubmitOutcome(creator, 1)
	if err != nil {
		return fmt.Errorf("submit outcome: %w", err)
	}

	// Alice disputes the report with fresh escrow
	err = m.ContributeDispute(ctx, alice, "result source says yes", big.NewInt(2_000))
	if err != nil {
		return fmt.Errorf("contribute dispute: %w", err)
	}

	// The owner overturns the report; the bond is forfeited
	err = reg.ResolveDispute(owner, marketID, 0)
	if err != nil {
		return fmt.Errorf("resolve dispute: %w", err)
	}

	err = reg.ClaimForfeitedShare(ctx, alice, marketID)
	if err != nil {
		return fmt.Errorf("claim forfeited share: %w", err)
	}

	snapshot, _ := reg.Snapshot(marketID)
	fmt.Printf("final phase=%s forfeited=%s alice-balance=%s creator-reputation=%d\n",
		snapshot.Phase, snapshot.ForfeitedCollateral,
		led.BalanceOf(alice), reg.Profile(creator).Reputation)

	return nil
}
