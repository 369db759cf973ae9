package registry

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/veristake/bondmarket/internal/auth"
	"github.com/veristake/bondmarket/internal/events"
	"github.com/veristake/bondmarket/internal/ledger"
	"github.com/veristake/bondmarket/pkg/types"
)

var (
	owner        = common.HexToAddress("0x0000000000000000000000000000000000000001")
	admin        = common.HexToAddress("0x0000000000000000000000000000000000000002")
	feeRecipient = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	creator      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	bettor1      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bettor2      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	stranger     = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

type fixture struct {
	registry *Registry
	ledger   *ledger.MemoryLedger
	clock    *clock.Mock
	bus      *events.Bus
	auth     *auth.Policy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	l := ledger.NewMemory(6, logger)
	for _, account := range []common.Address{creator, bettor1, bettor2} {
		l.Mint(account, big.NewInt(1_000_000))
		l.Approve(account, big.NewInt(1_000_000))
	}

	policy := auth.New(owner, logger)
	require.NoError(t, policy.AddAdmin(owner, admin))

	bus := events.NewBus(64, logger)

	r, err := New(&Config{
		Auth:                 policy,
		Ledger:               l,
		Clock:                mock,
		Bus:                  bus,
		Logger:               logger,
		MaxCollateral:        big.NewInt(1_000),
		MinimumCollateral:    big.NewInt(100),
		BettingMultiplier:    10,
		ReputationThreshold:  0,
		MaxReputationScale:   100,
		ProtocolFeeRecipient: feeRecipient,
		DisputeWindow:        24 * time.Hour,
		MinLeadTime:          2 * time.Hour,
		CancelCutoff:         time.Hour,
		UnclaimedGracePeriod: 30 * 24 * time.Hour,
	})
	require.NoError(t, err)

	return &fixture{registry: r, ledger: l, clock: mock, bus: bus, auth: policy}
}

// createMarket opens a market with valid timing and an explicit 1000 bond.
func (f *fixture) createMarket(t *testing.T) string {
	t.Helper()

	start := f.clock.Now().Add(4 * time.Hour)
	end := start.Add(24 * time.Hour)
	id, _, err := f.registry.CreateMarket(context.Background(), creator,
		[]string{"yes", "no"}, start, end, big.NewInt(1_000))
	require.NoError(t, err)
	return id
}

func TestCreateMarketComputedCollateral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		reputation     int64
		wantCollateral int64
	}{
		{name: "neutral-reputation-full-bond", reputation: 0, wantCollateral: 1_000},
		{name: "positive-reputation-discounts", reputation: 50, wantCollateral: 500},
		{name: "negative-reputation-raises", reputation: -50, wantCollateral: 1_500},
		{name: "max-reputation-floors-at-minimum", reputation: 100, wantCollateral: 100},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if tt.reputation > 0 {
				require.NoError(t, f.registry.IncreaseCreatorsReputation(owner, creator, tt.reputation))
			} else if tt.reputation < 0 {
				require.NoError(t, f.registry.ChangeReputationThreshold(owner, -100))
				require.NoError(t, f.registry.DecreaseCreatorsReputation(owner, creator, -tt.reputation))
			}

			start := f.clock.Now().Add(4 * time.Hour)
			_, _, err := f.registry.CreateMarket(context.Background(), creator,
				[]string{"yes", "no"}, start, start.Add(time.Hour), nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCollateral, f.ledger.EscrowBalance().Int64())
		})
	}
}

func TestCreateMarketValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	start := f.clock.Now().Add(4 * time.Hour)
	end := start.Add(time.Hour)

	var validationErr *types.ValidationError
	var policyErr *types.PolicyError

	_, _, err := f.registry.CreateMarket(ctx, creator, []string{"yes"}, start, end, nil)
	require.True(t, errors.As(err, &validationErr))

	_, _, err = f.registry.CreateMarket(ctx, creator, []string{"yes", "no"}, start, start, nil)
	require.True(t, errors.As(err, &validationErr))

	// Less than the two-hour lead time.
	tooSoon := f.clock.Now().Add(time.Hour)
	_, _, err = f.registry.CreateMarket(ctx, creator, []string{"yes", "no"}, tooSoon, tooSoon.Add(time.Hour), nil)
	require.True(t, errors.As(err, &validationErr))

	_, _, err = f.registry.CreateMarket(ctx, creator, []string{"yes", "no"}, start, end, big.NewInt(0))
	require.True(t, errors.As(err, &validationErr))

	// Explicit bond below the policy minimum.
	_, _, err = f.registry.CreateMarket(ctx, creator, []string{"yes", "no"}, start, end, big.NewInt(50))
	require.True(t, errors.As(err, &policyErr))

	// Nothing was pulled by any failed attempt.
	assert.Equal(t, int64(0), f.ledger.EscrowBalance().Int64())
}

func TestCreateMarketRegistersAndIndexes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	start := f.clock.Now().Add(4 * time.Hour)
	end := start.Add(time.Hour)

	sub := f.bus.Subscribe()

	first, firstIndex, err := f.registry.CreateMarket(ctx, creator, []string{"yes", "no"}, start, end, big.NewInt(500))
	require.NoError(t, err)
	second, secondIndex, err := f.registry.CreateMarket(ctx, creator, []string{"a", "b", "c"}, start, end, big.NewInt(500))
	require.NoError(t, err)

	assert.Equal(t, 0, firstIndex)
	assert.Equal(t, 1, secondIndex)
	assert.Equal(t, []string{first, second}, f.registry.MarketIDs())
	assert.Equal(t, []string{first, second}, f.registry.MarketsByCreator(creator))
	assert.Empty(t, f.registry.MarketsByCreator(stranger))
	assert.Equal(t, int64(1_000), f.ledger.EscrowBalance().Int64())

	m, ok := f.registry.Market(first)
	require.True(t, ok)
	assert.Equal(t, creator, m.Creator())
	assert.Equal(t, []string{"yes", "no"}, m.Outcomes())

	ev := <-sub
	assert.Equal(t, events.TypeMarketCreated, ev.Type)
	assert.Equal(t, first, ev.MarketID)
	assert.Equal(t, "500", ev.AmountString())
}

func TestComputeBetLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	collateral := big.NewInt(1_000)

	// Neutral trust multiplier (1) is a multiplicative identity:
	// limit = bettingMultiplier * collateral.
	assert.Equal(t, int64(10_000), f.registry.ComputeBetLimit(creator, collateral).Int64())

	// Raised trust scales the limit up.
	require.NoError(t, f.registry.IncreaseCreatorsTrustMultiplier(owner, creator, 2))
	assert.Equal(t, int64(30_000), f.registry.ComputeBetLimit(creator, collateral).Int64())

	// Trust zero zeroes the limit.
	require.NoError(t, f.registry.DecreaseCreatorsTrustMultiplier(owner, creator, 3))
	assert.Equal(t, int64(0), f.registry.ComputeBetLimit(creator, collateral).Int64())

	// Negative trust throttles: limit = collateral / |trust|.
	require.NoError(t, f.registry.DecreaseCreatorsTrustMultiplier(owner, creator, 4))
	assert.Equal(t, int64(250), f.registry.ComputeBetLimit(creator, collateral).Int64())
}

func TestBetLimitEnforcedOnMarket(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createMarket(t)
	m, _ := f.registry.Market(id)
	ctx := context.Background()

	// Limit is 10 * 1 * 1000 = 10000.
	require.NoError(t, m.PlaceBet(ctx, bettor1, 0, big.NewInt(10_000)))

	err := m.PlaceBet(ctx, bettor1, 1, big.NewInt(1))
	var policyErr *types.PolicyError
	require.True(t, errors.As(err, &policyErr))

	// Untrusted creators cap bettor exposure instead of scaling it up.
	require.NoError(t, f.registry.DecreaseCreatorsTrustMultiplier(owner, creator, 3))
	err = m.PlaceBet(ctx, bettor2, 0, big.NewInt(501))
	require.True(t, errors.As(err, &policyErr))
	require.NoError(t, m.PlaceBet(ctx, bettor2, 0, big.NewInt(500)))
}

func TestIncreaseCollateral(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createMarket(t)
	ctx := context.Background()

	err := f.registry.IncreaseCollateral(ctx, stranger, id, big.NewInt(100))
	var authErr *types.AuthorizationError
	require.True(t, errors.As(err, &authErr))

	require.NoError(t, f.registry.IncreaseCollateral(ctx, creator, id, big.NewInt(250)))
	locked, _, err := f.registry.Collateral(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1_250), locked.Int64())

	// Raising the bond raises the bet limit proportionally.
	limit, err := f.registry.BetLimit(id)
	require.NoError(t, err)
	assert.Equal(t, int64(12_500), limit.Int64())

	// Only while Open.
	m, _ := f.registry.Market(id)
	f.clock.Set(m.EndTime())
	require.NoError(t, m.SubmitOutcome(creator, 0))
	err = f.registry.IncreaseCollateral(ctx, creator, id, big.NewInt(1))
	var phaseErr *types.PhaseError
	require.True(t, errors.As(err, &phaseErr))
}

func TestCancelEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("refunds-bond", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.createMarket(t)

		before := f.ledger.BalanceOf(creator)
		require.NoError(t, f.registry.CancelEvent(ctx, creator, id))

		after := f.ledger.BalanceOf(creator)
		assert.Equal(t, int64(1_000), new(big.Int).Sub(after, before).Int64())
		assert.Equal(t, int64(0), f.ledger.EscrowBalance().Int64())

		locked, _, err := f.registry.Collateral(id)
		require.NoError(t, err)
		assert.Equal(t, int64(0), locked.Int64())

		m, _ := f.registry.Market(id)
		assert.Equal(t, types.PhaseCancelled, m.Phase())
	})

	t.Run("only-creator", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.createMarket(t)
		err := f.registry.CancelEvent(ctx, stranger, id)
		var authErr *types.AuthorizationError
		require.True(t, errors.As(err, &authErr))
	})

	t.Run("too-close-to-start", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.createMarket(t)
		m, _ := f.registry.Market(id)
		f.clock.Set(m.StartTime().Add(-30 * time.Minute))

		err := f.registry.CancelEvent(ctx, creator, id)
		var phaseErr *types.PhaseError
		require.True(t, errors.As(err, &phaseErr))

		// Bond stays locked after the failed cancel.
		locked, _, err := f.registry.Collateral(id)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000), locked.Int64())
	})
}

func TestGovernanceOwnerOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var authErr *types.AuthorizationError

	calls := []struct {
		name string
		call func() error
	}{
		{"increase-reputation", func() error { return f.registry.IncreaseCreatorsReputation(admin, creator, 1) }},
		{"decrease-reputation", func() error { return f.registry.DecreaseCreatorsReputation(admin, creator, 1) }},
		{"increase-trust", func() error { return f.registry.IncreaseCreatorsTrustMultiplier(admin, creator, 1) }},
		{"decrease-trust", func() error { return f.registry.DecreaseCreatorsTrustMultiplier(admin, creator, 1) }},
		{"set-max-collateral", func() error { return f.registry.SetMaxCollateral(admin, big.NewInt(1)) }},
		{"set-betting-multiplier", func() error { return f.registry.SetBettingMultiplier(admin, 1) }},
		{"change-reputation-threshold", func() error { return f.registry.ChangeReputationThreshold(admin, 1) }},
		{"set-fee-recipient", func() error { return f.registry.SetProtocolFeeRecipient(admin, stranger) }},
		{"transfer-governance", func() error { return f.registry.TransferGovernance(admin, admin) }},
	}

	// Admins may resolve disputes but hold no governance rights.
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			require.True(t, errors.As(c.call(), &authErr))
		})
	}
}

func TestPolicySettersBumpVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	require.NoError(t, f.registry.SetMaxCollateral(owner, big.NewInt(2_000)))
	require.NoError(t, f.registry.SetBettingMultiplier(owner, 5))
	require.NoError(t, f.registry.ChangeReputationThreshold(owner, 10))
	require.NoError(t, f.registry.SetProtocolFeeRecipient(owner, stranger))

	p := f.registry.Policy()
	assert.Equal(t, int64(4), p.Version)
	assert.Equal(t, int64(2_000), p.MaxCollateral.Int64())
	assert.Equal(t, int64(5), p.BettingMultiplier)
	assert.Equal(t, int64(10), p.ReputationThreshold)
	assert.Equal(t, stranger, p.ProtocolFeeRecipient)
}

func TestReputationClamping(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	require.NoError(t, f.registry.IncreaseCreatorsReputation(owner, creator, 500))
	assert.Equal(t, int64(100), f.registry.Profile(creator).Reputation)

	require.NoError(t, f.registry.DecreaseCreatorsReputation(owner, creator, 500))
	assert.Equal(t, int64(-100), f.registry.Profile(creator).Reputation)
}

func TestAdjustmentsRejectNonPositiveAmounts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	calls := []struct {
		name string
		call func(amount int64) error
	}{
		{"increase-reputation", func(a int64) error { return f.registry.IncreaseCreatorsReputation(owner, creator, a) }},
		{"decrease-reputation", func(a int64) error { return f.registry.DecreaseCreatorsReputation(owner, creator, a) }},
		{"increase-trust", func(a int64) error { return f.registry.IncreaseCreatorsTrustMultiplier(owner, creator, a) }},
		{"decrease-trust", func(a int64) error { return f.registry.DecreaseCreatorsTrustMultiplier(owner, creator, a) }},
	}

	for _, tt := range calls {
		t.Run(tt.name, func(t *testing.T) {
			for _, amount := range []int64{0, -10} {
				err := tt.call(amount)
				var valErr *types.ValidationError
				require.True(t, errors.As(err, &valErr), "amount %d", amount)
			}
		})
	}

	// A negative amount never reverses an operation's direction.
	profile := f.registry.Profile(creator)
	assert.Equal(t, int64(0), profile.Reputation)
	assert.Equal(t, int64(1), profile.TrustMultiplier)
}

func TestTransferGovernance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	require.NoError(t, f.registry.TransferGovernance(owner, stranger))

	// Old owner is powerless, new owner governs.
	var authErr *types.AuthorizationError
	require.True(t, errors.As(f.registry.SetBettingMultiplier(owner, 2), &authErr))
	require.NoError(t, f.registry.SetBettingMultiplier(stranger, 2))
}
