package market

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veristake/bondmarket/internal/events"
	"github.com/veristake/bondmarket/internal/ledger"
	"github.com/veristake/bondmarket/pkg/types"
)

// BetLimiter computes the maximum cumulative stake a single bettor may hold
// on a market. The registry implements this against the creator's locked
// collateral and trust multiplier.
type BetLimiter interface {
	BetLimit(marketID string) (*big.Int, error)
}

// Market is the state machine for one prediction event: an ordered outcome
// list fixed at creation, a per-bettor stake ledger, the creator's outcome
// report, and dispute contributions escrowed against that report. A market
// never holds collateral itself; the registry owns all collateral
// bookkeeping.
type Market struct {
	mu sync.Mutex

	id        string
	creator   common.Address
	outcomes  []string
	startTime time.Time
	endTime   time.Time

	phase           types.Phase
	reportedOutcome int
	disputeDeadline time.Time

	stakes         map[common.Address][]*big.Int
	totalByOutcome []*big.Int
	totalByBettor  map[common.Address]*big.Int

	disputeContribs   map[common.Address]*big.Int
	totalDisputeStake *big.Int

	disputeWindow time.Duration

	ledger  ledger.Ledger
	clk     clock.Clock
	limiter BetLimiter
	bus     *events.Bus
	logger  *zap.Logger
}

// Config holds market construction parameters.
type Config struct {
	ID            string
	Creator       common.Address
	Outcomes      []string
	StartTime     time.Time
	EndTime       time.Time
	DisputeWindow time.Duration
	Ledger        ledger.Ledger
	Clock         clock.Clock
	Limiter       BetLimiter
	Bus           *events.Bus
	Logger        *zap.Logger
}

// New creates a market in the Open phase.
func New(cfg *Config) (*Market, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock cannot be nil")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("bet limiter cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Outcomes) < 2 {
		return nil, &types.ValidationError{Field: "outcomes", Reason: "need at least two outcomes"}
	}
	if !cfg.EndTime.After(cfg.StartTime) {
		return nil, &types.ValidationError{Field: "end time", Reason: "must be after start time"}
	}
	if cfg.DisputeWindow <= 0 {
		return nil, &types.ValidationError{Field: "dispute window", Reason: "must be positive"}
	}

	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}

	outcomes := make([]string, len(cfg.Outcomes))
	copy(outcomes, cfg.Outcomes)

	totals := make([]*big.Int, len(outcomes))
	for i := range totals {
		totals[i] = new(big.Int)
	}

	return &Market{
		id:                id,
		creator:           cfg.Creator,
		outcomes:          outcomes,
		startTime:         cfg.StartTime,
		endTime:           cfg.EndTime,
		phase:             types.PhaseOpen,
		reportedOutcome:   -1,
		stakes:            make(map[common.Address][]*big.Int),
		totalByOutcome:    totals,
		totalByBettor:     make(map[common.Address]*big.Int),
		disputeContribs:   make(map[common.Address]*big.Int),
		totalDisputeStake: new(big.Int),
		disputeWindow:     cfg.DisputeWindow,
		ledger:            cfg.Ledger,
		clk:               cfg.Clock,
		limiter:           cfg.Limiter,
		bus:               cfg.Bus,
		logger:            cfg.Logger,
	}, nil
}

// PlaceBet escrows amount from the bettor on the given outcome. Valid only
// while the market is Open and before the end time. The bettor's cumulative
// stake across all outcomes must stay within the registry-derived bet limit.
func (m *Market) PlaceBet(ctx context.Context, bettor common.Address, outcomeIndex int, amount *big.Int) error {
	// The limit read goes back into the registry, so take it before the
	// market lock to keep lock ordering one-way (registry before market).
	limit, err := m.limiter.BetLimit(m.id)
	if err != nil {
		return fmt.Errorf("compute bet limit: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != types.PhaseOpen {
		return &types.PhaseError{Operation: "place bet", Reason: "market is " + m.phase.String()}
	}
	if !m.clk.Now().Before(m.endTime) {
		return &types.PhaseError{Operation: "place bet", Reason: "betting closed at end time"}
	}
	if outcomeIndex < 0 || outcomeIndex >= len(m.outcomes) {
		return &types.ValidationError{Field: "outcome index", Reason: "unknown outcome"}
	}
	if amount == nil || amount.Sign() <= 0 {
		return &types.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	staked := m.bettorTotalLocked(bettor)
	if new(big.Int).Add(staked, amount).Cmp(limit) > 0 {
		return &types.PolicyError{
			Reason: fmt.Sprintf("bet limit exceeded: staked %s + %s > limit %s", staked, amount, limit),
		}
	}

	if err := m.ledger.TransferIn(ctx, bettor, amount); err != nil {
		return fmt.Errorf("pull stake: %w", err)
	}

	perOutcome, ok := m.stakes[bettor]
	if !ok {
		perOutcome = make([]*big.Int, len(m.outcomes))
		for i := range perOutcome {
			perOutcome[i] = new(big.Int)
		}
		m.stakes[bettor] = perOutcome
	}
	perOutcome[outcomeIndex].Add(perOutcome[outcomeIndex], amount)
	m.totalByOutcome[outcomeIndex].Add(m.totalByOutcome[outcomeIndex], amount)
	m.totalByBettor[bettor] = new(big.Int).Add(staked, amount)

	BetsPlacedTotal.Inc()
	amountFloat, _ := new(big.Float).SetInt(amount).Float64()
	BetVolumeTotal.Add(amountFloat)

	m.logger.Info("bet-placed",
		zap.String("market-id", m.id),
		zap.String("bettor", bettor.Hex()),
		zap.Int("outcome-index", outcomeIndex),
		zap.String("amount", amount.String()))

	return nil
}

// SubmitOutcome records the creator's report of the winning outcome. Valid
// only for the creator, only at or after the end time, and only once. Opens
// the dispute window.
func (m *Market) SubmitOutcome(caller common.Address, outcomeIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.creator {
		return &types.AuthorizationError{Operation: "submit outcome", Caller: caller}
	}
	if m.phase != types.PhaseOpen {
		return &types.PhaseError{Operation: "submit outcome", Reason: "already reported"}
	}
	now := m.clk.Now()
	if now.Before(m.endTime) {
		return &types.PhaseError{Operation: "submit outcome", Reason: "betting still open"}
	}
	if outcomeIndex < 0 || outcomeIndex >= len(m.outcomes) {
		return &types.ValidationError{Field: "outcome index", Reason: "unknown outcome"}
	}

	m.reportedOutcome = outcomeIndex
	m.disputeDeadline = now.Add(m.disputeWindow)
	m.phase = types.PhaseReported

	OutcomesSubmittedTotal.Inc()

	m.logger.Info("outcome-submitted",
		zap.String("market-id", m.id),
		zap.Int("outcome-index", outcomeIndex),
		zap.Time("dispute-deadline", m.disputeDeadline))

	m.publish(events.Event{
		Type:         events.TypeOutcomeSubmitted,
		MarketID:     m.id,
		Actor:        caller,
		OutcomeIndex: outcomeIndex,
		At:           now,
	})

	return nil
}

// ContributeDispute escrows a challenge stake against the reported outcome.
// Only identities with an existing bet on the market may dispute, and only
// while the dispute window is open. The report itself is untouched;
// adjudication happens in the registry.
func (m *Market) ContributeDispute(ctx context.Context, bettor common.Address, reason string, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != types.PhaseReported && m.phase != types.PhaseDisputed {
		return &types.PhaseError{Operation: "contribute dispute", Reason: "no report to dispute"}
	}
	now := m.clk.Now()
	if !now.Before(m.disputeDeadline) {
		return &types.PhaseError{Operation: "contribute dispute", Reason: "dispute window closed"}
	}
	if m.bettorTotalLocked(bettor).Sign() == 0 {
		return &types.AuthorizationError{Operation: "contribute dispute", Caller: bettor}
	}
	if amount == nil || amount.Sign() <= 0 {
		return &types.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	if err := m.ledger.TransferIn(ctx, bettor, amount); err != nil {
		return fmt.Errorf("pull dispute stake: %w", err)
	}

	prev, ok := m.disputeContribs[bettor]
	if !ok {
		prev = new(big.Int)
	}
	m.disputeContribs[bettor] = new(big.Int).Add(prev, amount)
	m.totalDisputeStake.Add(m.totalDisputeStake, amount)
	m.phase = types.PhaseDisputed

	DisputeContributionsTotal.Inc()

	m.logger.Info("dispute-contributed",
		zap.String("market-id", m.id),
		zap.String("bettor", bettor.Hex()),
		zap.String("amount", amount.String()),
		zap.String("reason", reason))

	m.publish(events.Event{
		Type:         events.TypeDisputeContributed,
		MarketID:     m.id,
		Actor:        bettor,
		Amount:       new(big.Int).Set(amount),
		OutcomeIndex: m.reportedOutcome,
		Reason:       reason,
		At:           now,
	})

	return nil
}

// Settle finalizes a market whose report stood, flipping it to Closed when
// the reported outcome had at least one backer and to Cancelled otherwise.
// Called by the registry from ClaimCollateral; the registry enforces the
// deadline and forfeiture checks.
func (m *Market) Settle() (types.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != types.PhaseReported && m.phase != types.PhaseDisputed {
		return m.phase, &types.PhaseError{Operation: "settle", Reason: "market is " + m.phase.String()}
	}

	if m.totalByOutcome[m.reportedOutcome].Sign() == 0 {
		m.phase = types.PhaseCancelled
	} else {
		m.phase = types.PhaseClosed
	}

	m.logger.Info("market-settled",
		zap.String("market-id", m.id),
		zap.String("phase", m.phase.String()))

	return m.phase, nil
}

// MarkOverturned terminates a market whose report an admin overturned. The
// creator's bond is forfeited in the registry and will not return.
func (m *Market) MarkOverturned() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != types.PhaseReported && m.phase != types.PhaseDisputed {
		return &types.PhaseError{Operation: "overturn", Reason: "market is " + m.phase.String()}
	}

	m.phase = types.PhaseClosed

	m.logger.Info("market-overturned", zap.String("market-id", m.id))

	return nil
}

// CancelBeforeStart cancels an Open market, valid only up to cutoff before
// the start time. The optional release callback runs after validation and
// before the phase flip, all under the market lock: if the release fails the
// market stays Open and the cancel is retryable with no partial effect. The
// registry uses the callback to return the creator's collateral.
func (m *Market) CancelBeforeStart(cutoff time.Duration, release func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != types.PhaseOpen {
		return &types.PhaseError{Operation: "cancel", Reason: "market is " + m.phase.String()}
	}
	if !m.clk.Now().Before(m.startTime.Add(-cutoff)) {
		return &types.PhaseError{Operation: "cancel", Reason: "too close to start time"}
	}

	if release != nil {
		if err := release(); err != nil {
			return err
		}
	}

	m.phase = types.PhaseCancelled

	m.logger.Info("market-cancelled", zap.String("market-id", m.id))

	return nil
}

// ID returns the market's stable identifier.
func (m *Market) ID() string { return m.id }

// Creator returns the market creator's identity.
func (m *Market) Creator() common.Address { return m.creator }

// Outcomes returns a copy of the outcome labels.
func (m *Market) Outcomes() []string {
	out := make([]string, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}

// StartTime returns the market start instant.
func (m *Market) StartTime() time.Time { return m.startTime }

// EndTime returns the betting close instant.
func (m *Market) EndTime() time.Time { return m.endTime }

// Phase returns the current lifecycle phase.
func (m *Market) Phase() types.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// ReportedOutcome returns the reported outcome index, if reported.
func (m *Market) ReportedOutcome() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reportedOutcome < 0 {
		return 0, false
	}
	return m.reportedOutcome, true
}

// DisputeDeadline returns the dispute window close, if a report was filed.
func (m *Market) DisputeDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reportedOutcome < 0 {
		return time.Time{}, false
	}
	return m.disputeDeadline, true
}

// StakeOf returns the bettor's stake on one outcome.
func (m *Market) StakeOf(bettor common.Address, outcomeIndex int) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	perOutcome, ok := m.stakes[bettor]
	if !ok || outcomeIndex < 0 || outcomeIndex >= len(perOutcome) {
		return new(big.Int)
	}
	return new(big.Int).Set(perOutcome[outcomeIndex])
}

// TotalStakedOn returns the aggregate stake on one outcome.
func (m *Market) TotalStakedOn(outcomeIndex int) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if outcomeIndex < 0 || outcomeIndex >= len(m.totalByOutcome) {
		return new(big.Int)
	}
	return new(big.Int).Set(m.totalByOutcome[outcomeIndex])
}

// DisputeContribution returns the identity's escrowed dispute stake.
func (m *Market) DisputeContribution(id common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.disputeContribs[id]; ok {
		return new(big.Int).Set(c)
	}
	return new(big.Int)
}

// TotalDisputeStake returns the sum of all dispute contributions.
func (m *Market) TotalDisputeStake() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.totalDisputeStake)
}

// Snapshot renders the market for the HTTP API. The registry supplies the
// collateral figures since markets never hold collateral themselves.
func (m *Market) Snapshot(locked, forfeited *big.Int) types.MarketSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := make([]string, len(m.totalByOutcome))
	for i, t := range m.totalByOutcome {
		totals[i] = t.String()
	}

	snap := types.MarketSnapshot{
		ID:                   m.id,
		Creator:              m.creator.Hex(),
		Outcomes:             m.Outcomes(),
		StartTime:            m.startTime,
		EndTime:              m.endTime,
		Phase:                m.phase.String(),
		TotalStakedByOutcome: totals,
		TotalDisputeStake:    m.totalDisputeStake.String(),
		LockedCollateral:     locked.String(),
		ForfeitedCollateral:  forfeited.String(),
	}

	if m.reportedOutcome >= 0 {
		reported := m.reportedOutcome
		deadline := m.disputeDeadline
		snap.ReportedOutcome = &reported
		snap.DisputeDeadline = &deadline
	}

	return snap
}

func (m *Market) bettorTotalLocked(bettor common.Address) *big.Int {
	if t, ok := m.totalByBettor[bettor]; ok {
		return t
	}
	return new(big.Int)
}

func (m *Market) publish(ev events.Event) {
	if m.bus == nil {
		return
	}
	ev.ID = uuid.New().String()
	m.bus.Publish(ev)
}
