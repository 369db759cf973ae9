package registry

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

	"github.com/veristake/bondmarket/internal/auth"
	"github.com/veristake/bondmarket/internal/events"
	"github.com/veristake/bondmarket/internal/ledger"
	"github.com/veristake/bondmarket/internal/market"
	"github.com/veristake/bondmarket/pkg/types"
)

const (
	// defaultTrustMultiplier is the neutral trust multiplier assigned to new
	// creators. It acts as a multiplicative identity: a fresh creator's bet
	// limit is bettingMultiplier * collateral.
	defaultTrustMultiplier = 1

	// reputationSlashPenalty is subtracted from a creator's reputation when
	// an admin overturns their report.
	reputationSlashPenalty = 50
)

// GlobalPolicy is the registry-wide configuration read by every market
// creation and bet-limit computation. Mutated only through owner-gated
// setters; Version increments on every mutation.
type GlobalPolicy struct {
	Version              int64
	MaxCollateral        *big.Int
	MinimumCollateral    *big.Int
	BettingMultiplier    int64
	ReputationThreshold  int64
	MaxReputationScale   int64
	ProtocolFeeRecipient common.Address
}

// CreatorProfile holds per-creator registry state. Reputation inversely sizes
// required collateral and gates market creation; the trust multiplier scales
// or throttles the bet limit on the creator's markets.
type CreatorProfile struct {
	Reputation      int64
	TrustMultiplier int64
}

// CollateralRecord tracks the creator's bond for one market. Locked and
// Forfeited are never both non-zero: a market settles through exactly one of
// creator reclaim or disputer forfeiture claims.
type CollateralRecord struct {
	Locked         *big.Int
	Forfeited      *big.Int // total moved out of Locked when overturned
	Remaining      *big.Int // unclaimed portion of Forfeited
	Claimed        map[common.Address]bool
	Resolved       bool
	OutcomeChanged bool
	Swept          bool
}

// Registry owns global policy, per-creator profiles, collateral accounting,
// dispute adjudication, and the table of all markets.
type Registry struct {
	mu sync.Mutex

	auth   *auth.Policy
	ledger ledger.Ledger
	clk    clock.Clock
	bus    *events.Bus
	logger *zap.Logger

	policy     GlobalPolicy
	profiles   map[common.Address]*CreatorProfile
	markets    map[string]*market.Market
	order      []string
	byCreator  map[common.Address][]string
	collateral map[string]*CollateralRecord

	disputeWindow        time.Duration
	minLeadTime          time.Duration
	cancelCutoff         time.Duration
	unclaimedGracePeriod time.Duration
}

// Config holds registry construction parameters.
type Config struct {
	Auth                 *auth.Policy
	Ledger               ledger.Ledger
	Clock                clock.Clock
	Bus                  *events.Bus
	Logger               *zap.Logger
	MaxCollateral        *big.Int
	MinimumCollateral    *big.Int
	BettingMultiplier    int64
	ReputationThreshold  int64
	MaxReputationScale   int64
	ProtocolFeeRecipient common.Address
	DisputeWindow        time.Duration
	MinLeadTime          time.Duration
	CancelCutoff         time.Duration
	UnclaimedGracePeriod time.Duration
}

// New creates a registry with the given policy seed.
func New(cfg *Config) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("authorization policy cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MaxCollateral == nil || cfg.MaxCollateral.Sign() <= 0 {
		return nil, fmt.Errorf("max collateral must be positive")
	}
	if cfg.MinimumCollateral == nil || cfg.MinimumCollateral.Sign() <= 0 {
		return nil, fmt.Errorf("minimum collateral must be positive")
	}
	if cfg.BettingMultiplier <= 0 {
		return nil, fmt.Errorf("betting multiplier must be positive")
	}
	if cfg.MaxReputationScale <= 0 {
		return nil, fmt.Errorf("max reputation scale must be positive")
	}
	if cfg.DisputeWindow <= 0 {
		return nil, fmt.Errorf("dispute window must be positive")
	}
	if cfg.MinLeadTime <= 0 {
		return nil, fmt.Errorf("min lead time must be positive")
	}
	if cfg.CancelCutoff <= 0 {
		return nil, fmt.Errorf("cancel cutoff must be positive")
	}
	if cfg.UnclaimedGracePeriod <= 0 {
		return nil, fmt.Errorf("unclaimed grace period must be positive")
	}

	return &Registry{
		auth:   cfg.Auth,
		ledger: cfg.Ledger,
		clk:    cfg.Clock,
		bus:    cfg.Bus,
		logger: cfg.Logger,
		policy: GlobalPolicy{
			MaxCollateral:        new(big.Int).Set(cfg.MaxCollateral),
			MinimumCollateral:    new(big.Int).Set(cfg.MinimumCollateral),
			BettingMultiplier:    cfg.BettingMultiplier,
			ReputationThreshold:  cfg.ReputationThreshold,
			MaxReputationScale:   cfg.MaxReputationScale,
			ProtocolFeeRecipient: cfg.ProtocolFeeRecipient,
		},
		profiles:             make(map[common.Address]*CreatorProfile),
		markets:              make(map[string]*market.Market),
		byCreator:            make(map[common.Address][]string),
		collateral:           make(map[string]*CollateralRecord),
		disputeWindow:        cfg.DisputeWindow,
		minLeadTime:          cfg.MinLeadTime,
		cancelCutoff:         cfg.CancelCutoff,
		unclaimedGracePeriod: cfg.UnclaimedGracePeriod,
	}, nil
}

// CreateMarket validates timing and reputation, sizes and pulls the creator's
// collateral bond, and registers a new market. When explicitCollateral is nil
// the bond is sized from the creator's reputation:
//
//	discount   = maxCollateral * reputation / maxReputationScale
//	collateral = max(maxCollateral - discount, minimumCollateral)
//
// Returns the market ID and the index of the market in the creator's list.
func (r *Registry) CreateMarket(ctx context.Context, creator common.Address, outcomes []string, startTime, endTime time.Time, explicitCollateral *big.Int) (string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(outcomes) < 2 {
		return "", 0, &types.ValidationError{Field: "outcomes", Reason: "need at least two outcomes"}
	}
	if !endTime.After(startTime) {
		return "", 0, &types.ValidationError{Field: "end time", Reason: "must be after start time"}
	}
	now := r.clk.Now()
	if startTime.Before(now.Add(r.minLeadTime)) {
		return "", 0, &types.ValidationError{
			Field:  "start time",
			Reason: fmt.Sprintf("must be at least %s in the future", r.minLeadTime),
		}
	}

	profile := r.profileLocked(creator)
	if profile.Reputation < r.policy.ReputationThreshold {
		return "", 0, &types.PolicyError{
			Reason: fmt.Sprintf("reputation %d below threshold %d", profile.Reputation, r.policy.ReputationThreshold),
		}
	}

	collateral, err := r.sizeCollateralLocked(profile, explicitCollateral)
	if err != nil {
		return "", 0, err
	}

	if err := r.ledger.TransferIn(ctx, creator, collateral); err != nil {
		return "", 0, fmt.Errorf("pull collateral: %w", err)
	}

	id := uuid.New().String()
	m, err := market.New(&market.Config{
		ID:            id,
		Creator:       creator,
		Outcomes:      outcomes,
		StartTime:     startTime,
		EndTime:       endTime,
		DisputeWindow: r.disputeWindow,
		Ledger:        r.ledger,
		Clock:         r.clk,
		Limiter:       r,
		Bus:           r.bus,
		Logger:        r.logger,
	})
	if err != nil {
		// Collateral was already pulled; hand it straight back.
		if refundErr := r.ledger.TransferOut(ctx, creator, collateral); refundErr != nil {
			r.logger.Error("collateral-refund-failed",
				zap.String("creator", creator.Hex()),
				zap.Error(refundErr))
		}
		return "", 0, fmt.Errorf("create market: %w", err)
	}

	creatorIndex := len(r.byCreator[creator])
	r.markets[id] = m
	r.order = append(r.order, id)
	r.byCreator[creator] = append(r.byCreator[creator], id)
	r.collateral[id] = &CollateralRecord{
		Locked:    new(big.Int).Set(collateral),
		Forfeited: new(big.Int),
		Remaining: new(big.Int),
		Claimed:   make(map[common.Address]bool),
	}

	MarketsCreatedTotal.Inc()
	addCollateralGauge(collateral)

	r.logger.Info("market-created",
		zap.String("market-id", id),
		zap.String("creator", creator.Hex()),
		zap.Int("outcome-count", len(outcomes)),
		zap.String("collateral", collateral.String()),
		zap.Time("start-time", startTime),
		zap.Time("end-time", endTime))

	r.publish(events.Event{
		Type:         events.TypeMarketCreated,
		MarketID:     id,
		Actor:        creator,
		Amount:       new(big.Int).Set(collateral),
		OutcomeIndex: -1,
	})

	return id, creatorIndex, nil
}

// IncreaseCollateral adds to the creator's bond while the market is Open.
func (r *Registry) IncreaseCollateral(ctx context.Context, caller common.Address, marketID string, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, record, err := r.lookupLocked(marketID)
	if err != nil {
		return err
	}
	if caller != m.Creator() {
		return &types.AuthorizationError{Operation: "increase collateral", Caller: caller}
	}
	if m.Phase() != types.PhaseOpen {
		return &types.PhaseError{Operation: "increase collateral", Reason: "market is " + m.Phase().String()}
	}
	if amount == nil || amount.Sign() <= 0 {
		return &types.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	if err := r.ledger.TransferIn(ctx, caller, amount); err != nil {
		return fmt.Errorf("pull collateral: %w", err)
	}

	record.Locked.Add(record.Locked, amount)
	addCollateralGauge(amount)

	r.logger.Info("collateral-increased",
		zap.String("market-id", marketID),
		zap.String("amount", amount.String()),
		zap.String("locked", record.Locked.String()))

	return nil
}

// BetLimit implements market.BetLimiter against the creator's locked
// collateral and trust multiplier.
func (r *Registry) BetLimit(marketID string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, record, err := r.lookupLocked(marketID)
	if err != nil {
		return nil, err
	}

	profile := r.profileLocked(m.Creator())
	return computeBetLimit(r.policy.BettingMultiplier, profile.TrustMultiplier, record.Locked), nil
}

// ComputeBetLimit returns the maximum cumulative stake a bettor may hold
// against the creator at the given collateral. A non-negative trust
// multiplier scales the limit up; a negative one throttles it by dividing
// the collateral instead.
func (r *Registry) ComputeBetLimit(creator common.Address, collateral *big.Int) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile := r.profileLocked(creator)
	return computeBetLimit(r.policy.BettingMultiplier, profile.TrustMultiplier, collateral)
}

func computeBetLimit(bettingMultiplier, trustMultiplier int64, collateral *big.Int) *big.Int {
	if trustMultiplier >= 0 {
		limit := new(big.Int).Mul(collateral, big.NewInt(bettingMultiplier))
		return limit.Mul(limit, big.NewInt(trustMultiplier))
	}
	return new(big.Int).Quo(collateral, big.NewInt(-trustMultiplier))
}

// CancelEvent cancels an Open market before its start and releases the
// creator's bond with no settlement. Valid only for the creator and only
// until one hour (the configured cutoff) before start time.
func (r *Registry) CancelEvent(ctx context.Context, caller common.Address, marketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, record, err := r.lookupLocked(marketID)
	if err != nil {
		return err
	}
	if caller != m.Creator() {
		return &types.AuthorizationError{Operation: "cancel event", Caller: caller}
	}

	amount := new(big.Int).Set(record.Locked)

	// The bond release runs under the market lock so the phase flip and the
	// collateral movement commit or abort together.
	err = m.CancelBeforeStart(r.cancelCutoff, func() error {
		if amount.Sign() == 0 {
			return nil
		}
		record.Locked.SetInt64(0)
		if err := r.ledger.TransferOut(ctx, caller, amount); err != nil {
			record.Locked.Set(amount)
			return fmt.Errorf("release collateral: %w", err)
		}
		subCollateralGauge(amount)
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("event-cancelled",
		zap.String("market-id", marketID),
		zap.String("released", amount.String()))

	return nil
}

// Market returns the market with the given ID.
func (r *Registry) Market(marketID string) (*market.Market, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markets[marketID]
	return m, ok
}

// MarketIDs returns all market IDs in creation order.
func (r *Registry) MarketIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// MarketsByCreator returns the creator's market IDs in creation order.
func (r *Registry) MarketsByCreator(creator common.Address) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byCreator[creator]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Snapshot renders one market with its collateral figures for the HTTP API.
func (r *Registry) Snapshot(marketID string) (types.MarketSnapshot, bool) {
	r.mu.Lock()
	m, record, err := r.lookupLocked(marketID)
	if err != nil {
		r.mu.Unlock()
		return types.MarketSnapshot{}, false
	}
	locked := new(big.Int).Set(record.Locked)
	remaining := new(big.Int).Set(record.Remaining)
	r.mu.Unlock()

	// The market takes its own lock; release ours first.
	return m.Snapshot(locked, remaining), true
}

// Snapshots renders every market in creation order.
func (r *Registry) Snapshots() []types.MarketSnapshot {
	ids := r.MarketIDs()
	out := make([]types.MarketSnapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := r.Snapshot(id); ok {
			out = append(out, snap)
		}
	}
	return out
}

// Collateral returns the locked and remaining-forfeited amounts for a market.
func (r *Registry) Collateral(marketID string) (locked, forfeited *big.Int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, record, err := r.lookupLocked(marketID)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(record.Locked), new(big.Int).Set(record.Remaining), nil
}

// Policy returns a copy of the current global policy.
func (r *Registry) Policy() GlobalPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.policy
	p.MaxCollateral = new(big.Int).Set(r.policy.MaxCollateral)
	p.MinimumCollateral = new(big.Int).Set(r.policy.MinimumCollateral)
	return p
}

// Profile returns a copy of the creator's profile, materializing the neutral
// default for unseen creators.
func (r *Registry) Profile(creator common.Address) CreatorProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.profileLocked(creator)
}

func (r *Registry) sizeCollateralLocked(profile *CreatorProfile, explicit *big.Int) (*big.Int, error) {
	if explicit != nil {
		if explicit.Sign() <= 0 {
			return nil, &types.ValidationError{Field: "collateral", Reason: "must be positive"}
		}
		if explicit.Cmp(r.policy.MinimumCollateral) < 0 {
			return nil, &types.PolicyError{
				Reason: fmt.Sprintf("collateral %s below minimum %s", explicit, r.policy.MinimumCollateral),
			}
		}
		return new(big.Int).Set(explicit), nil
	}

	// Reputation above neutral discounts the bond, below neutral raises it.
	discount := new(big.Int).Mul(r.policy.MaxCollateral, big.NewInt(profile.Reputation))
	discount.Quo(discount, big.NewInt(r.policy.MaxReputationScale))

	collateral := new(big.Int).Sub(r.policy.MaxCollateral, discount)
	if collateral.Cmp(r.policy.MinimumCollateral) < 0 {
		collateral.Set(r.policy.MinimumCollateral)
	}
	return collateral, nil
}

func (r *Registry) profileLocked(creator common.Address) *CreatorProfile {
	if p, ok := r.profiles[creator]; ok {
		return p
	}
	p := &CreatorProfile{TrustMultiplier: defaultTrustMultiplier}
	r.profiles[creator] = p
	return p
}

func (r *Registry) lookupLocked(marketID string) (*market.Market, *CollateralRecord, error) {
	m, ok := r.markets[marketID]
	if !ok {
		return nil, nil, &types.ValidationError{Field: "market id", Reason: "unknown market"}
	}
	record, ok := r.collateral[marketID]
	if !ok {
		return nil, nil, fmt.Errorf("missing collateral record for market %s", marketID)
	}
	return m, record, nil
}

func (r *Registry) publish(ev events.Event) {
	if r.bus == nil {
		return
	}
	ev.ID = uuid.New().String()
	ev.At = r.clk.Now()
	r.bus.Publish(ev)
}
