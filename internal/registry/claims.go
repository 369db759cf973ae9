package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/veristake/bondmarket/internal/events"
	"github.com/veristake/bondmarket/pkg/types"
)

// ResolveDispute adjudicates a reported market. Callable only by the owner or
// an allow-listed admin, and only once per market.
//
// An upheld report (finalOutcome equal to the creator's report) leaves the
// bond locked for the creator to claim after the dispute deadline. An
// overturned report moves the whole bond into forfeiture for pro-rata claims
// by disputers, slashes the creator's reputation, and terminates the market.
func (r *Registry) ResolveDispute(caller common.Address, marketID string, finalOutcome int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auth.CanResolveDispute(caller) {
		return &types.AuthorizationError{Operation: "resolve dispute", Caller: caller}
	}

	m, record, err := r.lookupLocked(marketID)
	if err != nil {
		return err
	}
	if record.Resolved {
		return &types.PhaseError{Operation: "resolve dispute", Reason: "already resolved"}
	}

	reported, ok := m.ReportedOutcome()
	if !ok {
		return &types.PhaseError{Operation: "resolve dispute", Reason: "no outcome reported"}
	}
	if finalOutcome < 0 || finalOutcome >= len(m.Outcomes()) {
		return &types.ValidationError{Field: "final outcome", Reason: "unknown outcome"}
	}

	deadline, _ := m.DisputeDeadline()
	if m.TotalDisputeStake().Sign() == 0 && !r.clk.Now().After(deadline) {
		return &types.PhaseError{Operation: "resolve dispute", Reason: "no contributions and window still open"}
	}

	record.Resolved = true

	if finalOutcome == reported {
		record.OutcomeChanged = false
		DisputesResolvedTotal.WithLabelValues("upheld").Inc()

		r.logger.Info("dispute-resolved",
			zap.String("market-id", marketID),
			zap.Bool("outcome-changed", false))

		r.publish(events.Event{
			Type:         events.TypeDisputeResolved,
			MarketID:     marketID,
			Actor:        caller,
			OutcomeIndex: finalOutcome,
		})
		return nil
	}

	// Overturned: the entire bond leaves the creator's control.
	record.OutcomeChanged = true
	record.Forfeited.Set(record.Locked)
	record.Remaining.Set(record.Locked)
	record.Locked.SetInt64(0)
	subCollateralGauge(record.Forfeited)
	addForfeitedGauge(record.Forfeited)

	creator := m.Creator()
	profile := r.profileLocked(creator)
	profile.Reputation -= reputationSlashPenalty
	if profile.Reputation < -r.policy.MaxReputationScale {
		profile.Reputation = -r.policy.MaxReputationScale
	}

	if err := m.MarkOverturned(); err != nil {
		return fmt.Errorf("mark overturned: %w", err)
	}

	DisputesResolvedTotal.WithLabelValues("overturned").Inc()

	r.logger.Info("dispute-resolved",
		zap.String("market-id", marketID),
		zap.Bool("outcome-changed", true),
		zap.String("forfeited", record.Forfeited.String()),
		zap.Int64("creator-reputation", profile.Reputation))

	r.publish(events.Event{
		Type:           events.TypeDisputeResolved,
		MarketID:       marketID,
		Actor:          caller,
		OutcomeIndex:   finalOutcome,
		OutcomeChanged: true,
	})
	r.publish(events.Event{
		Type:     events.TypeCollateralForfeited,
		MarketID: marketID,
		Actor:    creator,
		Amount:   new(big.Int).Set(record.Forfeited),
	})

	return nil
}

// ClaimCollateral returns the creator's bond after the dispute deadline on a
// market whose report was not overturned, and settles the market: Closed when
// the reported outcome had a backer, Cancelled otherwise.
func (r *Registry) ClaimCollateral(ctx context.Context, caller common.Address, marketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, record, err := r.lookupLocked(marketID)
	if err != nil {
		return err
	}
	if caller != m.Creator() {
		return &types.AuthorizationError{Operation: "claim collateral", Caller: caller}
	}

	deadline, ok := m.DisputeDeadline()
	if !ok {
		return &types.PhaseError{Operation: "claim collateral", Reason: "no outcome reported"}
	}
	if !r.clk.Now().After(deadline) {
		return &types.PhaseError{Operation: "claim collateral", Reason: "dispute window still open"}
	}
	if record.OutcomeChanged || record.Forfeited.Sign() > 0 {
		return &types.PhaseError{Operation: "claim collateral", Reason: "bond was forfeited"}
	}
	if record.Locked.Sign() == 0 {
		return &types.PhaseError{Operation: "claim collateral", Reason: "already claimed"}
	}

	// Zero the bookkeeping before the outgoing transfer so a reentrant call
	// can never observe a claimable balance twice. Claiming past the deadline
	// is an implicit uphold, so the record is resolved here as well.
	amount := new(big.Int).Set(record.Locked)
	wasResolved := record.Resolved
	record.Locked.SetInt64(0)
	record.Resolved = true

	if err := r.ledger.TransferOut(ctx, caller, amount); err != nil {
		record.Locked.Set(amount)
		record.Resolved = wasResolved
		return fmt.Errorf("release collateral: %w", err)
	}
	subCollateralGauge(amount)

	phase, err := m.Settle()
	if err != nil {
		return fmt.Errorf("settle market: %w", err)
	}

	CollateralClaimsTotal.Inc()

	r.logger.Info("collateral-claimed",
		zap.String("market-id", marketID),
		zap.String("amount", amount.String()),
		zap.String("phase", phase.String()))

	r.publish(events.Event{
		Type:     events.TypeCollateralClaimed,
		MarketID: marketID,
		Actor:    caller,
		Amount:   amount,
	})

	return nil
}

// ClaimForfeitedShare pays a disputer their pro-rata share of a forfeited
// bond: forfeited * contribution / totalDisputeStake, truncated. Each
// disputer claims exactly once; integer-division dust stays in the record for
// the grace-period sweep.
func (r *Registry) ClaimForfeitedShare(ctx context.Context, caller common.Address, marketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, record, err := r.lookupLocked(marketID)
	if err != nil {
		return err
	}
	if !record.Resolved || !record.OutcomeChanged {
		return &types.PhaseError{Operation: "claim forfeited share", Reason: "report was not overturned"}
	}
	if record.Swept {
		return &types.PhaseError{Operation: "claim forfeited share", Reason: "unclaimed funds already swept"}
	}
	if record.Claimed[caller] {
		return &types.PhaseError{Operation: "claim forfeited share", Reason: "already claimed"}
	}

	contribution := m.DisputeContribution(caller)
	if contribution.Sign() == 0 {
		return &types.AuthorizationError{Operation: "claim forfeited share", Caller: caller}
	}

	total := m.TotalDisputeStake()
	payout := new(big.Int).Mul(record.Forfeited, contribution)
	payout.Quo(payout, total)

	// Mark claimed before paying out: the claimed set is the double-claim
	// defense and must be committed ahead of the external transfer.
	record.Claimed[caller] = true
	remaining := new(big.Int).Set(record.Remaining)
	record.Remaining.Sub(record.Remaining, payout)

	if payout.Sign() > 0 {
		if err := r.ledger.TransferOut(ctx, caller, payout); err != nil {
			delete(record.Claimed, caller)
			record.Remaining.Set(remaining)
			return fmt.Errorf("pay forfeited share: %w", err)
		}
		subForfeitedGauge(payout)
	}

	ForfeitureClaimsTotal.Inc()

	r.logger.Info("forfeited-share-claimed",
		zap.String("market-id", marketID),
		zap.String("claimant", caller.Hex()),
		zap.String("contribution", contribution.String()),
		zap.String("payout", payout.String()))

	r.publish(events.Event{
		Type:     events.TypeForfeitedShareClaimed,
		MarketID: marketID,
		Actor:    caller,
		Amount:   payout,
	})

	return nil
}

// CollectUnclaimedCollateral sweeps whatever forfeited funds disputers never
// claimed to the protocol fee recipient. Owner only, and only once the
// dispute deadline is a full grace period in the past.
func (r *Registry) CollectUnclaimedCollateral(ctx context.Context, caller common.Address, marketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auth.IsOwner(caller) {
		return &types.AuthorizationError{Operation: "collect unclaimed collateral", Caller: caller}
	}

	m, record, err := r.lookupLocked(marketID)
	if err != nil {
		return err
	}
	if record.Swept {
		return &types.PhaseError{Operation: "collect unclaimed collateral", Reason: "already swept"}
	}

	deadline, ok := m.DisputeDeadline()
	if !ok {
		return &types.PhaseError{Operation: "collect unclaimed collateral", Reason: "no outcome reported"}
	}
	if !r.clk.Now().After(deadline.Add(r.unclaimedGracePeriod)) {
		return &types.PhaseError{Operation: "collect unclaimed collateral", Reason: "grace period not reached"}
	}
	if record.Remaining.Sign() == 0 {
		return &types.PhaseError{Operation: "collect unclaimed collateral", Reason: "nothing to collect"}
	}

	amount := new(big.Int).Set(record.Remaining)
	record.Remaining.SetInt64(0)
	record.Swept = true

	if err := r.ledger.TransferOut(ctx, r.policy.ProtocolFeeRecipient, amount); err != nil {
		record.Remaining.Set(amount)
		record.Swept = false
		return fmt.Errorf("sweep unclaimed collateral: %w", err)
	}
	subForfeitedGauge(amount)

	SweepsTotal.Inc()

	r.logger.Info("unclaimed-collateral-swept",
		zap.String("market-id", marketID),
		zap.String("amount", amount.String()),
		zap.String("recipient", r.policy.ProtocolFeeRecipient.Hex()))

	r.publish(events.Event{
		Type:     events.TypeUnclaimedCollateralSwept,
		MarketID: marketID,
		Actor:    caller,
		Amount:   amount,
	})

	return nil
}
