package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/veristake/bondmarket/pkg/types"
)

// Governance operations: owner-only pure state writes with no economic side
// effect beyond changing future computations. Each policy write bumps the
// policy version.

// IncreaseCreatorsReputation raises a creator's reputation by amount, capped
// at the policy's reputation scale.
func (r *Registry) IncreaseCreatorsReputation(caller, creator common.Address, amount int64) error {
	if amount <= 0 {
		return &types.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return r.adjustReputation(caller, creator, amount)
}

// DecreaseCreatorsReputation lowers a creator's reputation by amount, floored
// at the negative reputation scale.
func (r *Registry) DecreaseCreatorsReputation(caller, creator common.Address, amount int64) error {
	if amount <= 0 {
		return &types.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return r.adjustReputation(caller, creator, -amount)
}

func (r *Registry) adjustReputation(caller, creator common.Address, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auth.IsOwner(caller) {
		return &types.AuthorizationError{Operation: "adjust reputation", Caller: caller}
	}

	profile := r.profileLocked(creator)
	profile.Reputation += delta
	if profile.Reputation > r.policy.MaxReputationScale {
		profile.Reputation = r.policy.MaxReputationScale
	}
	if profile.Reputation < -r.policy.MaxReputationScale {
		profile.Reputation = -r.policy.MaxReputationScale
	}

	r.logger.Info("creator-reputation-adjusted",
		zap.String("creator", creator.Hex()),
		zap.Int64("delta", delta),
		zap.Int64("reputation", profile.Reputation))

	return nil
}

// IncreaseCreatorsTrustMultiplier raises a creator's trust multiplier.
func (r *Registry) IncreaseCreatorsTrustMultiplier(caller, creator common.Address, amount int64) error {
	if amount <= 0 {
		return &types.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return r.adjustTrust(caller, creator, amount)
}

// DecreaseCreatorsTrustMultiplier lowers a creator's trust multiplier. A
// negative multiplier flips the bet-limit formula from scaling the limit up
// to dividing the collateral down.
func (r *Registry) DecreaseCreatorsTrustMultiplier(caller, creator common.Address, amount int64) error {
	if amount <= 0 {
		return &types.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return r.adjustTrust(caller, creator, -amount)
}

func (r *Registry) adjustTrust(caller, creator common.Address, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auth.IsOwner(caller) {
		return &types.AuthorizationError{Operation: "adjust trust multiplier", Caller: caller}
	}

	profile := r.profileLocked(creator)
	profile.TrustMultiplier += delta

	r.logger.Info("creator-trust-adjusted",
		zap.String("creator", creator.Hex()),
		zap.Int64("delta", delta),
		zap.Int64("trust-multiplier", profile.TrustMultiplier))

	return nil
}

// SetMaxCollateral replaces the policy's maximum collateral.
func (r *Registry) SetMaxCollateral(caller common.Address, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auth.IsOwner(caller) {
		return &types.AuthorizationError{Operation: "set max collateral", Caller: caller}
	}
	if amount == nil || amount.Sign() <= 0 {
		return &types.ValidationError{Field: "max collateral", Reason: "must be positive"}
	}

	r.policy.MaxCollateral = new(big.Int).Set(amount)
	r.policy.Version++

	r.logger.Info("max-collateral-set",
		zap.String("max-collateral", amount.String()),
		zap.Int64("policy-version", r.policy.Version))

	return nil
}

// SetBettingMultiplier replaces the policy's betting multiplier.
func (r *Registry) SetBettingMultiplier(caller common.Address, multiplier int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auth.IsOwner(caller) {
		return &types.AuthorizationError{Operation: "set betting multiplier", Caller: caller}
	}
	if multiplier <= 0 {
		return &types.ValidationError{Field: "betting multiplier", Reason: "must be positive"}
	}

	r.policy.BettingMultiplier = multiplier
	r.policy.Version++

	r.logger.Info("betting-multiplier-set",
		zap.Int64("betting-multiplier", multiplier),
		zap.Int64("policy-version", r.policy.Version))

	return nil
}

// ChangeReputationThreshold replaces the minimum reputation required to
// create markets.
func (r *Registry) ChangeReputationThreshold(caller common.Address, threshold int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auth.IsOwner(caller) {
		return &types.AuthorizationError{Operation: "change reputation threshold", Caller: caller}
	}

	r.policy.ReputationThreshold = threshold
	r.policy.Version++

	r.logger.Info("reputation-threshold-changed",
		zap.Int64("threshold", threshold),
		zap.Int64("policy-version", r.policy.Version))

	return nil
}

// SetProtocolFeeRecipient replaces the destination of grace-period sweeps.
func (r *Registry) SetProtocolFeeRecipient(caller, recipient common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auth.IsOwner(caller) {
		return &types.AuthorizationError{Operation: "set protocol fee recipient", Caller: caller}
	}
	if recipient == (common.Address{}) {
		return &types.ValidationError{Field: "recipient", Reason: "must not be the zero address"}
	}

	r.policy.ProtocolFeeRecipient = recipient
	r.policy.Version++

	r.logger.Info("protocol-fee-recipient-set",
		zap.String("recipient", recipient.Hex()),
		zap.Int64("policy-version", r.policy.Version))

	return nil
}

// TransferGovernance hands registry governance to a new owner. Delegates to
// the authorization policy, which enforces that only the current owner may
// transfer.
func (r *Registry) TransferGovernance(caller, newOwner common.Address) error {
	return r.auth.TransferOwnership(caller, newOwner)
}
