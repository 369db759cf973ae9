package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ValidationError indicates malformed input: zero or negative amounts, an
// outcome set that is too small, end-before-start windows, unknown outcome
// indexes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError indicates the caller lacks the identity required for the
// attempted operation (not the creator, not the owner, not an admin).
type AuthorizationError struct {
	Operation string
	Caller    common.Address
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: caller %s not authorized", e.Operation, e.Caller.Hex())
}

// PhaseError indicates an operation attempted outside its valid phase or time
// window: betting closed, dispute window not open or already passed, already
// reported, already resolved, already claimed, grace period not reached.
type PhaseError struct {
	Operation string
	Reason    string
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

// InsufficientFundsError reports a ledger shortfall. Resource is either
// "balance" or "allowance" so callers can distinguish the two failure modes.
type InsufficientFundsError struct {
	Resource string
	Need     *big.Int
	Have     *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s: need %s, have %s", e.Resource, e.Need, e.Have)
}

// PolicyError indicates a registry policy rejection: creator reputation below
// the creation threshold, or collateral below the configured minimum.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return "policy: " + e.Reason
}
