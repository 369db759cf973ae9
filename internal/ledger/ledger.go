package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the fungible-asset collaborator the market engine settles
// against. Amounts are integers scaled by Decimals(). TransferIn pulls value
// from an external account into the engine's escrow; it requires the account
// to have pre-approved the engine for at least the pulled amount. TransferOut
// pushes value from escrow back to an external account.
//
// Implementations must report balance and allowance shortfalls as distinct
// *types.InsufficientFundsError values so callers can tell the two apart.
type Ledger interface {
	TransferIn(ctx context.Context, from common.Address, amount *big.Int) error
	TransferOut(ctx context.Context, to common.Address, amount *big.Int) error
	Decimals() uint8
}
