package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Type identifies an observable engine event.
type Type string

const (
	TypeMarketCreated             Type = "market_created"
	TypeOutcomeSubmitted          Type = "outcome_submitted"
	TypeDisputeContributed        Type = "dispute_contributed"
	TypeDisputeResolved           Type = "dispute_resolved"
	TypeCollateralClaimed         Type = "collateral_claimed"
	TypeCollateralForfeited       Type = "collateral_forfeited"
	TypeForfeitedShareClaimed     Type = "forfeited_share_claimed"
	TypeUnclaimedCollateralSwept  Type = "unclaimed_collateral_swept"
)

// Event is one observable occurrence in the market engine, flattened so every
// event kind fits the same record. Fields that do not apply to a kind are
// left at their zero value (Amount nil, OutcomeIndex -1).
type Event struct {
	ID             string
	Type           Type
	MarketID       string
	Actor          common.Address
	Amount         *big.Int
	OutcomeIndex   int
	OutcomeChanged bool
	Reason         string
	At             time.Time
}

// AmountString renders the amount for persistence and wire encoding.
// Returns "0" when the event carries no amount.
func (e Event) AmountString() string {
	if e.Amount == nil {
		return "0"
	}
	return e.Amount.String()
}
