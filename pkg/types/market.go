package types

import "time"

// Phase is the lifecycle phase of a prediction market.
type Phase int

const (
	// PhaseOpen accepts bets until the market's end time.
	PhaseOpen Phase = iota
	// PhaseReported means the creator submitted an outcome and the dispute
	// window is running.
	PhaseReported
	// PhaseDisputed means at least one bettor escrowed a dispute stake
	// against the report.
	PhaseDisputed
	// PhaseClosed is terminal: the report stood (or was overturned and the
	// bond forfeited) and collateral settlement is decided.
	PhaseClosed
	// PhaseCancelled is terminal: the market was cancelled before start, or
	// settled with no stake on the winning outcome.
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseReported:
		return "reported"
	case PhaseDisputed:
		return "disputed"
	case PhaseClosed:
		return "closed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further state-mutating operation is valid.
func (p Phase) Terminal() bool {
	return p == PhaseClosed || p == PhaseCancelled
}

// MarketSnapshot is a read-only view of a market served by the HTTP API and
// cached between requests. Amounts are decimal strings in ledger base units.
type MarketSnapshot struct {
	ID                   string     `json:"id"`
	Creator              string     `json:"creator"`
	Outcomes             []string   `json:"outcomes"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              time.Time  `json:"end_time"`
	Phase                string     `json:"phase"`
	ReportedOutcome      *int       `json:"reported_outcome,omitempty"`
	DisputeDeadline      *time.Time `json:"dispute_deadline,omitempty"`
	TotalStakedByOutcome []string   `json:"total_staked_by_outcome"`
	TotalDisputeStake    string     `json:"total_dispute_stake"`
	LockedCollateral     string     `json:"locked_collateral"`
	ForfeitedCollateral  string     `json:"forfeited_collateral"`
}
