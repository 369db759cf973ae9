package market

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BetsPlacedTotal counts accepted bets across all markets.
	BetsPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_bets_placed_total",
		Help: "Total bets accepted across all markets",
	})

	// BetVolumeTotal accumulates accepted stake in ledger base units.
	BetVolumeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_bet_volume_base_units_total",
		Help: "Total stake accepted across all markets, in ledger base units",
	})

	// OutcomesSubmittedTotal counts creator outcome reports.
	OutcomesSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_outcomes_submitted_total",
		Help: "Total outcome reports submitted by market creators",
	})

	// DisputeContributionsTotal counts escrowed dispute contributions.
	DisputeContributionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_dispute_contributions_total",
		Help: "Total dispute contributions escrowed against reports",
	})
)
