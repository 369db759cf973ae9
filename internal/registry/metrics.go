package registry

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsCreatedTotal counts markets registered.
	MarketsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_markets_created_total",
		Help: "Total markets created through the registry",
	})

	// DisputesResolvedTotal counts adjudications by result.
	DisputesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bondmarket_disputes_resolved_total",
		Help: "Total dispute resolutions, by result (upheld or overturned)",
	}, []string{"result"})

	// CollateralClaimsTotal counts creator bond reclaims.
	CollateralClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_collateral_claims_total",
		Help: "Total creator collateral reclaims after undisputed or upheld reports",
	})

	// ForfeitureClaimsTotal counts disputer pro-rata claims.
	ForfeitureClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_forfeiture_claims_total",
		Help: "Total disputer claims against forfeited bonds",
	})

	// SweepsTotal counts grace-period sweeps of unclaimed forfeitures.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bondmarket_unclaimed_sweeps_total",
		Help: "Total grace-period sweeps of unclaimed forfeited collateral",
	})

	// CollateralLockedGauge tracks the total bonded collateral across open
	// markets, in ledger base units.
	CollateralLockedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bondmarket_collateral_locked_base_units",
		Help: "Total creator collateral currently locked, in ledger base units",
	})

	// CollateralForfeitedGauge tracks forfeited collateral awaiting claims.
	CollateralForfeitedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bondmarket_collateral_forfeited_base_units",
		Help: "Forfeited collateral awaiting disputer claims or sweep, in ledger base units",
	})
)

func addCollateralGauge(amount *big.Int) {
	f, _ := new(big.Float).SetInt(amount).Float64()
	CollateralLockedGauge.Add(f)
}

func subCollateralGauge(amount *big.Int) {
	f, _ := new(big.Float).SetInt(amount).Float64()
	CollateralLockedGauge.Sub(f)
}

func addForfeitedGauge(amount *big.Int) {
	f, _ := new(big.Float).SetInt(amount).Float64()
	CollateralForfeitedGauge.Add(f)
}

func subForfeitedGauge(amount *big.Int) {
	f, _ := new(big.Float).SetInt(amount).Float64()
	CollateralForfeitedGauge.Sub(f)
}
