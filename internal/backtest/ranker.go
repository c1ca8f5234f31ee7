package backtest

import (
	"sort"

	"github.com/alphamachine/engine/internal/store"
)

// Fallbacks for signals persisted without a target or stop.
const (
	defaultExpectedReturn = 0.10
	defaultRiskFactor     = 0.10
)

// rankSignals orders BUY signals by composite quality, best first.
// Composite rewards confidence and upside and penalizes wide stops:
//
//	composite = confidence * expected_return / risk_factor
//
// Ties break on signal ID so a rerun over the same rows produces the
// same order.
func rankSignals(signals []store.Signal) []RankedSignal {
	ranked := make([]RankedSignal, 0, len(signals))
	for _, sig := range signals {
		expected := defaultExpectedReturn
		risk := defaultRiskFactor

		if sig.EntryPrice != nil && sig.EntryPrice.IsPositive() {
			entry, _ := sig.EntryPrice.Float64()
			if sig.TargetPrice != nil && sig.TargetPrice.IsPositive() {
				target, _ := sig.TargetPrice.Float64()
				if r := (target - entry) / entry; r > 0 {
					expected = r
				}
			}
			if sig.StopLoss != nil && sig.StopLoss.IsPositive() {
				stop, _ := sig.StopLoss.Float64()
				if r := (entry - stop) / entry; r > 0 {
					risk = r
				}
			}
		}

		ranked = append(ranked, RankedSignal{
			Signal:         sig,
			ExpectedReturn: expected,
			RiskFactor:     risk,
			Composite:      sig.Confidence * expected / risk,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		return ranked[i].Signal.ID < ranked[j].Signal.ID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
