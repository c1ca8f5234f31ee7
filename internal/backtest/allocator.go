package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/errs"
)

// slot is one allocation bucket of a mode's capital plan
type slot struct {
	pct          float64
	positionType string
}

// Allocation plans per mode. Slots are filled in rank order; the
// remainder of the capital stays in cash.
var modePlans = map[string][]slot{
	ModeCoreFocus: {
		{0.60, "CORE"},
		{0.10, "SATELLITE"},
		{0.10, "SATELLITE"},
		{0.10, "SATELLITE"},
	},
	ModeBalanced: {
		{0.40, "CORE"},
		{0.125, "SATELLITE"},
		{0.125, "SATELLITE"},
		{0.125, "SATELLITE"},
		{0.125, "SATELLITE"},
	},
	ModeDiversified: {
		{0.16, "EQUAL"},
		{0.16, "EQUAL"},
		{0.16, "EQUAL"},
		{0.16, "EQUAL"},
		{0.16, "EQUAL"},
	},
}

// allocate assigns capital to the top-ranked signals per the mode's
// plan. Unfilled slots fall back to cash, so a run with fewer signals
// than slots simply holds more cash. Positions whose entry price
// exceeds their allocation get zero shares and are dropped.
func allocate(ranked []RankedSignal, mode string, capital decimal.Decimal) ([]Position, decimal.Decimal, error) {
	plan, ok := modePlans[mode]
	if !ok {
		return nil, decimal.Zero, errs.BadInputf("backtest.allocate", "unknown allocation mode %q", mode)
	}

	var positions []Position
	invested := decimal.Zero
	for i, s := range plan {
		if i >= len(ranked) {
			break
		}
		sig := ranked[i].Signal
		if sig.EntryPrice == nil || !sig.EntryPrice.IsPositive() {
			continue
		}

		pct := decimal.NewFromFloat(s.pct)
		dollars := capital.Mul(pct)
		shares := dollars.Div(*sig.EntryPrice).IntPart()
		if shares <= 0 {
			continue
		}

		positions = append(positions, Position{
			Ranked:            ranked[i],
			PositionType:      s.positionType,
			AllocationPct:     pct,
			AllocationDollars: dollars,
			Shares:            shares,
		})
		invested = invested.Add(dollars)
	}

	return positions, capital.Sub(invested), nil
}
