package backtest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphamachine/engine/internal/errs"
	"github.com/alphamachine/engine/internal/store"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func buySignal(id int64, ticker string, confidence float64, entry, target, stop string) store.Signal {
	return store.Signal{
		ID:          id,
		Ticker:      ticker,
		SignalType:  "BUY",
		Confidence:  confidence,
		EntryPrice:  decPtr(entry),
		TargetPrice: decPtr(target),
		StopLoss:    decPtr(stop),
	}
}

func fiveRanked() []RankedSignal {
	return rankSignals([]store.Signal{
		buySignal(1, "NVDA", 0.9, "100", "125", "90"),
		buySignal(2, "MSFT", 0.8, "100", "125", "90"),
		buySignal(3, "AAPL", 0.7, "100", "125", "90"),
		buySignal(4, "AMD", 0.6, "100", "125", "90"),
		buySignal(5, "GOOG", 0.5, "100", "125", "90"),
	})
}

func TestAllocatePlansSumToCapital(t *testing.T) {
	capital := decimal.NewFromInt(100000)
	cases := []struct {
		mode     string
		invested string
		cash     string
		slots    int
	}{
		{ModeCoreFocus, "90000", "10000", 4},
		{ModeBalanced, "90000", "10000", 5},
		{ModeDiversified, "80000", "20000", 5},
	}

	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			positions, cash, err := allocate(fiveRanked(), tc.mode, capital)
			require.NoError(t, err)
			require.Len(t, positions, tc.slots)

			invested := decimal.Zero
			for _, p := range positions {
				invested = invested.Add(p.AllocationDollars)
			}
			assert.True(t, invested.Equal(decimal.RequireFromString(tc.invested)),
				"invested %s", invested)
			assert.True(t, cash.Equal(decimal.RequireFromString(tc.cash)), "cash %s", cash)
			assert.True(t, invested.Add(cash).Equal(capital))
		})
	}
}

func TestAllocateCoreFocusShares(t *testing.T) {
	positions, cash, err := allocate(fiveRanked(), ModeCoreFocus, decimal.NewFromInt(100000))
	require.NoError(t, err)
	require.Len(t, positions, 4)

	assert.Equal(t, "NVDA", positions[0].Ranked.Signal.Ticker)
	assert.Equal(t, "CORE", positions[0].PositionType)
	assert.Equal(t, int64(600), positions[0].Shares)
	for _, p := range positions[1:] {
		assert.Equal(t, "SATELLITE", p.PositionType)
		assert.Equal(t, int64(100), p.Shares)
	}
	assert.True(t, cash.Equal(decimal.NewFromInt(10000)))
}

func TestAllocateFewerSignalsThanSlots(t *testing.T) {
	ranked := fiveRanked()[:2]
	positions, cash, err := allocate(ranked, ModeCoreFocus, decimal.NewFromInt(100000))
	require.NoError(t, err)
	assert.Len(t, positions, 2)
	// Unfilled satellite slots stay in cash.
	assert.True(t, cash.Equal(decimal.NewFromInt(30000)), "cash %s", cash)
}

func TestAllocateUnknownMode(t *testing.T) {
	_, _, err := allocate(fiveRanked(), "YOLO", decimal.NewFromInt(100000))
	require.Error(t, err)
	assert.True(t, errs.IsBadInput(err))
}

func TestAllocateSkipsUnaffordableEntry(t *testing.T) {
	ranked := rankSignals([]store.Signal{
		buySignal(1, "NVDA", 0.9, "100", "125", "90"),
		buySignal(2, "BRK", 0.8, "700000", "875000", "630000"),
	})
	positions, _, err := allocate(ranked, ModeCoreFocus, decimal.NewFromInt(10000))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "NVDA", positions[0].Ranked.Signal.Ticker)
}

func TestRankSignalsOrdersByComposite(t *testing.T) {
	ranked := rankSignals([]store.Signal{
		buySignal(1, "MSFT", 0.5, "100", "125", "90"),
		buySignal(2, "NVDA", 0.9, "100", "125", "90"),
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "NVDA", ranked[0].Signal.Ticker)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.InDelta(t, 0.25, ranked[0].ExpectedReturn, 1e-9)
	assert.InDelta(t, 0.10, ranked[0].RiskFactor, 1e-9)
	assert.InDelta(t, 0.9*0.25/0.10, ranked[0].Composite, 1e-9)
}

func TestRankSignalsDefaultsWithoutLevels(t *testing.T) {
	sig := store.Signal{ID: 7, Ticker: "NVDA", SignalType: "BUY", Confidence: 0.6,
		EntryPrice: decPtr("100")}
	ranked := rankSignals([]store.Signal{sig})
	require.Len(t, ranked, 1)
	assert.InDelta(t, defaultExpectedReturn, ranked[0].ExpectedReturn, 1e-9)
	assert.InDelta(t, defaultRiskFactor, ranked[0].RiskFactor, 1e-9)
	assert.InDelta(t, 0.6, ranked[0].Composite, 1e-9)
}

func TestRankSignalsTieBreaksOnID(t *testing.T) {
	a := buySignal(9, "MSFT", 0.7, "100", "125", "90")
	b := buySignal(3, "NVDA", 0.7, "100", "125", "90")
	ranked := rankSignals([]store.Signal{a, b})
	assert.Equal(t, int64(3), ranked[0].Signal.ID)
	assert.Equal(t, int64(9), ranked[1].Signal.ID)
}
