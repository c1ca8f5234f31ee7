package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/market"
	"github.com/alphamachine/engine/internal/store"
)

// Trade exit reasons
const (
	ExitStopLoss      = "STOP_LOSS"
	ExitTakeProfit    = "TAKE_PROFIT"
	ExitHoldPeriodEnd = "HOLD_PERIOD_END"
)

// Trade results
const (
	ResultWin  = "WIN"
	ResultLoss = "LOSS"
)

var oneHundred = decimal.NewFromInt(100)

// PriceSource supplies the daily bars a simulation walks through
type PriceSource interface {
	BarsAfter(ctx context.Context, ticker string, after time.Time, limit int) ([]market.Bar, error)
}

// simulate walks one position forward bar by bar from the signal date.
// The stop is checked before the target inside each bar: when a day's
// range spans both levels the pessimistic fill wins. A position that
// survives the hold period exits at the final close. Returns nil when
// no price data exists after the signal date.
func simulate(ctx context.Context, prices PriceSource, runID uuid.UUID, pos Position, holdDays int) (*store.BacktestTrade, error) {
	sig := pos.Ranked.Signal
	bars, err := prices.BarsAfter(ctx, sig.Ticker, sig.Timestamp, holdDays)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}

	entry := *sig.EntryPrice
	exitPrice := bars[len(bars)-1].Close
	exitDate := bars[len(bars)-1].Date
	exitReason := ExitHoldPeriodEnd
	daysHeld := len(bars)

	for i, bar := range bars {
		if sig.StopLoss != nil && bar.Low.LessThanOrEqual(*sig.StopLoss) {
			exitPrice = *sig.StopLoss
			exitDate = bar.Date
			exitReason = ExitStopLoss
			daysHeld = i + 1
			break
		}
		if sig.TargetPrice != nil && bar.High.GreaterThanOrEqual(*sig.TargetPrice) {
			exitPrice = *sig.TargetPrice
			exitDate = bar.Date
			exitReason = ExitTakeProfit
			daysHeld = i + 1
			break
		}
	}

	shares := decimal.NewFromInt(pos.Shares)
	pnl := exitPrice.Sub(entry).Mul(shares).Round(2)
	pnlPct := exitPrice.Sub(entry).Div(entry).Mul(oneHundred).Round(3)

	result := ResultLoss
	if pnl.IsPositive() {
		result = ResultWin
	}

	return &store.BacktestTrade{
		BacktestID:    runID,
		SignalID:      sig.ID,
		EntryDate:     sig.Timestamp,
		ExitDate:      exitDate,
		EntryPrice:    entry,
		ExitPrice:     exitPrice,
		Shares:        pos.Shares,
		PnL:           pnl,
		PnLPct:        pnlPct,
		TradeResult:   result,
		DaysHeld:      daysHeld,
		ExitReason:    exitReason,
		PositionType:  pos.PositionType,
		AllocationPct: pos.AllocationPct,
	}, nil
}
