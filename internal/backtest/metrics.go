package backtest

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/store"
)

const tradingDaysPerYear = 252

// computeMetrics folds a run's trades into summary metrics and the
// equity curve. The curve walks exits in date order from starting
// capital; drawdown is the worst peak-to-trough drop along it.
func computeMetrics(trades []store.BacktestTrade, capital decimal.Decimal) (Metrics, []EquityPoint) {
	m := Metrics{TotalTrades: len(trades), TotalPnL: decimal.Zero}
	if len(trades) == 0 {
		return m, nil
	}

	byExit := make([]store.BacktestTrade, len(trades))
	copy(byExit, trades)
	sort.SliceStable(byExit, func(i, j int) bool {
		if !byExit[i].ExitDate.Equal(byExit[j].ExitDate) {
			return byExit[i].ExitDate.Before(byExit[j].ExitDate)
		}
		return byExit[i].SignalID < byExit[j].SignalID
	})

	equity := capital
	curve := make([]EquityPoint, 0, len(byExit))
	peak := capital
	maxDrawdown := 0.0
	var returns []float64

	for _, t := range byExit {
		m.TotalPnL = m.TotalPnL.Add(t.PnL)
		if t.TradeResult == ResultWin {
			m.WinningTrades++
		} else {
			m.LosingTrades++
		}
		pct, _ := t.PnLPct.Float64()
		returns = append(returns, pct/100)

		equity = equity.Add(t.PnL)
		curve = append(curve, EquityPoint{Date: t.ExitDate, Equity: equity})

		if equity.GreaterThan(peak) {
			peak = equity
		} else if peak.IsPositive() {
			dd, _ := peak.Sub(equity).Div(peak).Float64()
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	if capital.IsPositive() {
		ret, _ := m.TotalPnL.Div(capital).Float64()
		m.TotalReturnPct = ret * 100
	}
	m.SharpeRatio = sharpe(returns)
	m.MaxDrawdownPct = maxDrawdown * 100
	return m, curve
}

// sharpe annualizes the mean/stddev of per-trade returns. Zero when
// the returns do not vary.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

// attribution credits each non-failed agent with the trades its signal
// produced. A hit is a bullish call on a winning trade or a non-bullish
// call on a losing one.
func attribution(trades []store.BacktestTrade, signals map[int64]*store.Signal) map[string]AgentStats {
	stats := make(map[string]AgentStats)
	for _, t := range trades {
		sig, ok := signals[t.SignalID]
		if !ok {
			continue
		}
		for _, a := range sig.Analyses {
			if a.Failed {
				continue
			}
			s := stats[a.AgentName]
			s.Trades++
			s.PnL = s.PnL.Add(t.PnL)
			won := t.TradeResult == ResultWin
			if (a.Recommendation == "BUY") == won {
				s.Hits++
			}
			stats[a.AgentName] = s
		}
	}
	for name, s := range stats {
		if s.Trades > 0 {
			s.HitRate = float64(s.Hits) / float64(s.Trades)
		}
		stats[name] = s
	}
	return stats
}
