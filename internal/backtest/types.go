// Package backtest replays historical signals against stored price data
// to measure how the consensus pipeline would have performed.
package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/store"
)

// Allocation modes supported by the portfolio allocator
const (
	ModeCoreFocus   = "CORE_FOCUS"
	ModeBalanced    = "BALANCED"
	ModeDiversified = "DIVERSIFIED"
)

// Request describes one backtest run
type Request struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Mode            string    `json:"mode"`
	StartingCapital float64   `json:"starting_capital"`
	HoldPeriodDays  int       `json:"hold_period_days"`

	// Tickers optionally restricts the run to a subset of the
	// selected signals.
	Tickers []string `json:"tickers,omitempty"`
}

// RankedSignal is a BUY signal with its composite ranking score
type RankedSignal struct {
	Signal         store.Signal `json:"signal"`
	ExpectedReturn float64      `json:"expected_return"`
	RiskFactor     float64      `json:"risk_factor"`
	Composite      float64      `json:"composite"`
	Rank           int          `json:"rank"`
}

// Position is a ranked signal with capital assigned to it
type Position struct {
	Ranked            RankedSignal    `json:"ranked"`
	PositionType      string          `json:"position_type"`
	AllocationPct     decimal.Decimal `json:"allocation_pct"`
	AllocationDollars decimal.Decimal `json:"allocation_dollars"`
	Shares            int64           `json:"shares"`
}

// AgentStats attributes run outcomes back to one agent
type AgentStats struct {
	Trades  int             `json:"trades"`
	Hits    int             `json:"hits"`
	HitRate float64         `json:"hit_rate"`
	PnL     decimal.Decimal `json:"pnl"`
}

// EquityPoint is portfolio equity after one trade exit
type EquityPoint struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

// Metrics summarizes a completed run
type Metrics struct {
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	WinRate        float64         `json:"win_rate"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	TotalReturnPct float64         `json:"total_return_pct"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
}

// Report is the full result of one backtest run
type Report struct {
	RunID           uuid.UUID             `json:"run_id"`
	Mode            string                `json:"mode"`
	Start           time.Time             `json:"start"`
	End             time.Time             `json:"end"`
	StartingCapital decimal.Decimal       `json:"starting_capital"`
	EndingCapital   decimal.Decimal       `json:"ending_capital"`
	CashReserve     decimal.Decimal       `json:"cash_reserve"`
	Positions       []Position            `json:"positions"`
	Trades          []store.BacktestTrade `json:"trades"`
	Metrics         Metrics               `json:"metrics"`
	EquityCurve     []EquityPoint         `json:"equity_curve"`
	AgentStats      map[string]AgentStats `json:"agent_stats"`
	Warnings        []string              `json:"warnings,omitempty"`
	GeneratedAt     time.Time             `json:"generated_at"`
}
