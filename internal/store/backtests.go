package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/errs"
)

// BacktestTrade is one simulated trade within a backtest run. Trades
// from the same run share a BacktestID.
type BacktestTrade struct {
	ID            int64
	BacktestID    uuid.UUID
	SignalID      int64
	EntryDate     time.Time
	ExitDate      time.Time
	EntryPrice    decimal.Decimal
	ExitPrice     decimal.Decimal
	Shares        int64
	PnL           decimal.Decimal
	PnLPct        decimal.Decimal
	TradeResult   string
	DaysHeld      int
	ExitReason    string
	PositionType  string
	AllocationPct decimal.Decimal
}

// SaveTrades persists a run's trades in their rank order
func (s *Store) SaveTrades(ctx context.Context, trades []BacktestTrade) error {
	for i := range trades {
		t := &trades[i]
		err := s.pool.QueryRow(ctx, `
			INSERT INTO backtest_results (
				backtest_id, signal_id, entry_date, exit_date, entry_price,
				exit_price, shares, pnl, pnl_pct, trade_result, days_held,
				exit_reason, position_type, allocation_pct
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id`,
			t.BacktestID.String(),
			t.SignalID,
			t.EntryDate,
			t.ExitDate,
			t.EntryPrice.String(),
			t.ExitPrice.String(),
			t.Shares,
			t.PnL.String(),
			t.PnLPct.String(),
			t.TradeResult,
			t.DaysHeld,
			t.ExitReason,
			t.PositionType,
			t.AllocationPct.String(),
		).Scan(&t.ID)
		if err != nil {
			return errs.E(errs.KindFatal, "store.save_trades",
				fmt.Errorf("trade for signal %d: %w", t.SignalID, err))
		}
	}
	s.log.Debug().Int("trades", len(trades)).Msg("Backtest trades saved")
	return nil
}

// ListTradesByRun loads a run's trades in insertion (rank) order
func (s *Store) ListTradesByRun(ctx context.Context, backtestID uuid.UUID) ([]BacktestTrade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, backtest_id, signal_id, entry_date, exit_date,
			entry_price::text, exit_price::text, shares, pnl::text, pnl_pct::text,
			trade_result, days_held, exit_reason, position_type, allocation_pct::text
		FROM backtest_results WHERE backtest_id = $1 ORDER BY id`,
		backtestID.String())
	if err != nil {
		return nil, errs.E(errs.KindFatal, "store.list_trades", err)
	}
	defer rows.Close()

	var trades []BacktestTrade
	for rows.Next() {
		var (
			t                                    BacktestTrade
			runID                                string
			entry, exit, pnl, pnlPct, allocation string
		)
		if err := rows.Scan(&t.ID, &runID, &t.SignalID, &t.EntryDate, &t.ExitDate,
			&entry, &exit, &t.Shares, &pnl, &pnlPct,
			&t.TradeResult, &t.DaysHeld, &t.ExitReason, &t.PositionType, &allocation); err != nil {
			return nil, errs.E(errs.KindFatal, "store.list_trades", err)
		}

		if t.BacktestID, err = uuid.Parse(runID); err != nil {
			return nil, errs.E(errs.KindFatal, "store.list_trades", fmt.Errorf("bad run id %q: %w", runID, err))
		}
		if err := parseTradeNumerics(&t, entry, exit, pnl, pnlPct, allocation); err != nil {
			return nil, errs.E(errs.KindFatal, "store.list_trades", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(errs.KindFatal, "store.list_trades", err)
	}
	return trades, nil
}

func parseTradeNumerics(t *BacktestTrade, entry, exit, pnl, pnlPct, allocation string) error {
	var err error
	if t.EntryPrice, err = decimal.NewFromString(entry); err != nil {
		return fmt.Errorf("bad entry_price %q: %w", entry, err)
	}
	if t.ExitPrice, err = decimal.NewFromString(exit); err != nil {
		return fmt.Errorf("bad exit_price %q: %w", exit, err)
	}
	if t.PnL, err = decimal.NewFromString(pnl); err != nil {
		return fmt.Errorf("bad pnl %q: %w", pnl, err)
	}
	if t.PnLPct, err = decimal.NewFromString(pnlPct); err != nil {
		return fmt.Errorf("bad pnl_pct %q: %w", pnlPct, err)
	}
	if t.AllocationPct, err = decimal.NewFromString(allocation); err != nil {
		return fmt.Errorf("bad allocation_pct %q: %w", allocation, err)
	}
	return nil
}
