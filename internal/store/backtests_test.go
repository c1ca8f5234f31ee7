package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveTradesAssignsIDs(t *testing.T) {
	mock, s := mockStore(t)
	runID := uuid.New()

	entryDate := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO backtest_results").
		WithArgs(runID.String(), int64(42), entryDate, entryDate.AddDate(0, 0, 5),
			"150", "187.5", int64(23), "862.5", "0.25", "WIN", 5,
			"TAKE_PROFIT", "CORE", "0.6").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO backtest_results").
		WithArgs(runID.String(), int64(43), entryDate, entryDate.AddDate(0, 0, 2),
			"80", "72", int64(10), "-80", "-0.1", "LOSS", 2,
			"STOP_LOSS", "SATELLITE", "0.1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))

	trades := []BacktestTrade{
		{
			BacktestID: runID, SignalID: 42,
			EntryDate: entryDate, ExitDate: entryDate.AddDate(0, 0, 5),
			EntryPrice: decimal.RequireFromString("150.00"),
			ExitPrice:  decimal.RequireFromString("187.50"),
			Shares:     23, PnL: decimal.RequireFromString("862.50"),
			PnLPct: decimal.RequireFromString("0.25"), TradeResult: "WIN",
			DaysHeld: 5, ExitReason: "TAKE_PROFIT",
			PositionType: "CORE", AllocationPct: decimal.RequireFromString("0.6"),
		},
		{
			BacktestID: runID, SignalID: 43,
			EntryDate: entryDate, ExitDate: entryDate.AddDate(0, 0, 2),
			EntryPrice: decimal.RequireFromString("80.00"),
			ExitPrice:  decimal.RequireFromString("72.00"),
			Shares:     10, PnL: decimal.RequireFromString("-80.00"),
			PnLPct: decimal.RequireFromString("-0.1"), TradeResult: "LOSS",
			DaysHeld: 2, ExitReason: "STOP_LOSS",
			PositionType: "SATELLITE", AllocationPct: decimal.RequireFromString("0.1"),
		},
	}
	require.NoError(t, s.SaveTrades(context.Background(), trades))

	assert.Equal(t, int64(1), trades[0].ID)
	assert.Equal(t, int64(2), trades[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTradesByRunParsesNumerics(t *testing.T) {
	mock, s := mockStore(t)
	runID := uuid.New()
	entryDate := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM backtest_results WHERE backtest_id").
		WithArgs(runID.String()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "backtest_id", "signal_id", "entry_date", "exit_date",
			"entry_price", "exit_price", "shares", "pnl", "pnl_pct",
			"trade_result", "days_held", "exit_reason", "position_type", "allocation_pct",
		}).AddRow(int64(1), runID.String(), int64(42), entryDate, entryDate.AddDate(0, 0, 5),
			"150.00", "187.50", int64(23), "862.50", "0.250",
			"WIN", 5, "TAKE_PROFIT", "CORE", "0.600"))

	trades, err := s.ListTradesByRun(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	assert.Equal(t, runID, trades[0].BacktestID)
	assert.True(t, trades[0].PnL.Equal(decimal.RequireFromString("862.5")))
	assert.Equal(t, "TAKE_PROFIT", trades[0].ExitReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveTickersOrdered(t *testing.T) {
	mock, s := mockStore(t)

	mock.ExpectQuery("SELECT ticker FROM watchlist WHERE active").
		WillReturnRows(pgxmock.NewRows([]string{"ticker"}).
			AddRow("NVDA").AddRow("MSFT").AddRow("PLTR"))

	tickers, err := s.ActiveTickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "MSFT", "PLTR"}, tickers)
}

func TestDeactivateUnknownTicker(t *testing.T) {
	mock, s := mockStore(t)

	mock.ExpectExec("UPDATE watchlist SET active").
		WithArgs("ZZZZ").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.DeactivateTicker(context.Background(), "zzzz")
	require.Error(t, err)
}
