package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphamachine/engine/internal/market"
)

func TestSaveBarsIgnoresDuplicates(t *testing.T) {
	mock, s := mockStore(t)
	date := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO market_data").
		WithArgs("NVDA", date, "148", "152.5", "147", "150", int64(1000), "polygon").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO market_data").
		WithArgs("NVDA", date.AddDate(0, 0, 1), "150", "151", "149", "150.5", int64(900), "polygon").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	bars := []market.Bar{
		{Date: date, Open: decimal.RequireFromString("148"), High: decimal.RequireFromString("152.5"),
			Low: decimal.RequireFromString("147"), Close: decimal.RequireFromString("150"), Volume: 1000},
		{Date: date.AddDate(0, 0, 1), Open: decimal.RequireFromString("150"), High: decimal.RequireFromString("151"),
			Low: decimal.RequireFromString("149"), Close: decimal.RequireFromString("150.5"), Volume: 900},
	}
	require.NoError(t, s.SaveBars(context.Background(), "NVDA", "polygon", bars))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBarsAfterParsesNumerics(t *testing.T) {
	mock, s := mockStore(t)
	after := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT DISTINCT ON \\(timestamp\\)").
		WithArgs("NVDA", after, 30).
		WillReturnRows(pgxmock.NewRows([]string{
			"timestamp", "open", "high", "low", "close", "volume",
		}).
			AddRow(after.AddDate(0, 0, 1), "150.00", "152.50", "147.00", "151.00", int64(1000)).
			AddRow(after.AddDate(0, 0, 2), "151.00", "155.00", "150.00", "154.25", int64(1200)))

	bars, err := s.BarsAfter(context.Background(), "NVDA", after, 30)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.True(t, bars[0].High.Equal(decimal.RequireFromString("152.5")))
	assert.True(t, bars[1].Close.Equal(decimal.RequireFromString("154.25")))
	assert.Equal(t, int64(1200), bars[1].Volume)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBarsAfterEmpty(t *testing.T) {
	mock, s := mockStore(t)
	after := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT DISTINCT ON \\(timestamp\\)").
		WithArgs("ZZZZ", after, 30).
		WillReturnRows(pgxmock.NewRows([]string{
			"timestamp", "open", "high", "low", "close", "volume",
		}))

	bars, err := s.BarsAfter(context.Background(), "ZZZZ", after, 30)
	require.NoError(t, err)
	assert.Empty(t, bars)
}
