package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alphamachine/engine/internal/errs"
)

// WatchlistEntry is a monitored ticker. Tier 1 is core, 2 growth,
// 3 tactical.
type WatchlistEntry struct {
	ID          int64
	Ticker      string
	CompanyName string
	Sector      string
	Tier        int
	Active      bool
	CreatedAt   time.Time
}

// ActiveTickers returns the tickers currently enabled for batch signal
// generation, tier order then alphabetical.
func (s *Store) ActiveTickers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker FROM watchlist WHERE active ORDER BY tier, ticker`)
	if err != nil {
		return nil, errs.E(errs.KindFatal, "store.active_tickers", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, errs.E(errs.KindFatal, "store.active_tickers", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(errs.KindFatal, "store.active_tickers", err)
	}
	return tickers, nil
}

// AddToWatchlist inserts or reactivates a watchlist entry
func (s *Store) AddToWatchlist(ctx context.Context, entry WatchlistEntry) error {
	ticker := strings.ToUpper(entry.Ticker)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watchlist (ticker, company_name, sector, tier, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (ticker) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			sector = EXCLUDED.sector,
			tier = EXCLUDED.tier,
			active = TRUE`,
		ticker, entry.CompanyName, entry.Sector, entry.Tier)
	if err != nil {
		return errs.E(errs.KindFatal, "store.add_watchlist", err)
	}
	s.log.Info().Str("ticker", ticker).Int("tier", entry.Tier).Msg("Watchlist entry upserted")
	return nil
}

// DeactivateTicker removes a ticker from batch generation without
// breaking the foreign keys on its historical signals.
func (s *Store) DeactivateTicker(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(ticker)
	tag, err := s.pool.Exec(ctx,
		`UPDATE watchlist SET active = FALSE WHERE ticker = $1`, ticker)
	if err != nil {
		return errs.E(errs.KindFatal, "store.deactivate_ticker", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.E(errs.KindBadInput, "store.deactivate_ticker",
			fmt.Errorf("ticker %s: %w", ticker, ErrNotFound))
	}
	return nil
}
