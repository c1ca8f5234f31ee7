package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/errs"
	"github.com/alphamachine/engine/internal/market"
	"github.com/alphamachine/engine/internal/sentiment"
)

// SaveBars records fetched daily bars for later backtests. Duplicate
// (ticker, timestamp, source) rows are ignored so repeated snapshots of
// the same day are harmless.
func (s *Store) SaveBars(ctx context.Context, ticker, source string, bars []market.Bar) error {
	for _, bar := range bars {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO market_data (ticker, timestamp, open, high, low, close, volume, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (ticker, timestamp, source) DO NOTHING`,
			ticker,
			bar.Date,
			bar.Open.String(),
			bar.High.String(),
			bar.Low.String(),
			bar.Close.String(),
			bar.Volume,
			source)
		if err != nil {
			return errs.E(errs.KindFatal, "store.save_bars",
				fmt.Errorf("bar %s %s: %w", ticker, bar.Date.Format("2006-01-02"), err))
		}
	}
	s.log.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Market bars saved")
	return nil
}

// BarsAfter returns up to limit daily bars strictly after the given
// date, oldest first. Overlapping rows from different sources collapse
// to one bar per day.
func (s *Store) BarsAfter(ctx context.Context, ticker string, after time.Time, limit int) ([]market.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (timestamp) timestamp,
			open::text, high::text, low::text, close::text, volume
		FROM market_data
		WHERE ticker = $1 AND timestamp > $2
		ORDER BY timestamp, source
		LIMIT $3`,
		ticker, after, limit)
	if err != nil {
		return nil, errs.E(errs.KindFatal, "store.bars_after", err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var (
			bar                    market.Bar
			open, high, low, close string
		)
		if err := rows.Scan(&bar.Date, &open, &high, &low, &close, &bar.Volume); err != nil {
			return nil, errs.E(errs.KindFatal, "store.bars_after", err)
		}
		if bar.Open, err = decimal.NewFromString(open); err != nil {
			return nil, errs.E(errs.KindFatal, "store.bars_after", err)
		}
		if bar.High, err = decimal.NewFromString(high); err != nil {
			return nil, errs.E(errs.KindFatal, "store.bars_after", err)
		}
		if bar.Low, err = decimal.NewFromString(low); err != nil {
			return nil, errs.E(errs.KindFatal, "store.bars_after", err)
		}
		if bar.Close, err = decimal.NewFromString(close); err != nil {
			return nil, errs.E(errs.KindFatal, "store.bars_after", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(errs.KindFatal, "store.bars_after", err)
	}
	return bars, nil
}

// SaveSentiment records one source reading from a sentiment snapshot
func (s *Store) SaveSentiment(ctx context.Context, snap *sentiment.Snapshot) error {
	type reading struct {
		source   string
		score    float64
		mentions int
		raw      interface{}
	}
	var readings []reading
	if snap.Reddit.Available {
		readings = append(readings, reading{"reddit", snap.Reddit.Score, snap.Reddit.Mentions, snap.Reddit})
	}
	if snap.News.Available {
		readings = append(readings, reading{"news", snap.News.Score, snap.News.ArticleCount, snap.News})
	}

	for _, r := range readings {
		raw, err := json.Marshal(r.raw)
		if err != nil {
			return errs.E(errs.KindFatal, "store.save_sentiment", err)
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO sentiment_data (ticker, source, sentiment_score, mention_count, raw_data)
			VALUES ($1, $2, $3, $4, $5)`,
			snap.Ticker, r.source, r.score, r.mentions, raw)
		if err != nil {
			return errs.E(errs.KindFatal, "store.save_sentiment",
				fmt.Errorf("%s reading: %w", r.source, err))
		}
	}
	return nil
}
