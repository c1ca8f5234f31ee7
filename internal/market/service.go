// Package market aggregates quotes, history and indicators from an
// ordered chain of vendor APIs behind retries, circuit breakers and a
// redis cache. A degraded snapshot with absent fields is still returned
// when providers fail; the agents downstream handle the gaps.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alphamachine/engine/internal/breaker"
	"github.com/alphamachine/engine/internal/errs"
	"github.com/alphamachine/engine/internal/retry"
	"github.com/alphamachine/engine/internal/validation"
)

const maxHistoryBars = 100

// ServiceConfig wires the aggregation service
type ServiceConfig struct {
	Providers []Provider
	Cache     *Cache
	Breakers  *breaker.Registry
	Retry     retry.Config

	QuoteTTL      time.Duration // default 60s
	HistoricalTTL time.Duration // default 1h
	IndicatorsTTL time.Duration // default 15m

	OperationTimeout time.Duration // per top-level operation, default 10s
	HistoryDays      int           // default 30
}

// Service aggregates market data across the provider chain
type Service struct {
	providers []Provider
	cache     *Cache
	breakers  *breaker.Registry
	retry     retry.Config

	quoteTTL      time.Duration
	historicalTTL time.Duration
	indicatorsTTL time.Duration
	opTimeout     time.Duration
	historyDays   int

	log zerolog.Logger
}

// NewService creates the market data aggregation service
func NewService(config ServiceConfig, logger zerolog.Logger) *Service {
	if config.QuoteTTL == 0 {
		config.QuoteTTL = 60 * time.Second
	}
	if config.HistoricalTTL == 0 {
		config.HistoricalTTL = time.Hour
	}
	if config.IndicatorsTTL == 0 {
		config.IndicatorsTTL = 15 * time.Minute
	}
	if config.OperationTimeout == 0 {
		config.OperationTimeout = 10 * time.Second
	}
	if config.HistoryDays == 0 {
		config.HistoryDays = 30
	}
	if config.HistoryDays > maxHistoryBars {
		config.HistoryDays = maxHistoryBars
	}
	return &Service{
		providers:     config.Providers,
		cache:         config.Cache,
		breakers:      config.Breakers,
		retry:         config.Retry,
		quoteTTL:      config.QuoteTTL,
		historicalTTL: config.HistoricalTTL,
		indicatorsTTL: config.IndicatorsTTL,
		opTimeout:     config.OperationTimeout,
		historyDays:   config.HistoryDays,
		log:           logger,
	}
}

// chainResult carries one operation's outcome through the fan-out
type chainResult[T any] struct {
	value  T
	source string
	stale  bool
}

// fetchChained walks the provider chain for one operation: fresh cache
// per provider, then the network through retry and the provider's
// breaker. Only after the whole chain fails does the stale window get a
// look.
func fetchChained[T any](ctx context.Context, s *Service, op, ticker string, ttl time.Duration, call func(context.Context, Provider) (T, error)) (chainResult[T], error) {
	var result chainResult[T]
	var lastErr error

	for _, p := range s.providers {
		if s.cache.Get(ctx, op, ticker, p.Name(), ttl, &result.value) {
			result.source = p.Name()
			return result, nil
		}

		var value T
		err := retry.Do(ctx, s.retry, op, func() error {
			return s.breakers.Do(op, p.Name(), func() error {
				v, err := call(ctx, p)
				if err != nil {
					return err
				}
				value = v
				return nil
			})
		})
		if err == nil {
			s.cache.Put(ctx, op, ticker, p.Name(), ttl, value)
			result.value = value
			result.source = p.Name()
			return result, nil
		}

		lastErr = err
		s.log.Warn().
			Err(err).
			Str("op", op).
			Str("ticker", ticker).
			Str("provider", p.Name()).
			Msg("Provider failed, trying next in chain")
	}

	// Full chain failure: serve stale cache within 10x TTL if any
	// provider has one.
	for _, p := range s.providers {
		if s.cache.GetStale(ctx, op, ticker, p.Name(), ttl, &result.value) {
			result.source = p.Name()
			result.stale = true
			s.log.Warn().
				Str("op", op).
				Str("ticker", ticker).
				Str("provider", p.Name()).
				Msg("Serving stale cached data after chain failure")
			return result, nil
		}
	}

	return result, errs.E(errs.KindUnavailable, op,
		fmt.Errorf("all providers failed for %s: %w", ticker, lastErr))
}

// Quote fetches the current quote through the chain
func (s *Service) Quote(ctx context.Context, ticker string) (*Quote, string, error) {
	if err := validation.Ticker(ticker); err != nil {
		return nil, "", err
	}
	res, err := fetchChained(ctx, s, "quote", ticker, s.quoteTTL,
		func(ctx context.Context, p Provider) (*Quote, error) {
			return p.Quote(ctx, ticker)
		})
	if err != nil {
		return nil, "", err
	}
	return res.value, res.source, nil
}

// Historical fetches up to days daily bars, newest first
func (s *Service) Historical(ctx context.Context, ticker string, days int) ([]Bar, error) {
	if err := validation.Ticker(ticker); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = s.historyDays
	}
	if days > maxHistoryBars {
		days = maxHistoryBars
	}
	res, err := fetchChained(ctx, s, "historical", ticker, s.historicalTTL,
		func(ctx context.Context, p Provider) ([]Bar, error) {
			return p.Historical(ctx, ticker, days)
		})
	if err != nil {
		return nil, err
	}
	return res.value, nil
}

// Snapshot assembles the full market view for a ticker. Quote, history
// and indicators run in parallel, each under its own deadline; whichever
// fields cannot be delivered are left absent.
func (s *Service) Snapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	if err := validation.Ticker(ticker); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Ticker:      ticker,
		AsOf:        time.Now().UTC(),
		VolumeTrend: VolumeUnknown,
	}

	var (
		quoteRes      chainResult[*Quote]
		historicalRes chainResult[[]Bar]
		indicatorsRes chainResult[map[string]float64]
		quoteErr      error
		historicalErr error
		indicatorsErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
		quoteRes, quoteErr = fetchChained(opCtx, s, "quote", ticker, s.quoteTTL,
			func(ctx context.Context, p Provider) (*Quote, error) {
				return p.Quote(ctx, ticker)
			})
		return nil
	})
	g.Go(func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
		historicalRes, historicalErr = fetchChained(opCtx, s, "historical", ticker, s.historicalTTL,
			func(ctx context.Context, p Provider) ([]Bar, error) {
				return p.Historical(ctx, ticker, s.historyDays)
			})
		return nil
	})
	g.Go(func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
		indicatorsRes, indicatorsErr = fetchChained(opCtx, s, "indicators", ticker, s.indicatorsTTL,
			func(ctx context.Context, p Provider) (map[string]float64, error) {
				return p.Indicators(ctx, ticker)
			})
		return nil
	})
	_ = g.Wait()

	if quoteErr == nil && quoteRes.value != nil {
		snapshot.CurrentPrice = quoteRes.value.Price
		snapshot.HasPrice = snapshot.CurrentPrice.IsPositive()
		snapshot.SourceUsed = quoteRes.source
		snapshot.Stale = snapshot.Stale || quoteRes.stale
	} else if quoteErr != nil {
		s.log.Warn().Err(quoteErr).Str("ticker", ticker).Msg("Quote unavailable, snapshot degraded")
	}

	if historicalErr == nil {
		snapshot.Historical = historicalRes.value
		snapshot.Stale = snapshot.Stale || historicalRes.stale
	} else {
		s.log.Warn().Err(historicalErr).Str("ticker", ticker).Msg("Historical data unavailable, snapshot degraded")
	}

	indicators := make(map[string]float64)
	if indicatorsErr == nil {
		for k, v := range indicatorsRes.value {
			indicators[k] = v
		}
		snapshot.Stale = snapshot.Stale || indicatorsRes.stale
	} else {
		s.log.Warn().Err(indicatorsErr).Str("ticker", ticker).Msg("Indicator provider unavailable")
	}

	// Derive the rest from the historical series. RSI falls back to a
	// local computation when the provider chain came up empty.
	if len(snapshot.Historical) > 0 {
		if _, ok := indicators["rsi"]; !ok {
			if rsi, ok := localRSI(snapshot.Historical, rsiPeriod); ok {
				indicators["rsi"] = rsi
			}
		}
		indicators["price_change_1d"] = priceChangePercent(snapshot.Historical, 1)
		indicators["price_change_7d"] = priceChangePercent(snapshot.Historical, 7)
		indicators["price_change_30d"] = priceChangePercent(snapshot.Historical, 30)
		snapshot.VolumeTrend = volumeTrendOf(snapshot.Historical)
	}
	if len(indicators) > 0 {
		snapshot.Indicators = indicators
	}

	return snapshot, nil
}
