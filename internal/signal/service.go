// Package signal orchestrates one request end to end: snapshot the
// market and sentiment, run the agent panel, blend the consensus and
// persist the outcome. Data failures degrade into warnings; the request
// itself fails only on bad input or a persistence error.
package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alphamachine/engine/internal/agents"
	"github.com/alphamachine/engine/internal/consensus"
	"github.com/alphamachine/engine/internal/market"
	"github.com/alphamachine/engine/internal/sentiment"
	"github.com/alphamachine/engine/internal/store"
	"github.com/alphamachine/engine/internal/validation"
)

// MarketSource provides the assembled market snapshot
type MarketSource interface {
	Snapshot(ctx context.Context, ticker string) (*market.Snapshot, error)
}

// SentimentSource provides the combined sentiment snapshot
type SentimentSource interface {
	Snapshot(ctx context.Context, ticker string) (*sentiment.Snapshot, error)
}

// VerdictPanel runs the analyst agents
type VerdictPanel interface {
	Analyze(ctx context.Context, inputs agents.Inputs) ([]agents.Verdict, error)
}

// Repository is the persistence surface the service needs
type Repository interface {
	SaveSignal(ctx context.Context, sig *store.Signal) error
	GetSignal(ctx context.Context, id int64) (*store.Signal, error)
	ListSignals(ctx context.Context, filter store.ListFilter) ([]store.Signal, error)
	UpdateStatus(ctx context.Context, id int64, status store.Status, pnl *decimal.Decimal, notes *string) error
	ActiveTickers(ctx context.Context) ([]string, error)
	SaveBars(ctx context.Context, ticker, source string, bars []market.Bar) error
	SaveSentiment(ctx context.Context, snap *sentiment.Snapshot) error
}

// Result is one generated signal plus the degradations encountered
// while producing it.
type Result struct {
	Signal   *store.Signal      `json:"signal"`
	Warnings []string           `json:"warnings,omitempty"`
	Outcome  *consensus.Outcome `json:"-"`
}

// Service wires the pipeline together
type Service struct {
	markets    MarketSource
	sentiments SentimentSource
	panel      VerdictPanel
	engine     *consensus.Engine
	repo       Repository
	timeout    time.Duration
	log        zerolog.Logger
}

// NewService creates the signal service. Zero timeout selects the 45s
// default request deadline.
func NewService(markets MarketSource, sentiments SentimentSource, panel VerdictPanel,
	engine *consensus.Engine, repo Repository, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &Service{
		markets:    markets,
		sentiments: sentiments,
		panel:      panel,
		engine:     engine,
		repo:       repo,
		timeout:    timeout,
		log:        logger,
	}
}

// GenerateSignal runs the full pipeline for one ticker
func (s *Service) GenerateSignal(ctx context.Context, ticker string) (*Result, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if err := validation.Ticker(ticker); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		marketSnap *market.Snapshot
		sentSnap   *sentiment.Snapshot
		warnings   []string
	)

	// Snapshot failures degrade the request instead of aborting it; the
	// agents handle missing inputs and the consensus guards sizing.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.markets.Snapshot(gctx, ticker)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Market snapshot failed")
			return nil
		}
		marketSnap = snap
		return nil
	})
	g.Go(func() error {
		snap, err := s.sentiments.Snapshot(gctx, ticker)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Sentiment snapshot failed")
			return nil
		}
		sentSnap = snap
		return nil
	})
	_ = g.Wait()

	warnings = append(warnings, snapshotWarnings(marketSnap, sentSnap)...)

	verdicts, err := s.panel.Analyze(ctx, agents.Inputs{
		Ticker:    ticker,
		Market:    marketSnap,
		Sentiment: sentSnap,
	})
	if err != nil {
		return nil, err
	}
	for _, v := range verdicts {
		if v.Failed {
			warnings = append(warnings, fmt.Sprintf("agent %s failed: %s", v.AgentName, v.Reasoning))
		}
	}

	entry := decimal.Zero
	if marketSnap != nil && marketSnap.HasPrice {
		entry = marketSnap.CurrentPrice
	}
	outcome := s.engine.Combine(ticker, verdicts, entry)

	sig := toSignal(outcome)
	if err := s.repo.SaveSignal(ctx, sig); err != nil {
		return nil, err
	}
	s.writeBack(ctx, ticker, marketSnap, sentSnap)

	s.log.Info().
		Str("ticker", ticker).
		Str("signal", string(outcome.SignalType)).
		Float64("confidence", outcome.Confidence).
		Int64("signal_id", sig.ID).
		Msg("Signal generated")

	return &Result{Signal: sig, Warnings: warnings, Outcome: &outcome}, nil
}

// GenerateBatch generates signals for the given tickers, or for the
// active watchlist when none are given. Tickers run sequentially so a
// batch cannot multiply provider rate-limit pressure; per-ticker
// failures are reported in place without stopping the batch.
func (s *Service) GenerateBatch(ctx context.Context, tickers []string) ([]*Result, error) {
	if len(tickers) == 0 {
		var err error
		tickers, err = s.repo.ActiveTickers(ctx)
		if err != nil {
			return nil, err
		}
	}

	results := make([]*Result, 0, len(tickers))
	for _, ticker := range tickers {
		res, err := s.GenerateSignal(ctx, ticker)
		if err != nil {
			s.log.Error().Err(err).Str("ticker", ticker).Msg("Batch signal failed")
			results = append(results, &Result{
				Warnings: []string{fmt.Sprintf("%s: %v", ticker, err)},
			})
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// GetSignal loads one persisted signal
func (s *Service) GetSignal(ctx context.Context, id int64) (*store.Signal, error) {
	return s.repo.GetSignal(ctx, id)
}

// ListSignals returns a filtered page of signals
func (s *Service) ListSignals(ctx context.Context, filter store.ListFilter) ([]store.Signal, error) {
	return s.repo.ListSignals(ctx, filter)
}

// UpdateSignalStatus advances a signal's lifecycle and returns the
// updated record.
func (s *Service) UpdateSignalStatus(ctx context.Context, id int64, status store.Status, pnl *decimal.Decimal, notes *string) (*store.Signal, error) {
	if err := s.repo.UpdateStatus(ctx, id, status, pnl, notes); err != nil {
		return nil, err
	}
	return s.repo.GetSignal(ctx, id)
}

// writeBack persists the snapshots for later backtests. Best effort:
// a write-back failure never fails the request.
func (s *Service) writeBack(ctx context.Context, ticker string, marketSnap *market.Snapshot, sentSnap *sentiment.Snapshot) {
	if marketSnap != nil && len(marketSnap.Historical) > 0 {
		if err := s.repo.SaveBars(ctx, ticker, marketSnap.SourceUsed, marketSnap.Historical); err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Market write-back failed")
		}
	}
	if sentSnap != nil && sentSnap.Available {
		if err := s.repo.SaveSentiment(ctx, sentSnap); err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Sentiment write-back failed")
		}
	}
}

func snapshotWarnings(marketSnap *market.Snapshot, sentSnap *sentiment.Snapshot) []string {
	var warnings []string
	switch {
	case marketSnap == nil:
		warnings = append(warnings, "market data unavailable")
	case !marketSnap.HasPrice:
		warnings = append(warnings, "no current price available")
	case marketSnap.Stale:
		warnings = append(warnings, "market data is stale")
	}
	if sentSnap == nil || !sentSnap.Available {
		warnings = append(warnings, "sentiment unavailable, treated as neutral")
	}
	return warnings
}

// toSignal flattens a consensus outcome into its persisted form
func toSignal(outcome consensus.Outcome) *store.Signal {
	sig := &store.Signal{
		Ticker:         outcome.Ticker,
		SignalType:     string(outcome.SignalType),
		Confidence:     outcome.Confidence,
		BlendedScore:   outcome.BlendedScore,
		AgreementRatio: outcome.AgreementRatio,
		StopLoss:       outcome.StopLoss,
		TargetPrice:    outcome.TargetPrice,
		PositionSize:   outcome.PositionSize,
		Status:         store.StatusPending,
		Reasoning:      outcome.Reasoning,
	}
	if outcome.EntryPrice.IsPositive() {
		entry := outcome.EntryPrice
		sig.EntryPrice = &entry
	}
	for _, v := range outcome.Verdicts {
		sig.Analyses = append(sig.Analyses, store.AgentAnalysis{
			AgentName:      v.AgentName,
			Recommendation: recommendationOf(v.Signal),
			Confidence:     v.Confidence,
			RawScore:       v.RawScore,
			Reasoning:      v.Reasoning,
			DataUsed:       v.DataUsed,
			Failed:         v.Failed,
		})
	}
	return sig
}

// recommendationOf collapses the 5-level scale to the persisted 3-level
// recommendation.
func recommendationOf(level agents.SignalLevel) string {
	switch level {
	case agents.StrongBuy, agents.Buy:
		return "BUY"
	case agents.StrongSell, agents.Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}
