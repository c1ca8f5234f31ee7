package backtest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/errs"
	"github.com/alphamachine/engine/internal/store"
	"github.com/alphamachine/engine/internal/validation"
)

// selectionLimit caps how many signals one run will consider
const selectionLimit = 500

// Repository is the persistence surface the engine needs
type Repository interface {
	ListSignals(ctx context.Context, filter store.ListFilter) ([]store.Signal, error)
	GetSignal(ctx context.Context, id int64) (*store.Signal, error)
	SaveTrades(ctx context.Context, trades []store.BacktestTrade) error
}

// Engine runs backtests over persisted signals and price history
type Engine struct {
	repo     Repository
	prices   PriceSource
	timeout  time.Duration
	capital  float64
	holdDays int
	log      zerolog.Logger
}

// NewEngine creates a backtest engine. Zero timeout, capital and hold
// period select the 5m / 50000 / 30-day defaults.
func NewEngine(repo Repository, prices PriceSource, timeout time.Duration, capital float64, holdDays int, logger zerolog.Logger) *Engine {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	if capital == 0 {
		capital = 50000
	}
	if holdDays == 0 {
		holdDays = 30
	}
	return &Engine{
		repo:     repo,
		prices:   prices,
		timeout:  timeout,
		capital:  capital,
		holdDays: holdDays,
		log:      logger,
	}
}

// Run executes one backtest: select BUY signals in the window, rank
// them, allocate per the mode, replay each position against stored
// prices and persist the trades. Fails with InvalidState when the
// window holds no BUY signals.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	req = e.withDefaults(req)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	selected, full, err := e.selectSignals(ctx, req)
	if err != nil {
		return nil, err
	}

	return e.runMode(ctx, req, req.Mode, selected, full)
}

// CompareModes replays the same signal selection under all three
// allocation modes. Each mode's trades are persisted under their own
// run ID.
func (e *Engine) CompareModes(ctx context.Context, req Request) (map[string]*Report, error) {
	req = e.withDefaults(req)
	if req.Mode == "" {
		req.Mode = ModeBalanced
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	selected, full, err := e.selectSignals(ctx, req)
	if err != nil {
		return nil, err
	}

	reports := make(map[string]*Report, len(modePlans))
	for _, mode := range validation.AllocationModes {
		report, err := e.runMode(ctx, req, mode, selected, full)
		if err != nil {
			return nil, err
		}
		reports[mode] = report
	}
	return reports, nil
}

func (e *Engine) withDefaults(req Request) Request {
	if req.StartingCapital == 0 {
		req.StartingCapital = e.capital
	}
	if req.HoldPeriodDays == 0 {
		req.HoldPeriodDays = e.holdDays
	}
	return req
}

func validateRequest(req Request) error {
	v := validation.NewValidator()
	v.DateRange("range", req.Start, req.End)
	v.OneOf("mode", req.Mode, validation.AllocationModes)
	v.Positive("starting_capital", req.StartingCapital)
	v.Positive("hold_period_days", float64(req.HoldPeriodDays))
	if err := v.Err("backtest.run"); err != nil {
		return err
	}
	if len(req.Tickers) > 0 {
		return validation.Tickers(req.Tickers)
	}
	return nil
}

// selectSignals loads the window's BUY signals plus their full records
// with agent analyses for attribution.
func (e *Engine) selectSignals(ctx context.Context, req Request) ([]store.Signal, map[int64]*store.Signal, error) {
	signals, err := e.repo.ListSignals(ctx, store.ListFilter{
		SignalType: "BUY",
		Since:      req.Start,
		Until:      req.End,
		Limit:      selectionLimit,
	})
	if err != nil {
		return nil, nil, err
	}

	if len(req.Tickers) > 0 {
		wanted := make(map[string]bool, len(req.Tickers))
		for _, t := range req.Tickers {
			wanted[strings.ToUpper(t)] = true
		}
		filtered := signals[:0]
		for _, sig := range signals {
			if wanted[sig.Ticker] {
				filtered = append(filtered, sig)
			}
		}
		signals = filtered
	}

	if len(signals) == 0 {
		return nil, nil, errs.InvalidStatef("backtest.run",
			"no BUY signals between %s and %s",
			req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))
	}

	full := make(map[int64]*store.Signal, len(signals))
	for _, sig := range signals {
		loaded, err := e.repo.GetSignal(ctx, sig.ID)
		if err != nil {
			return nil, nil, err
		}
		full[sig.ID] = loaded
	}
	return signals, full, nil
}

func (e *Engine) runMode(ctx context.Context, req Request, mode string, selected []store.Signal, full map[int64]*store.Signal) (*Report, error) {
	runID := uuid.New()
	capital := decimal.NewFromFloat(req.StartingCapital)

	ranked := rankSignals(selected)
	positions, cash, err := allocate(ranked, mode, capital)
	if err != nil {
		return nil, err
	}

	var (
		trades   []store.BacktestTrade
		warnings []string
	)
	for _, pos := range positions {
		trade, err := simulate(ctx, e.prices, runID, pos, req.HoldPeriodDays)
		if err != nil {
			return nil, err
		}
		if trade == nil {
			sig := pos.Ranked.Signal
			warnings = append(warnings, "no price data for "+sig.Ticker+" after "+
				sig.Timestamp.Format("2006-01-02")+"; trade skipped")
			continue
		}
		trades = append(trades, *trade)
	}

	if len(trades) > 0 {
		if err := e.repo.SaveTrades(ctx, trades); err != nil {
			return nil, err
		}
	}

	metrics, curve := computeMetrics(trades, capital)
	report := &Report{
		RunID:           runID,
		Mode:            mode,
		Start:           req.Start,
		End:             req.End,
		StartingCapital: capital,
		EndingCapital:   capital.Add(metrics.TotalPnL),
		CashReserve:     cash,
		Positions:       positions,
		Trades:          trades,
		Metrics:         metrics,
		EquityCurve:     curve,
		AgentStats:      attribution(trades, full),
		Warnings:        warnings,
		GeneratedAt:     time.Now().UTC(),
	}

	e.log.Info().
		Str("run_id", runID.String()).
		Str("mode", mode).
		Int("signals", len(selected)).
		Int("trades", len(trades)).
		Str("total_pnl", metrics.TotalPnL.String()).
		Msg("Backtest run complete")
	return report, nil
}
