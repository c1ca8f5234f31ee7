package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphamachine/engine/internal/agents"
	"github.com/alphamachine/engine/internal/consensus"
	"github.com/alphamachine/engine/internal/errs"
	"github.com/alphamachine/engine/internal/market"
	"github.com/alphamachine/engine/internal/sentiment"
	"github.com/alphamachine/engine/internal/store"
)

type fakeMarket struct {
	snap *market.Snapshot
	err  error
}

func (f *fakeMarket) Snapshot(ctx context.Context, ticker string) (*market.Snapshot, error) {
	return f.snap, f.err
}

type fakeSentiment struct {
	snap *sentiment.Snapshot
	err  error
}

func (f *fakeSentiment) Snapshot(ctx context.Context, ticker string) (*sentiment.Snapshot, error) {
	return f.snap, f.err
}

type fakePanel struct {
	verdicts []agents.Verdict
	inputs   agents.Inputs
}

func (f *fakePanel) Analyze(ctx context.Context, inputs agents.Inputs) ([]agents.Verdict, error) {
	f.inputs = inputs
	return f.verdicts, nil
}

type fakeRepo struct {
	saved      []*store.Signal
	barsSaved  int
	sentSaved  int
	active     []string
	saveErr    error
	byID       map[int64]*store.Signal
	statusLog  []store.Status
	nextID     int64
	updateErr  error
	activeErr  error
	barWritten string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[int64]*store.Signal{}, nextID: 100}
}

func (f *fakeRepo) SaveSignal(ctx context.Context, sig *store.Signal) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.nextID++
	sig.ID = f.nextID
	sig.Timestamp = time.Now().UTC()
	f.saved = append(f.saved, sig)
	f.byID[sig.ID] = sig
	return nil
}

func (f *fakeRepo) GetSignal(ctx context.Context, id int64) (*store.Signal, error) {
	sig, ok := f.byID[id]
	if !ok {
		return nil, errs.E(errs.KindBadInput, "store.get_signal", store.ErrNotFound)
	}
	return sig, nil
}

func (f *fakeRepo) ListSignals(ctx context.Context, filter store.ListFilter) ([]store.Signal, error) {
	var out []store.Signal
	for _, sig := range f.saved {
		out = append(out, *sig)
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id int64, status store.Status, pnl *decimal.Decimal, notes *string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	sig, ok := f.byID[id]
	if !ok {
		return errs.E(errs.KindBadInput, "store.update_status", store.ErrNotFound)
	}
	sig.Status = status
	f.statusLog = append(f.statusLog, status)
	return nil
}

func (f *fakeRepo) ActiveTickers(ctx context.Context) ([]string, error) {
	return f.active, f.activeErr
}

func (f *fakeRepo) SaveBars(ctx context.Context, ticker, source string, bars []market.Bar) error {
	f.barsSaved += len(bars)
	f.barWritten = source
	return nil
}

func (f *fakeRepo) SaveSentiment(ctx context.Context, snap *sentiment.Snapshot) error {
	f.sentSaved++
	return nil
}

func buyVerdicts() []agents.Verdict {
	return []agents.Verdict{
		{AgentName: "contrarian", Signal: agents.StrongBuy, RawScore: 0.8, Confidence: 0.8, Reasoning: "fear"},
		{AgentName: "growth", Signal: agents.Buy, RawScore: 0.4, Confidence: 0.6, Reasoning: "momentum"},
		{AgentName: "multimodal", Signal: agents.Buy, RawScore: 0.5, Confidence: 0.7, Reasoning: "aligned"},
		{AgentName: "predictor", Signal: agents.Buy, RawScore: 0.3, Confidence: 0.5, Reasoning: "oversold"},
	}
}

func healthySnapshot() *market.Snapshot {
	return &market.Snapshot{
		Ticker:       "NVDA",
		AsOf:         time.Now().UTC(),
		CurrentPrice: decimal.NewFromInt(150),
		HasPrice:     true,
		SourceUsed:   "polygon",
		Historical: []market.Bar{
			{Date: time.Now().UTC(), Close: decimal.NewFromInt(150), Volume: 100},
		},
	}
}

func newService(m MarketSource, sn SentimentSource, p VerdictPanel, repo Repository) *Service {
	engine := consensus.NewEngine(map[string]float64{}, consensus.Params{}, zerolog.Nop())
	return NewService(m, sn, p, engine, repo, time.Second, zerolog.Nop())
}

func TestGenerateSignalPersistsBuy(t *testing.T) {
	repo := newFakeRepo()
	panel := &fakePanel{verdicts: buyVerdicts()}
	svc := newService(
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: &sentiment.Snapshot{Ticker: "NVDA", Combined: -0.4, Available: true,
			Reddit: sentiment.SocialReading{Mentions: 40, Available: true}}},
		panel, repo)

	res, err := svc.GenerateSignal(context.Background(), "nvda")
	require.NoError(t, err)

	require.Len(t, repo.saved, 1)
	sig := repo.saved[0]
	assert.Equal(t, "NVDA", sig.Ticker)
	assert.Equal(t, "BUY", sig.SignalType)
	assert.Equal(t, store.StatusPending, sig.Status)
	require.NotNil(t, sig.EntryPrice)
	assert.True(t, sig.EntryPrice.Equal(decimal.NewFromInt(150)))
	require.NotNil(t, sig.StopLoss)
	assert.True(t, sig.StopLoss.LessThan(*sig.EntryPrice))
	assert.Len(t, sig.Analyses, 4)
	assert.Equal(t, "BUY", sig.Analyses[0].Recommendation)
	assert.Positive(t, sig.PositionSize)

	// Snapshots were handed to the panel and written back.
	assert.Equal(t, "NVDA", panel.inputs.Ticker)
	assert.NotNil(t, panel.inputs.Market)
	assert.Equal(t, 1, repo.barsSaved)
	assert.Equal(t, "polygon", repo.barWritten)
	assert.Equal(t, 1, repo.sentSaved)
	assert.Empty(t, res.Warnings)
}

func TestGenerateSignalDegradedMarketHolds(t *testing.T) {
	// Providers down: no price, no sentiment. The request still produces
	// a persisted HOLD with warnings instead of failing.
	repo := newFakeRepo()
	svc := newService(
		&fakeMarket{snap: &market.Snapshot{Ticker: "NVDA"}},
		&fakeSentiment{err: errs.E(errs.KindUnavailable, "sentiment.snapshot", errors.New("all sources down"))},
		&fakePanel{verdicts: buyVerdicts()}, repo)

	res, err := svc.GenerateSignal(context.Background(), "NVDA")
	require.NoError(t, err)

	sig := res.Signal
	assert.Equal(t, "HOLD", sig.SignalType)
	assert.Zero(t, sig.PositionSize)
	assert.Nil(t, sig.EntryPrice)
	assert.Nil(t, sig.StopLoss)
	assert.Contains(t, res.Warnings, "no current price available")
	assert.Contains(t, res.Warnings, "sentiment unavailable, treated as neutral")
	// Nothing usable to write back.
	assert.Zero(t, repo.barsSaved)
	assert.Zero(t, repo.sentSaved)
}

func TestGenerateSignalFailedAgentsWarn(t *testing.T) {
	repo := newFakeRepo()
	verdicts := append(buyVerdicts()[:2], agents.FailedVerdict("multimodal", "deadline exceeded"))
	svc := newService(
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: &sentiment.Snapshot{Ticker: "NVDA", Available: true,
			Reddit: sentiment.SocialReading{Mentions: 5, Available: true}}},
		&fakePanel{verdicts: verdicts}, repo)

	res, err := svc.GenerateSignal(context.Background(), "NVDA")
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "multimodal")
	// The failed verdict is persisted for audit.
	assert.Len(t, res.Signal.Analyses, 3)
	assert.True(t, res.Signal.Analyses[2].Failed)
}

func TestGenerateSignalRejectsBadTicker(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(&fakeMarket{}, &fakeSentiment{}, &fakePanel{}, repo)

	_, err := svc.GenerateSignal(context.Background(), "123!")
	require.Error(t, err)
	assert.True(t, errs.IsBadInput(err))
	assert.Empty(t, repo.saved)
}

func TestGenerateBatchFallsBackToWatchlist(t *testing.T) {
	repo := newFakeRepo()
	repo.active = []string{"NVDA", "MSFT"}
	svc := newService(
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: &sentiment.Snapshot{Available: false}},
		&fakePanel{verdicts: buyVerdicts()}, repo)

	results, err := svc.GenerateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, repo.saved, 2)
}

func TestGenerateBatchContinuesPastFailures(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: &sentiment.Snapshot{Available: false}},
		&fakePanel{verdicts: buyVerdicts()}, repo)

	results, err := svc.GenerateBatch(context.Background(), []string{"NVDA", "bad ticker", "MSFT"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NotNil(t, results[0].Signal)
	assert.Nil(t, results[1].Signal)
	assert.NotEmpty(t, results[1].Warnings)
	assert.NotNil(t, results[2].Signal)
}

func TestUpdateSignalStatusReturnsUpdated(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: &sentiment.Snapshot{Available: false}},
		&fakePanel{verdicts: buyVerdicts()}, repo)

	res, err := svc.GenerateSignal(context.Background(), "NVDA")
	require.NoError(t, err)

	updated, err := svc.UpdateSignalStatus(context.Background(), res.Signal.ID, store.StatusApproved, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, updated.Status)
}
