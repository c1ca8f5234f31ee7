package agents

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphamachine/engine/internal/market"
	"github.com/alphamachine/engine/internal/sentiment"
)

func snapshotWith(rsi float64, change7d, change30d float64, trend market.VolumeTrend) *market.Snapshot {
	return &market.Snapshot{
		Ticker:       "NVDA",
		AsOf:         time.Now().UTC(),
		CurrentPrice: decimal.NewFromInt(150),
		HasPrice:     true,
		Indicators: map[string]float64{
			"rsi":             rsi,
			"price_change_7d": change7d,
			"price_change_30d": change30d,
		},
		VolumeTrend: trend,
	}
}

func sentimentWith(score float64, mentions int) *sentiment.Snapshot {
	return &sentiment.Snapshot{
		Ticker:    "NVDA",
		Combined:  score,
		Available: true,
		Reddit:    sentiment.SocialReading{Mentions: mentions, Score: score, Available: mentions > 0},
	}
}

func TestPredictorOversoldWithFearLeansBuy(t *testing.T) {
	agent := NewPredictorAgent(1.0, 0, 0, zerolog.Nop())

	verdict := agent.Analyze(context.Background(), Inputs{
		Ticker:    "NVDA",
		Market:    snapshotWith(25, -12, -8, market.VolumeIncreasing),
		Sentiment: sentimentWith(-0.6, 40),
	})

	require.False(t, verdict.Failed)
	// Oversold RSI is strongly bullish; momentum and sentiment pull the
	// other way, but the reversal factor dominates with its weight.
	assert.Greater(t, verdict.RawScore, -1.0)
	assert.Less(t, verdict.RawScore, 1.0)
	assert.Greater(t, verdict.Confidence, 0.0)
	assert.Contains(t, verdict.Reasoning, "oversold")
	assert.Equal(t, 25.0, verdict.DataUsed["rsi"])
}

func TestPredictorOverboughtWithGreedLeansSell(t *testing.T) {
	agent := NewPredictorAgent(1.0, 0, 0, zerolog.Nop())

	verdict := agent.Analyze(context.Background(), Inputs{
		Ticker:    "NVDA",
		Market:    snapshotWith(82, -4, -16, market.VolumeDecreasing),
		Sentiment: sentimentWith(-0.4, 30),
	})

	require.False(t, verdict.Failed)
	assert.Negative(t, verdict.RawScore)
	assert.Contains(t, verdict.Reasoning, "overbought")
	// All factors point the same way, so agreement is total.
	assert.InDelta(t, 1.0, verdict.Confidence, 1e-9)
	assert.True(t, verdict.Signal == Sell || verdict.Signal == StrongSell)
}

func TestPredictorMissingInputsDefaultsToNeutral(t *testing.T) {
	agent := NewPredictorAgent(1.0, 0, 0, zerolog.Nop())

	verdict := agent.Analyze(context.Background(), Inputs{Ticker: "NVDA"})

	require.False(t, verdict.Failed, "the baseline agent never fails")
	assert.Equal(t, Hold, verdict.Signal)
	assert.Zero(t, verdict.RawScore)
	assert.Equal(t, 50.0, verdict.DataUsed["rsi"], "missing RSI is treated as neutral 50")
	assert.Equal(t, 0.0, verdict.DataUsed["sentiment"])
	assert.Equal(t, string(market.VolumeUnknown), verdict.DataUsed["volume_trend"])
}

func TestPredictorIsDeterministic(t *testing.T) {
	agent := NewPredictorAgent(1.0, 0, 0, zerolog.Nop())
	inputs := Inputs{
		Ticker:    "NVDA",
		Market:    snapshotWith(28, 2, 4, market.VolumeNeutral),
		Sentiment: sentimentWith(-0.55, 52),
	}

	first := agent.Analyze(context.Background(), inputs)
	for i := 0; i < 5; i++ {
		again := agent.Analyze(context.Background(), inputs)
		assert.Equal(t, first.RawScore, again.RawScore)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.Signal, again.Signal)
	}
}

func TestPredictorClampsOutOfRangeInputs(t *testing.T) {
	agent := NewPredictorAgent(1.0, 0, 0, zerolog.Nop())

	verdict := agent.Analyze(context.Background(), Inputs{
		Ticker:    "NVDA",
		Market:    snapshotWith(140, 0, 0, market.VolumeNeutral), // impossible RSI
		Sentiment: sentimentWith(2.5, 10),                        // out-of-range sentiment
	})

	assert.Equal(t, 100.0, verdict.DataUsed["rsi"])
	assert.Equal(t, 1.0, verdict.DataUsed["sentiment"])
	assert.GreaterOrEqual(t, verdict.RawScore, -1.0)
	assert.LessOrEqual(t, verdict.RawScore, 1.0)
}

func TestRSIFactorBands(t *testing.T) {
	score, _ := rsiFactor(20)
	assert.InDelta(t, 0.733, score, 0.001)

	score, _ = rsiFactor(85)
	assert.InDelta(t, -0.8, score, 0.001)

	score, _ = rsiFactor(60)
	assert.InDelta(t, 0.15, score, 1e-9)

	score, _ = rsiFactor(40)
	assert.InDelta(t, -0.15, score, 1e-9)

	score, _ = rsiFactor(50)
	assert.InDelta(t, 0, score, 1e-9)
}

func TestMomentumFactorBands(t *testing.T) {
	score, reason := momentumFactor(12, 20)
	assert.InDelta(t, 0.9, score, 1e-9)
	assert.Contains(t, reason, "strong 7d momentum")

	score, _ = momentumFactor(-12, -20)
	assert.InDelta(t, -0.9, score, 1e-9)

	score, _ = momentumFactor(0, 0)
	assert.Zero(t, score)
}
