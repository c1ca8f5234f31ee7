package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alphamachine/engine/internal/market"
)

// Factor weights for the deterministic score. They sum to 1.
const (
	predictorRSIWeight       = 0.30
	predictorMomentumWeight  = 0.30
	predictorSentimentWeight = 0.25
	predictorVolumeWeight    = 0.15
)

// PredictorAgent is the rule-based baseline analyst. It derives a
// weighted score from RSI mean-reversion, short-horizon momentum,
// sentiment and volume, and never fails on non-empty inputs.
type PredictorAgent struct {
	weight          float64
	buyThreshold    float64
	strongThreshold float64
	log             zerolog.Logger
}

// NewPredictorAgent creates the deterministic analyst. Zero thresholds
// select the defaults.
func NewPredictorAgent(weight, buyThreshold, strongThreshold float64, logger zerolog.Logger) *PredictorAgent {
	if weight == 0 {
		weight = 1.0
	}
	return &PredictorAgent{
		weight:          weight,
		buyThreshold:    buyThreshold,
		strongThreshold: strongThreshold,
		log:             logger,
	}
}

func (a *PredictorAgent) Name() string    { return "predictor" }
func (a *PredictorAgent) Weight() float64 { return a.weight }

// Analyze computes the weighted technical score deterministically
func (a *PredictorAgent) Analyze(ctx context.Context, inputs Inputs) Verdict {
	rsi := rsiOf(inputs.Market)
	combined := sentimentOf(inputs.Sentiment)
	mentions := mentionsOf(inputs.Sentiment)
	momentum7 := momentumOf(inputs.Market, "price_change_7d")
	momentum30 := momentumOf(inputs.Market, "price_change_30d")
	trend := volumeTrendOf(inputs.Market)

	var reasons []string

	rsiScore, rsiReason := rsiFactor(rsi)
	if rsiReason != "" {
		reasons = append(reasons, rsiReason)
	}
	momScore, momReason := momentumFactor(momentum7, momentum30)
	if momReason != "" {
		reasons = append(reasons, momReason)
	}
	volScore, volReason := volumeFactor(trend)
	if volReason != "" {
		reasons = append(reasons, volReason)
	}
	sentScore := combined
	if mentions == 0 {
		sentScore = 0
	} else {
		reasons = append(reasons, fmt.Sprintf("sentiment %.2f over %d mentions", combined, mentions))
	}

	score := rsiScore*predictorRSIWeight +
		momScore*predictorMomentumWeight +
		sentScore*predictorSentimentWeight +
		volScore*predictorVolumeWeight
	score = clamp(score, -1, 1)

	confidence := agreementConfidence([]float64{rsiScore, momScore, sentScore, volScore})

	reasoning := "Insufficient technical data"
	if len(reasons) > 0 {
		reasoning = strings.Join(reasons, "; ")
	}

	return Verdict{
		AgentName:  a.Name(),
		Signal:     LevelFromScore(score, a.buyThreshold, a.strongThreshold),
		RawScore:   score,
		Confidence: confidence,
		Reasoning:  reasoning,
		DataUsed: map[string]interface{}{
			"rsi":          rsi,
			"sentiment":    combined,
			"momentum_7d":  momentum7,
			"momentum_30d": momentum30,
			"volume_trend": string(trend),
		},
	}
}

// rsiFactor scores RSI as a mean-reversion signal: deep oversold is
// strongly bullish, deep overbought strongly bearish, the 30-70 band a
// mild lean toward its side.
func rsiFactor(rsi float64) (float64, string) {
	switch {
	case rsi <= 30:
		score := clamp(0.6+(30-rsi)/30*0.4, -1, 1)
		return score, fmt.Sprintf("RSI %.0f oversold - bullish reversal likely", rsi)
	case rsi >= 70:
		score := clamp(-0.6-(rsi-70)/30*0.4, -1, 1)
		return score, fmt.Sprintf("RSI %.0f overbought - correction risk", rsi)
	case rsi > 50:
		return (rsi - 50) / 20 * 0.3, fmt.Sprintf("RSI %.0f bullish momentum", rsi)
	case rsi < 50:
		return -(50 - rsi) / 20 * 0.3, fmt.Sprintf("RSI %.0f bearish pressure", rsi)
	default:
		return 0, ""
	}
}

// momentumFactor scores the 7 and 30 day changes with banded thresholds
func momentumFactor(change7d, change30d float64) (float64, string) {
	var score float64
	var notes []string

	switch {
	case change7d > 10:
		score += 0.5
		notes = append(notes, fmt.Sprintf("strong 7d momentum %+.1f%%", change7d))
	case change7d > 3:
		score += 0.2
	case change7d < -10:
		score -= 0.5
		notes = append(notes, fmt.Sprintf("weak 7d momentum %+.1f%%", change7d))
	case change7d < -3:
		score -= 0.2
	}

	switch {
	case change30d > 15:
		score += 0.4
		notes = append(notes, fmt.Sprintf("strong 30d trend %+.1f%%", change30d))
	case change30d > 5:
		score += 0.15
	case change30d < -15:
		score -= 0.4
		notes = append(notes, fmt.Sprintf("30d downtrend %+.1f%%", change30d))
	case change30d < -5:
		score -= 0.15
	}

	return clamp(score, -1, 1), strings.Join(notes, "; ")
}

// volumeFactor scores the volume trend tag
func volumeFactor(trend market.VolumeTrend) (float64, string) {
	switch trend {
	case market.VolumeIncreasing:
		return 0.3, "rising volume confirms trend"
	case market.VolumeDecreasing:
		return -0.2, "declining volume weakens trend"
	default:
		return 0, ""
	}
}

// agreementConfidence rates how strongly the active factors point the
// same way, scaled by how many factors had data at all.
func agreementConfidence(factors []float64) float64 {
	var positive, negative int
	for _, f := range factors {
		if f > 0.1 {
			positive++
		} else if f < -0.1 {
			negative++
		}
	}
	active := positive + negative
	if active == 0 {
		return 0
	}

	agreement := float64(max(positive, negative)) / float64(active)
	coverage := float64(active) / float64(len(factors))
	return clamp(agreement*0.6+coverage*0.4, 0, 1)
}
