package consensus

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/agents"
)

// SignalType is the three-level classification of a final verdict
type SignalType string

const (
	Buy  SignalType = "BUY"
	Sell SignalType = "SELL"
	Hold SignalType = "HOLD"
)

// tieEpsilon bounds the window within which opposing weighted masses
// count as a true split.
const tieEpsilon = 1e-6

// Params holds the tunable thresholds and risk constants. Zero values
// select the defaults.
type Params struct {
	BuyThreshold   float64
	StopLossPct    float64
	TakeProfitPct  float64
	Capital        float64
	MaxPositionPct float64
}

func (p Params) withDefaults() Params {
	if p.BuyThreshold == 0 {
		p.BuyThreshold = 0.1
	}
	if p.StopLossPct == 0 {
		p.StopLossPct = 0.10
	}
	if p.TakeProfitPct == 0 {
		p.TakeProfitPct = 0.25
	}
	if p.Capital == 0 {
		p.Capital = 50000
	}
	if p.MaxPositionPct == 0 {
		p.MaxPositionPct = 0.10
	}
	return p
}

// Outcome is the combined verdict with risk and sizing. StopLoss and
// TargetPrice are set only when SignalType is not HOLD; PositionSize is
// zero exactly when it is.
type Outcome struct {
	Ticker         string
	SignalType     SignalType
	Confidence     float64
	BlendedScore   float64
	AgreementRatio float64
	EntryPrice     decimal.Decimal
	StopLoss       *decimal.Decimal
	TargetPrice    *decimal.Decimal
	PositionSize   int64
	Reasoning      string
	Verdicts       []agents.Verdict
	GeneratedAt    time.Time
}

// Engine blends weighted agent verdicts into a single outcome. Weights
// are swapped atomically between requests, never mutated mid-request.
type Engine struct {
	mu      sync.RWMutex
	weights map[string]float64
	params  Params
	log     zerolog.Logger
}

// NewEngine creates a consensus engine with the given per-agent weights
func NewEngine(weights map[string]float64, params Params, logger zerolog.Logger) *Engine {
	w := make(map[string]float64, len(weights))
	for name, weight := range weights {
		w[name] = weight
	}
	return &Engine{weights: w, params: params.withDefaults(), log: logger}
}

// SetWeights replaces the agent weight map
func (e *Engine) SetWeights(weights map[string]float64) {
	w := make(map[string]float64, len(weights))
	for name, weight := range weights {
		w[name] = weight
	}
	e.mu.Lock()
	e.weights = w
	e.mu.Unlock()
}

func (e *Engine) weightOf(name string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if w, ok := e.weights[name]; ok {
		return w
	}
	return 1.0
}

// Combine blends the verdicts into the final outcome. A non-positive
// entry price downgrades an actionable signal to HOLD because risk
// parameters cannot be computed without one.
func (e *Engine) Combine(ticker string, verdicts []agents.Verdict, entryPrice decimal.Decimal) Outcome {
	out := Outcome{
		Ticker:      ticker,
		SignalType:  Hold,
		EntryPrice:  entryPrice,
		Verdicts:    verdicts,
		GeneratedAt: time.Now().UTC(),
	}

	valid := make([]agents.Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		if !v.Failed {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		out.Reasoning = "All agent analyses failed"
		return out
	}

	var weightedScore, totalWeight, posMass, negMass float64
	for _, v := range valid {
		w := e.weightOf(v.AgentName) * v.Confidence
		contribution := w * v.RawScore
		weightedScore += contribution
		totalWeight += w
		if v.RawScore > 0 {
			posMass += contribution
		} else if v.RawScore < 0 {
			negMass -= contribution
		}
	}

	blended := 0.0
	if totalWeight > 0 {
		weightedScore /= totalWeight
		blended = weightedScore
	}
	agreement := agreementRatio(valid)

	out.BlendedScore = blended
	out.AgreementRatio = agreement
	out.Confidence = clamp(0.5*math.Abs(blended)+0.5*agreement, 0, 1)

	// A true split of weighted directional mass is a HOLD regardless
	// of which side the rounding favors.
	if posMass > 0 && math.Abs(posMass-negMass) < tieEpsilon {
		out.Confidence = agreement
		out.Reasoning = e.reasoning(valid, agreement) + "; split decision"
		return out
	}

	switch {
	case blended >= e.params.BuyThreshold:
		out.SignalType = Buy
	case blended <= -e.params.BuyThreshold:
		out.SignalType = Sell
	}
	out.Reasoning = e.reasoning(valid, agreement)

	if out.SignalType == Hold {
		return out
	}
	if !entryPrice.IsPositive() {
		e.log.Warn().
			Str("ticker", ticker).
			Str("signal", string(out.SignalType)).
			Msg("No valid entry price, downgrading to HOLD")
		out.SignalType = Hold
		out.Reasoning += "; downgraded to HOLD: no valid entry price"
		return out
	}

	stop, target := e.riskParams(out.SignalType, entryPrice)
	out.StopLoss = &stop
	out.TargetPrice = &target
	out.PositionSize = e.positionSize(entryPrice, out.Confidence)
	return out
}

// riskParams derives the stop and first take-profit target from the
// entry price.
func (e *Engine) riskParams(signal SignalType, entry decimal.Decimal) (stop, target decimal.Decimal) {
	s := decimal.NewFromFloat(e.params.StopLossPct)
	t := decimal.NewFromFloat(e.params.TakeProfitPct)
	one := decimal.NewFromInt(1)
	if signal == Buy {
		stop = entry.Mul(one.Sub(s)).Round(2)
		target = entry.Mul(one.Add(t)).Round(2)
	} else {
		stop = entry.Mul(one.Add(s)).Round(2)
		target = entry.Mul(one.Sub(t)).Round(2)
	}
	return stop, target
}

// positionSize scales the maximum position value by confidence and
// floors to whole shares.
func (e *Engine) positionSize(entry decimal.Decimal, confidence float64) int64 {
	scaled := decimal.NewFromFloat(e.params.Capital * e.params.MaxPositionPct * confidence)
	return scaled.Div(entry).IntPart()
}

// agreementRatio is the fraction of non-failed agents in the majority
// sign class.
func agreementRatio(valid []agents.Verdict) float64 {
	var positive, negative, zero int
	for _, v := range valid {
		switch {
		case v.RawScore > 0:
			positive++
		case v.RawScore < 0:
			negative++
		default:
			zero++
		}
	}
	majority := positive
	if negative > majority {
		majority = negative
	}
	if zero > majority {
		majority = zero
	}
	return float64(majority) / float64(len(valid))
}

// reasoning summarizes the panel: agreement band, directional counts,
// and the highest-confidence agent's own reasoning.
func (e *Engine) reasoning(valid []agents.Verdict, agreement float64) string {
	var parts []string

	switch {
	case agreement >= 0.8:
		parts = append(parts, fmt.Sprintf("Strong consensus (%.0f%% agreement)", agreement*100))
	case agreement >= 0.6:
		parts = append(parts, fmt.Sprintf("Moderate consensus (%.0f%% agreement)", agreement*100))
	default:
		parts = append(parts, fmt.Sprintf("Mixed signals (%.0f%% agreement)", agreement*100))
	}

	var bullish, bearish int
	for _, v := range valid {
		if v.RawScore > 0.1 {
			bullish++
		} else if v.RawScore < -0.1 {
			bearish++
		}
	}
	if bullish > 0 {
		parts = append(parts, fmt.Sprintf("%d bullish", bullish))
	}
	if bearish > 0 {
		parts = append(parts, fmt.Sprintf("%d bearish", bearish))
	}

	top := valid[0]
	for _, v := range valid[1:] {
		if v.Confidence > top.Confidence {
			top = v
		}
	}
	if top.Reasoning != "" {
		parts = append(parts, "Key: "+truncate(top.Reasoning, 100))
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
